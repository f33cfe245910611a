// Package webrtc implements the transport primitives on pion/webrtc.
package webrtc

import (
	"fmt"

	"github.com/pion/webrtc/v3"

	"github.com/diesing/rt-share/internal/transport"
)

type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

var _ transport.Factory = (*Factory)(nil)

// New creates a factory whose connections use the given STUN/TURN urls.
func New(iceServers []string) *Factory {
	return &Factory{
		api:    webrtc.NewAPI(),
		config: DefaultConfiguration(iceServers),
	}
}

func (f *Factory) NewPeerConnection() (transport.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return newConnection(pc), nil
}
