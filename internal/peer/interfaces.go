package peer

import (
	"github.com/diesing/rt-share/internal/transport"
)

// Listener receives registry notifications on the event loop.
type Listener interface {
	ChannelOpen(peerID string, dc transport.DataChannel)
	ChannelClosed(peerID string)
	StatusChanged(peerID string, status Status)
	Fatal(err error)
}

// Roster answers who the relay currently reports as online.
type Roster interface {
	IsOnline(id string) bool
	OnlinePeers() []string
}

// Signaler forwards negotiation messages to a peer through the relay.
type Signaler interface {
	SendOffer(target, desc string) error
	SendAnswer(target, desc string) error
	SendCandidate(target, candidate string) error
}
