// Package transporttest provides in-memory fakes of the transport primitives.
// Fakes are not safe for concurrent use; tests drive them from one goroutine.
package transporttest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/diesing/rt-share/internal/transport"
)

var (
	ErrClosed          = errors.New("transporttest: closed")
	ErrWrongState      = errors.New("transporttest: wrong signaling state")
	ErrNoRemoteDesc    = errors.New("transporttest: no remote description")
	ErrChannelNotReady = errors.New("transporttest: channel not open")
)

type description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type FakeFactory struct {
	Created []*FakePeerConnection
	Err     error
}

var _ transport.Factory = (*FakeFactory)(nil)

func NewFactory() *FakeFactory {
	return &FakeFactory{}
}

func (f *FakeFactory) NewPeerConnection() (transport.PeerConnection, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	pc := &FakePeerConnection{id: len(f.Created) + 1}
	f.Created = append(f.Created, pc)
	return pc, nil
}

// Last returns the most recently created connection or nil.
func (f *FakeFactory) Last() *FakePeerConnection {
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

type FakePeerConnection struct {
	id         int
	state      transport.SignalingState
	local      string
	remote     string
	closed     bool
	Candidates []string
	Channels   []*FakeDataChannel

	onDataChannel func(transport.DataChannel)
	onCandidate   func(string)
	onState       func(transport.ConnectionState)
}

var _ transport.PeerConnection = (*FakePeerConnection)(nil)

func (pc *FakePeerConnection) CreateOffer() (string, error) {
	if pc.closed {
		return "", ErrClosed
	}
	return encode("offer", fmt.Sprintf("fake-offer-%d", pc.id)), nil
}

func (pc *FakePeerConnection) CreateAnswer() (string, error) {
	if pc.closed {
		return "", ErrClosed
	}
	if pc.state != transport.SignalingHaveRemoteOffer {
		return "", ErrWrongState
	}
	return encode("answer", fmt.Sprintf("fake-answer-%d", pc.id)), nil
}

func (pc *FakePeerConnection) SetLocalDescription(desc string) error {
	d, err := decode(desc)
	if err != nil {
		return err
	}
	switch {
	case pc.closed:
		return ErrClosed
	case d.Type == "offer" && pc.state == transport.SignalingStable:
		pc.state = transport.SignalingHaveLocalOffer
	case d.Type == "answer" && pc.state == transport.SignalingHaveRemoteOffer:
		pc.state = transport.SignalingStable
	default:
		return fmt.Errorf("%w: local %s in %s", ErrWrongState, d.Type, pc.state)
	}
	pc.local = desc
	return nil
}

func (pc *FakePeerConnection) SetRemoteDescription(desc string) error {
	d, err := decode(desc)
	if err != nil {
		return err
	}
	switch {
	case pc.closed:
		return ErrClosed
	case d.Type == "offer" && pc.state == transport.SignalingStable:
		pc.state = transport.SignalingHaveRemoteOffer
	case d.Type == "answer" && pc.state == transport.SignalingHaveLocalOffer:
		pc.state = transport.SignalingStable
	default:
		return fmt.Errorf("%w: remote %s in %s", ErrWrongState, d.Type, pc.state)
	}
	pc.remote = desc
	return nil
}

func (pc *FakePeerConnection) AddICECandidate(candidate string) error {
	if pc.closed {
		return ErrClosed
	}
	if pc.remote == "" {
		return ErrNoRemoteDesc
	}
	pc.Candidates = append(pc.Candidates, candidate)
	return nil
}

func (pc *FakePeerConnection) SignalingState() transport.SignalingState {
	if pc.closed {
		return transport.SignalingClosed
	}
	return pc.state
}

func (pc *FakePeerConnection) HasRemoteDescription() bool {
	return pc.remote != ""
}

func (pc *FakePeerConnection) CreateDataChannel(label string) (transport.DataChannel, error) {
	if pc.closed {
		return nil, ErrClosed
	}
	dc := NewDataChannel(label)
	pc.Channels = append(pc.Channels, dc)
	return dc, nil
}

func (pc *FakePeerConnection) OnDataChannel(f func(transport.DataChannel)) {
	pc.onDataChannel = f
}

func (pc *FakePeerConnection) OnICECandidate(f func(string)) {
	pc.onCandidate = f
}

func (pc *FakePeerConnection) OnConnectionStateChange(f func(transport.ConnectionState)) {
	pc.onState = f
}

func (pc *FakePeerConnection) Close() error {
	if pc.closed {
		return nil
	}
	pc.closed = true
	for _, dc := range pc.Channels {
		dc.closeLocal()
	}
	return nil
}

func (pc *FakePeerConnection) Closed() bool {
	return pc.closed
}

func (pc *FakePeerConnection) LocalDescription() string {
	return pc.local
}

func (pc *FakePeerConnection) RemoteDescription() string {
	return pc.remote
}

// FireConnectionState simulates a connection-state change.
func (pc *FakePeerConnection) FireConnectionState(s transport.ConnectionState) {
	if pc.onState != nil {
		pc.onState(s)
	}
}

// FireCandidate simulates local ICE gathering.
func (pc *FakePeerConnection) FireCandidate(candidate string) {
	if pc.onCandidate != nil {
		pc.onCandidate(candidate)
	}
}

// FireDataChannel simulates the remote side opening a channel.
func (pc *FakePeerConnection) FireDataChannel(dc *FakeDataChannel) {
	pc.Channels = append(pc.Channels, dc)
	if pc.onDataChannel != nil {
		pc.onDataChannel(dc)
	}
}

func encode(typ, sdp string) string {
	data, _ := json.Marshal(description{Type: typ, SDP: sdp})
	return string(data)
}

func decode(desc string) (description, error) {
	var d description
	if err := json.Unmarshal([]byte(desc), &d); err != nil {
		return d, fmt.Errorf("transporttest: bad description: %w", err)
	}
	return d, nil
}

// Description builds a session description in the wire form.
func Description(typ, sdp string) string {
	return encode(typ, sdp)
}
