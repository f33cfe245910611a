package webrtc

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v3"

	"github.com/diesing/rt-share/internal/transport"
)

type connection struct {
	pc *webrtc.PeerConnection
}

var _ transport.PeerConnection = (*connection)(nil)

func newConnection(pc *webrtc.PeerConnection) *connection {
	return &connection{pc: pc}
}

func (c *connection) CreateOffer() (string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	return marshalDescription(offer)
}

func (c *connection) CreateAnswer() (string, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	return marshalDescription(answer)
}

func (c *connection) SetLocalDescription(desc string) error {
	d, err := unmarshalDescription(desc)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(d); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	return nil
}

func (c *connection) SetRemoteDescription(desc string) error {
	d, err := unmarshalDescription(desc)
	if err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(d); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (c *connection) AddICECandidate(candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return fmt.Errorf("invalid ICE candidate: %w", err)
	}
	if err := c.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

func (c *connection) SignalingState() transport.SignalingState {
	switch c.pc.SignalingState() {
	case webrtc.SignalingStateStable:
		return transport.SignalingStable
	case webrtc.SignalingStateHaveLocalOffer, webrtc.SignalingStateHaveRemotePranswer:
		return transport.SignalingHaveLocalOffer
	case webrtc.SignalingStateHaveRemoteOffer, webrtc.SignalingStateHaveLocalPranswer:
		return transport.SignalingHaveRemoteOffer
	default:
		return transport.SignalingClosed
	}
}

func (c *connection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *connection) CreateDataChannel(label string) (transport.DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, DefaultDataChannelConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	return &dataChannel{dc: dc}, nil
}

func (c *connection) OnDataChannel(f func(transport.DataChannel)) {
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(&dataChannel{dc: dc})
	})
}

// OnICECandidate skips the nil candidate pion uses to signal end of gathering.
func (c *connection) OnICECandidate(f func(string)) {
	c.pc.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			return
		}
		data, err := json.Marshal(ice.ToJSON())
		if err != nil {
			return
		}
		f(string(data))
	})
}

func (c *connection) OnConnectionStateChange(f func(transport.ConnectionState)) {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		f(connectionState(s))
	})
}

func (c *connection) Close() error {
	return c.pc.Close()
}

func connectionState(s webrtc.PeerConnectionState) transport.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return transport.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return transport.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return transport.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return transport.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return transport.ConnectionClosed
	default:
		return transport.ConnectionNew
	}
}

func marshalDescription(d webrtc.SessionDescription) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode session description: %w", err)
	}
	return string(data), nil
}

func unmarshalDescription(desc string) (webrtc.SessionDescription, error) {
	var d webrtc.SessionDescription
	if err := json.Unmarshal([]byte(desc), &d); err != nil {
		return d, fmt.Errorf("invalid session description: %w", err)
	}
	return d, nil
}

type dataChannel struct {
	dc *webrtc.DataChannel
}

var _ transport.DataChannel = (*dataChannel)(nil)

func (d *dataChannel) Label() string { return d.dc.Label() }

func (d *dataChannel) IsOpen() bool { return d.dc.ReadyState() == webrtc.DataChannelStateOpen }

func (d *dataChannel) Send(data []byte) error { return d.dc.Send(data) }

func (d *dataChannel) SendText(text string) error { return d.dc.SendText(text) }

func (d *dataChannel) BufferedAmount() uint64 { return d.dc.BufferedAmount() }

func (d *dataChannel) SetBufferedAmountLowThreshold(th uint64) {
	d.dc.SetBufferedAmountLowThreshold(th)
}

func (d *dataChannel) OnBufferedAmountLow(f func()) { d.dc.OnBufferedAmountLow(f) }

func (d *dataChannel) OnOpen(f func()) { d.dc.OnOpen(f) }

func (d *dataChannel) OnClose(f func()) { d.dc.OnClose(f) }

func (d *dataChannel) OnMessage(f func(transport.Message)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(transport.Message{Data: msg.Data, IsString: msg.IsString})
	})
}

func (d *dataChannel) Close() error { return d.dc.Close() }
