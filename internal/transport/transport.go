// Package transport declares the peer-connection and data-channel primitives
// the session engine drives. Session descriptions and ICE candidates cross
// this boundary as opaque JSON strings.
package transport

type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNew:
		return "new"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Failed reports whether s means the link is gone.
func (s ConnectionState) Failed() bool {
	return s == ConnectionDisconnected || s == ConnectionFailed || s == ConnectionClosed
}

// Message is one data-channel frame.
type Message struct {
	Data     []byte
	IsString bool
}

// PeerConnection callbacks may run on any goroutine.
type PeerConnection interface {
	CreateOffer() (string, error)
	CreateAnswer() (string, error)
	SetLocalDescription(desc string) error
	SetRemoteDescription(desc string) error
	AddICECandidate(candidate string) error
	SignalingState() SignalingState
	HasRemoteDescription() bool
	CreateDataChannel(label string) (DataChannel, error)
	OnDataChannel(f func(DataChannel))
	OnICECandidate(f func(candidate string))
	OnConnectionStateChange(f func(ConnectionState))
	Close() error
}

// DataChannel is an ordered, reliable message channel owned by a
// PeerConnection. OnOpen fires immediately if the channel is already open.
type DataChannel interface {
	Label() string
	IsOpen() bool
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(Message))
	Close() error
}

type Factory interface {
	NewPeerConnection() (PeerConnection, error)
}
