package transporttest

import (
	"github.com/diesing/rt-share/internal/transport"
)

// FakeDataChannel records every frame sent. Sent bytes accumulate in the
// buffered amount until Drain is called.
type FakeDataChannel struct {
	label     string
	open      bool
	closed    bool
	buffered  uint64
	threshold uint64

	Sent []transport.Message
	// MaxBuffered is the largest buffered amount observed right after a send.
	MaxBuffered uint64
	// SendErr, when set, fails every send.
	SendErr error
	// FailAfter, when positive, fails sends once that many frames were sent.
	FailAfter int

	onOpen    func()
	onClose   func()
	onMessage func(transport.Message)
	onLow     func()
}

var _ transport.DataChannel = (*FakeDataChannel)(nil)

func NewDataChannel(label string) *FakeDataChannel {
	return &FakeDataChannel{label: label}
}

func (dc *FakeDataChannel) Label() string { return dc.label }

func (dc *FakeDataChannel) IsOpen() bool { return dc.open && !dc.closed }

func (dc *FakeDataChannel) Send(data []byte) error {
	return dc.send(transport.Message{Data: append([]byte(nil), data...)})
}

func (dc *FakeDataChannel) SendText(text string) error {
	return dc.send(transport.Message{Data: []byte(text), IsString: true})
}

func (dc *FakeDataChannel) send(msg transport.Message) error {
	if !dc.IsOpen() {
		return ErrChannelNotReady
	}
	if dc.SendErr != nil {
		return dc.SendErr
	}
	if dc.FailAfter > 0 && len(dc.Sent) >= dc.FailAfter {
		return ErrClosed
	}
	dc.Sent = append(dc.Sent, msg)
	dc.buffered += uint64(len(msg.Data))
	if dc.buffered > dc.MaxBuffered {
		dc.MaxBuffered = dc.buffered
	}
	return nil
}

func (dc *FakeDataChannel) BufferedAmount() uint64 { return dc.buffered }

func (dc *FakeDataChannel) SetBufferedAmountLowThreshold(th uint64) { dc.threshold = th }

func (dc *FakeDataChannel) OnBufferedAmountLow(f func()) { dc.onLow = f }

func (dc *FakeDataChannel) OnOpen(f func()) {
	dc.onOpen = f
	if dc.IsOpen() {
		f()
	}
}

func (dc *FakeDataChannel) OnClose(f func()) { dc.onClose = f }

func (dc *FakeDataChannel) OnMessage(f func(transport.Message)) { dc.onMessage = f }

func (dc *FakeDataChannel) Close() error {
	dc.closeLocal()
	return nil
}

func (dc *FakeDataChannel) closeLocal() {
	if dc.closed {
		return
	}
	dc.closed = true
	if dc.onClose != nil {
		dc.onClose()
	}
}

// Open marks the channel open and fires OnOpen.
func (dc *FakeDataChannel) Open() {
	dc.open = true
	if dc.onOpen != nil {
		dc.onOpen()
	}
}

// Deliver simulates an inbound frame.
func (dc *FakeDataChannel) Deliver(msg transport.Message) {
	if dc.onMessage != nil {
		dc.onMessage(msg)
	}
}

func (dc *FakeDataChannel) DeliverText(text string) {
	dc.Deliver(transport.Message{Data: []byte(text), IsString: true})
}

// Drain removes up to n bytes from the buffer. The low callback fires when
// the amount crosses the threshold from above.
func (dc *FakeDataChannel) Drain(n uint64) {
	before := dc.buffered
	if n > dc.buffered {
		n = dc.buffered
	}
	dc.buffered -= n
	if before > dc.threshold && dc.buffered <= dc.threshold && dc.onLow != nil {
		dc.onLow()
	}
}

// DrainAll empties the buffer.
func (dc *FakeDataChannel) DrainAll() {
	dc.Drain(dc.buffered)
}

// Texts returns the text frames sent so far.
func (dc *FakeDataChannel) Texts() []string {
	var out []string
	for _, m := range dc.Sent {
		if m.IsString {
			out = append(out, string(m.Data))
		}
	}
	return out
}

// Binary returns the binary frames sent so far.
func (dc *FakeDataChannel) Binary() [][]byte {
	var out [][]byte
	for _, m := range dc.Sent {
		if !m.IsString {
			out = append(out, m.Data)
		}
	}
	return out
}
