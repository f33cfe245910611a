// Package transfer runs the data-channel protocol: chat text, the file
// offer/accept handshake, and chunked file streaming with backpressure.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/diesing/rt-share/internal/eventloop"
	"github.com/diesing/rt-share/internal/protocol"
	"github.com/diesing/rt-share/internal/transport"
)

// Events is how the engine reports to its owner. Calls happen on the loop.
type Events interface {
	TextReceived(peer, text string)
	// FileOffered asks for a decision; answer with Engine.RespondToOffer.
	FileOffered(peer, filename string, size int64)
	FileDenied(peer, filename string)
	Progress(peer, filename string, dir Direction, percent int)
	ProgressCleared(peer, filename string, dir Direction)
	FileReceived(peer, filename string, content []byte)
	FileSent(peer, filename string, size int64)
	TransferFailed(peer, filename string, dir Direction, err error)
}

type Options struct {
	Loop   eventloop.Poster
	Events Events
	Log    logrus.FieldLogger

	ChunkSize     int
	HighWaterMark uint64
	LowWaterMark  uint64
	MaxFileSize   int64
	ChunksPerTurn int
}

type channel struct {
	dc  transport.DataChannel
	gen int
}

// Engine is driven entirely from the event loop and holds no locks.
type Engine struct {
	opts  Options
	log   logrus.FieldLogger
	codec *protocol.Codec
	trust *Trust

	gen      int
	channels map[string]*channel
	outgoing map[string]*sender
	incoming map[string]*receiver
	offers   map[string]protocol.FileOffer
}

func NewEngine(opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = protocol.ChunkSize
	}
	if opts.HighWaterMark == 0 {
		opts.HighWaterMark = 16 * 1024 * 1024
	}
	if opts.LowWaterMark == 0 {
		opts.LowWaterMark = 4 * 1024 * 1024
	}
	if opts.ChunksPerTurn <= 0 {
		opts.ChunksPerTurn = 64
	}

	return &Engine{
		opts:     opts,
		log:      opts.Log.WithField("component", "transfer"),
		codec:    protocol.NewCodec(),
		trust:    NewTrust(),
		channels: make(map[string]*channel),
		outgoing: make(map[string]*sender),
		incoming: make(map[string]*receiver),
		offers:   make(map[string]protocol.FileOffer),
	}
}

// Attach starts exchanging messages with peer over dc.
func (e *Engine) Attach(peer string, dc transport.DataChannel) {
	if _, ok := e.channels[peer]; ok {
		e.Detach(peer)
	}

	e.gen++
	ch := &channel{dc: dc, gen: e.gen}
	e.channels[peer] = ch

	dc.SetBufferedAmountLowThreshold(e.opts.LowWaterMark)
	dc.OnBufferedAmountLow(func() {
		e.opts.Loop.Post(func() {
			if e.channels[peer] != ch {
				return
			}
			e.drained(peer)
		})
	})
	dc.OnMessage(func(msg transport.Message) {
		e.opts.Loop.Post(func() {
			if e.channels[peer] != ch {
				return
			}
			e.receive(peer, msg)
		})
	})
}

// Detach forgets peer's channel and aborts anything in flight with it.
func (e *Engine) Detach(peer string) {
	if _, ok := e.channels[peer]; !ok {
		return
	}
	delete(e.channels, peer)
	delete(e.offers, peer)

	if s, ok := e.outgoing[peer]; ok {
		e.failOutgoing(s, ErrChannelClosed)
	}
	if r, ok := e.incoming[peer]; ok {
		e.failIncoming(r, ErrChannelClosed)
	}
}

func (e *Engine) Attached(peer string) bool {
	_, ok := e.channels[peer]
	return ok
}

func (e *Engine) TrustedSender(peer string) bool    { return e.trust.SenderAllowed(peer) }
func (e *Engine) TrustedRecipient(peer string) bool { return e.trust.RecipientAllowed(peer) }

func (e *Engine) openChannel(peer string) (transport.DataChannel, error) {
	ch, ok := e.channels[peer]
	if !ok || !ch.dc.IsOpen() {
		return nil, ErrPeerNotConnected
	}
	return ch.dc, nil
}

func (e *Engine) send(dc transport.DataChannel, msg protocol.Message) error {
	data, isString, err := e.codec.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	if isString {
		return dc.SendText(string(data))
	}
	return dc.Send(data)
}

func (e *Engine) sendTo(peer string, msg protocol.Message) error {
	dc, err := e.openChannel(peer)
	if err != nil {
		return err
	}
	return e.send(dc, msg)
}

func (e *Engine) SendText(peer, text string) error {
	if err := e.sendTo(peer, &protocol.Text{Text: text}); err != nil {
		return fmt.Errorf("sending text to %s: %w", peer, err)
	}
	return nil
}

// SendFile offers the file to peer, or streams it straight away when peer
// accepted from us before. Only the base name of name is sent.
func (e *Engine) SendFile(peer, name string, size int64, r io.ReaderAt) error {
	if _, err := e.openChannel(peer); err != nil {
		return err
	}
	if e.opts.MaxFileSize > 0 && size > e.opts.MaxFileSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, e.opts.MaxFileSize)
	}
	if _, busy := e.outgoing[peer]; busy {
		return ErrTransferInProgress
	}

	s := &sender{peer: peer, filename: filepath.Base(name), size: size, r: r}
	e.outgoing[peer] = s

	if e.trust.RecipientAllowed(peer) {
		if err := e.start(s); err != nil {
			delete(e.outgoing, peer)
			return err
		}
		return nil
	}

	s.awaitingAccept = true
	if err := e.sendTo(peer, &protocol.FileOffer{Filename: s.filename, Size: size}); err != nil {
		delete(e.outgoing, peer)
		return fmt.Errorf("offering %s to %s: %w", s.filename, peer, err)
	}
	e.log.WithField("peer", peer).Infof("Offered %s (%d bytes)", s.filename, size)
	return nil
}

// RespondToOffer answers the pending offer from peer.
func (e *Engine) RespondToOffer(peer string, accept bool) error {
	offer, ok := e.offers[peer]
	if !ok {
		return ErrNoPendingOffer
	}
	delete(e.offers, peer)

	var reply protocol.Message = &protocol.FileDeny{Filename: offer.Filename}
	if accept {
		e.trust.AllowSender(peer)
		reply = &protocol.FileAccept{Filename: offer.Filename}
	}
	if err := e.sendTo(peer, reply); err != nil {
		return fmt.Errorf("answering offer from %s: %w", peer, err)
	}
	return nil
}

// PendingOffer returns the offer from peer still waiting for a decision.
func (e *Engine) PendingOffer(peer string) (filename string, size int64, ok bool) {
	offer, ok := e.offers[peer]
	return offer.Filename, offer.Size, ok
}

func (e *Engine) receive(peer string, frame transport.Message) {
	msg, err := e.codec.DecodeFromBytes(frame.Data, frame.IsString)
	if err != nil {
		e.log.WithField("peer", peer).Warnf("Dropping malformed message: %v", err)
		return
	}
	e.HandleMessage(peer, msg)
}

// HandleMessage dispatches one decoded message from peer.
func (e *Engine) HandleMessage(peer string, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Text:
		e.opts.Events.TextReceived(peer, m.Text)
	case *protocol.FileOffer:
		e.handleOffer(peer, m)
	case *protocol.FileAccept:
		e.handleAccept(peer)
	case *protocol.FileDeny:
		e.handleDeny(peer)
	case *protocol.FileMeta:
		e.handleMeta(peer, m)
	case *protocol.Chunk:
		e.handleChunk(peer, m.Data)
	case *protocol.FileEnd:
		e.handleEnd(peer, m)
	default:
		e.log.WithField("peer", peer).Warnf("Dropping unexpected %s message", msg.Type())
	}
}

func (e *Engine) handleAccept(peer string) {
	s, ok := e.outgoing[peer]
	if !ok || !s.awaitingAccept {
		e.log.WithField("peer", peer).Debug("Dropping accept without a pending offer")
		return
	}
	e.trust.AllowRecipient(peer)
	s.awaitingAccept = false
	if err := e.start(s); err != nil {
		e.failOutgoing(s, err)
	}
}

func (e *Engine) handleDeny(peer string) {
	s, ok := e.outgoing[peer]
	if !ok || !s.awaitingAccept {
		e.log.WithField("peer", peer).Debug("Dropping deny without a pending offer")
		return
	}
	delete(e.outgoing, peer)
	e.log.WithField("peer", peer).Infof("Offer of %s was declined", s.filename)
	e.opts.Events.FileDenied(peer, s.filename)
}

// Close aborts everything and detaches every channel.
func (e *Engine) Close() {
	for peer := range e.channels {
		e.Detach(peer)
	}
}

func transferError(peer, filename string, dir Direction, err error) error {
	var te *TransferError
	if errors.As(err, &te) {
		return te
	}
	return &TransferError{Peer: peer, Filename: filename, Direction: dir, Err: err}
}
