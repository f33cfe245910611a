package transfer

import (
	"fmt"

	"github.com/diesing/rt-share/internal/protocol"
)

// receiver is the single active incoming file from one peer. Binary frames
// from that peer are appended to it in arrival order.
type receiver struct {
	peer     string
	filename string
	expected int64
	received int64
	chunks   [][]byte
}

func (e *Engine) handleOffer(peer string, m *protocol.FileOffer) {
	log := e.log.WithField("peer", peer)

	deny := func(reason string) {
		log.Infof("Declining %s: %s", m.Filename, reason)
		if err := e.sendTo(peer, &protocol.FileDeny{Filename: m.Filename}); err != nil {
			log.Warnf("Failed to decline offer: %v", err)
		}
	}

	switch {
	case e.opts.MaxFileSize > 0 && m.Size > e.opts.MaxFileSize:
		deny(fmt.Sprintf("%d bytes exceeds the %d byte limit", m.Size, e.opts.MaxFileSize))
		return
	case e.incoming[peer] != nil:
		deny("a transfer from this peer is already in progress")
		return
	}
	if _, pending := e.offers[peer]; pending {
		deny("an offer from this peer is already pending")
		return
	}

	if e.trust.SenderAllowed(peer) {
		log.Debugf("Auto-accepting %s from trusted sender", m.Filename)
		if err := e.sendTo(peer, &protocol.FileAccept{Filename: m.Filename}); err != nil {
			log.Warnf("Failed to accept offer: %v", err)
		}
		return
	}

	e.offers[peer] = *m
	e.opts.Events.FileOffered(peer, m.Filename, m.Size)
}

func (e *Engine) handleMeta(peer string, m *protocol.FileMeta) {
	log := e.log.WithField("peer", peer)

	if e.opts.MaxFileSize > 0 && m.Size > e.opts.MaxFileSize {
		log.Warnf("Dropping %s: %d bytes exceeds the limit", m.Filename, m.Size)
		return
	}
	if old, ok := e.incoming[peer]; ok {
		e.failIncoming(old, ErrSuperseded)
	}

	r := &receiver{peer: peer, filename: m.Filename, expected: m.Size}
	e.incoming[peer] = r
	log.Infof("Receiving %s (%d bytes)", m.Filename, m.Size)
	e.opts.Events.Progress(peer, m.Filename, Incoming, 0)
}

func (e *Engine) handleChunk(peer string, data []byte) {
	r, ok := e.incoming[peer]
	if !ok {
		e.log.WithField("peer", peer).Warnf("Dropping %d byte binary frame with no active transfer", len(data))
		return
	}

	if r.received+int64(len(data)) > r.expected {
		e.failIncoming(r, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, r.expected))
		return
	}

	r.chunks = append(r.chunks, data)
	r.received += int64(len(data))
	e.opts.Events.Progress(peer, r.filename, Incoming, Percent(r.received, r.expected))
}

func (e *Engine) handleEnd(peer string, m *protocol.FileEnd) {
	r, ok := e.incoming[peer]
	if !ok || r.filename != m.Filename {
		e.log.WithField("peer", peer).Warnf("Dropping end of unknown transfer %s", m.Filename)
		return
	}

	if r.received != r.expected {
		e.failIncoming(r, fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, r.received, r.expected))
		return
	}

	delete(e.incoming, peer)
	content := Reassemble(r.chunks)
	if r.expected == 0 {
		e.opts.Events.Progress(peer, r.filename, Incoming, 100)
	}
	e.opts.Events.ProgressCleared(peer, r.filename, Incoming)
	e.log.WithField("peer", peer).Infof("Received %s", r.filename)
	e.opts.Events.FileReceived(peer, r.filename, content)
}

func (e *Engine) failIncoming(r *receiver, err error) {
	if e.incoming[r.peer] != r {
		return
	}
	delete(e.incoming, r.peer)

	e.log.WithField("peer", r.peer).Warnf("Receiving %s failed: %v", r.filename, err)
	e.opts.Events.ProgressCleared(r.peer, r.filename, Incoming)
	e.opts.Events.TransferFailed(r.peer, r.filename, Incoming, transferError(r.peer, r.filename, Incoming, err))
}
