package transfer

import (
	"fmt"
	"io"

	"github.com/diesing/rt-share/internal/protocol"
)

// sender is one outgoing file. It is a small state machine driven by pump:
// awaitingAccept until the peer answers the offer, then streaming, pausing
// (waiting) whenever the channel buffer is too full for the next chunk.
type sender struct {
	peer     string
	filename string
	size     int64
	r        io.ReaderAt

	awaitingAccept bool
	waiting        bool
	scheduled      bool
	reported       bool
	sent           int64
}

// start announces the file and begins streaming. On error nothing was sent
// and s is still registered; the caller decides how to report it.
func (e *Engine) start(s *sender) error {
	if err := e.sendTo(s.peer, &protocol.FileMeta{Filename: s.filename, Size: s.size}); err != nil {
		return fmt.Errorf("announcing %s: %w", s.filename, err)
	}

	e.log.WithField("peer", s.peer).Infof("Sending %s (%d bytes)", s.filename, s.size)
	e.opts.Events.Progress(s.peer, s.filename, Outgoing, 0)
	s.reported = true
	e.pump(s)
	return nil
}

// pump sends chunks until the file is done, the buffer needs to drain, or
// the turn's chunk budget is used up.
func (e *Engine) pump(s *sender) {
	if e.outgoing[s.peer] != s {
		return
	}
	dc, err := e.openChannel(s.peer)
	if err != nil {
		e.failOutgoing(s, err)
		return
	}

	chunkSize := int64(e.opts.ChunkSize)
	for turn := 0; s.sent < s.size; turn++ {
		n := s.size - s.sent
		if n > chunkSize {
			n = chunkSize
		}

		// Only a crossing down through the low mark wakes us, so never
		// wait with the buffer already at or below it.
		if buffered := dc.BufferedAmount(); buffered > e.opts.LowWaterMark && buffered+uint64(n) > e.opts.HighWaterMark {
			s.waiting = true
			return
		}
		if turn == e.opts.ChunksPerTurn {
			s.scheduled = true
			e.opts.Loop.Post(func() {
				s.scheduled = false
				if !s.waiting {
					e.pump(s)
				}
			})
			return
		}

		data, err := ReadChunkData(s.r, s.sent, int(n))
		if err != nil {
			e.failOutgoing(s, fmt.Errorf("reading %s: %w", s.filename, err))
			return
		}
		if err := dc.Send(data); err != nil {
			e.failOutgoing(s, err)
			return
		}

		s.sent += n
		e.opts.Events.Progress(s.peer, s.filename, Outgoing, Percent(s.sent, s.size))
	}

	if err := e.send(dc, &protocol.FileEnd{Filename: s.filename}); err != nil {
		e.failOutgoing(s, err)
		return
	}

	delete(e.outgoing, s.peer)
	if s.size == 0 {
		e.opts.Events.Progress(s.peer, s.filename, Outgoing, 100)
	}
	e.opts.Events.ProgressCleared(s.peer, s.filename, Outgoing)
	e.log.WithField("peer", s.peer).Infof("Sent %s", s.filename)
	e.opts.Events.FileSent(s.peer, s.filename, s.size)
}

func (e *Engine) drained(peer string) {
	s, ok := e.outgoing[peer]
	if !ok || !s.waiting {
		return
	}
	s.waiting = false
	if !s.scheduled {
		e.pump(s)
	}
}

func (e *Engine) failOutgoing(s *sender, err error) {
	if e.outgoing[s.peer] != s {
		return
	}
	delete(e.outgoing, s.peer)

	e.log.WithField("peer", s.peer).Warnf("Sending %s failed: %v", s.filename, err)
	if s.reported {
		e.opts.Events.ProgressCleared(s.peer, s.filename, Outgoing)
	}
	e.opts.Events.TransferFailed(s.peer, s.filename, Outgoing, transferError(s.peer, s.filename, Outgoing, err))
}
