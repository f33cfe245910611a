// Package node is the session façade: it owns the identity, roster,
// transcript and history, and runs relay sessions, restarting them when
// they fail.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diesing/rt-share/internal/config"
	"github.com/diesing/rt-share/internal/eventloop"
	"github.com/diesing/rt-share/internal/history"
	"github.com/diesing/rt-share/internal/peer"
	"github.com/diesing/rt-share/internal/signaling"
	"github.com/diesing/rt-share/internal/store"
	"github.com/diesing/rt-share/internal/transport"
	"github.com/diesing/rt-share/internal/transport/webrtc"
)

var (
	ErrNotConnected = errors.New("node: peer not connected")
	ErrNoSession    = errors.New("node: no active session")
)

const loopQueue = 256

type Options struct {
	Config config.Config
	Blobs  store.Blobs

	// Factory and Dialer default to pion and gorilla websocket.
	Factory transport.Factory
	Dialer  signaling.Dialer

	Observer Observer
	Sink     FileSink
	Logger   logrus.FieldLogger

	RandFn func(n int64) int64
	Now    func() time.Time
}

type Node struct {
	cfg  config.Config
	id   string
	log  logrus.FieldLogger
	loop *eventloop.Loop

	factory  transport.Factory
	dialer   signaling.Dialer
	observer Observer
	sink     FileSink
	randFn   func(n int64) int64
	now      func() time.Time

	history *history.Store

	// owned by the loop
	roster     *Roster
	transcript *Transcript
	session    *session
}

// New loads the identity and history. Nothing touches the network until Run.
func New(opts Options) (*Node, error) {
	if opts.Blobs == nil {
		return nil, errors.New("node: Blobs is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.RandFn == nil {
		opts.RandFn = rand.Int63n
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Factory == nil {
		opts.Factory = webrtc.New(opts.Config.ICEServers)
	}
	if opts.Dialer == nil {
		opts.Dialer = signaling.WebSocketDialer{}
	}

	ctx := context.Background()
	randInt := func(n int) int { return int(opts.RandFn(int64(n))) }
	id, err := peer.LoadOrCreateIdentity(ctx, opts.Blobs, randInt)
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(ctx, opts.Blobs, opts.Config.History.Budget, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Node{
		cfg:        opts.Config,
		id:         id,
		log:        opts.Logger.WithField("id", id),
		loop:       eventloop.New(loopQueue),
		factory:    opts.Factory,
		dialer:     opts.Dialer,
		observer:   opts.Observer,
		sink:       opts.Sink,
		randFn:     opts.RandFn,
		now:        opts.Now,
		history:    hist,
		roster:     NewRoster(id),
		transcript: NewTranscript(opts.Now),
	}, nil
}

func (n *Node) ID() string { return n.id }

func (n *Node) History() *history.Store { return n.history }

// Run keeps a relay session going until ctx is cancelled. A session that
// fails to connect in time, loses the relay, or trips the circuit breaker is
// replaced by a fresh one after the restart delay. Run may be called once.
func (n *Node) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go n.loop.Run(loopCtx)
	defer func() {
		stopLoop()
		<-n.loop.Done()
	}()

	n.log.Info("Node starting...")
	for {
		err := n.runSession(ctx)
		if ctx.Err() != nil {
			n.log.Info("Node stopped")
			return nil
		}

		n.log.Warnf("Session ended: %v", err)
		n.loop.Post(func() { n.observer.SessionError(err) })

		n.log.Infof("Restarting in %s", n.cfg.Signaling.RestartDelay)
		timer := time.NewTimer(n.cfg.Signaling.RestartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			n.log.Info("Node stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (n *Node) runSession(ctx context.Context) error {
	s := newSession(n, n.loop)

	dialCtx, cancel := context.WithTimeout(ctx, n.cfg.Signaling.ConnectTimeout)
	client, err := signaling.Dial(dialCtx, n.dialer, n.cfg.Relay, s.handleSignal, n.log)
	cancel()
	if err != nil {
		return err
	}
	s.relay = client

	if err := n.loop.Call(ctx, func() {
		n.session = s
		s.start()
	}); err != nil {
		client.Close()
		return err
	}

	var cause error
	select {
	case <-ctx.Done():
	case cause = <-s.ended:
	}

	// the client's read goroutine may be blocked posting to the loop, so
	// the loop must keep running until the client is closed
	_ = n.loop.Call(context.Background(), func() {
		s.stop()
		if n.session == s {
			n.session = nil
		}
	})
	if err := client.Close(); err != nil {
		n.log.Debugf("Closing relay connection: %v", err)
	}
	return cause
}

// with runs f against the current session on the loop.
func (n *Node) with(ctx context.Context, f func(s *session) error) error {
	var err error
	callErr := n.loop.Call(ctx, func() {
		if n.session == nil {
			err = ErrNoSession
			return
		}
		err = f(n.session)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// SelectPeer connects to an online peer unless a connection already exists.
func (n *Node) SelectPeer(ctx context.Context, peerID string) error {
	return n.with(ctx, func(s *session) error { return s.selectPeer(peerID) })
}

func (n *Node) SendText(ctx context.Context, peerID, text string) error {
	return n.with(ctx, func(s *session) error { return s.sendText(peerID, text) })
}

// SendFile offers the file at path to peerID. It returns once the transfer
// has started; completion is reported through the Observer.
func (n *Node) SendFile(ctx context.Context, peerID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.IsDir() {
		f.Close()
		return fmt.Errorf("%s is a directory", path)
	}

	// the task closes f on failure; once sendFile succeeds the session owns it
	var sendErr error
	if err := n.loop.Call(ctx, func() {
		if n.session == nil {
			sendErr = ErrNoSession
		} else {
			sendErr = n.session.sendFile(peerID, info.Name(), info.Size(), f)
		}
		if sendErr != nil {
			f.Close()
		}
	}); err != nil {
		return err
	}
	return sendErr
}

func (n *Node) RespondToOffer(ctx context.Context, peerID string, accept bool) error {
	return n.with(ctx, func(s *session) error { return s.respondToOffer(peerID, accept) })
}

func (n *Node) Status(ctx context.Context, peerID string) (peer.Status, error) {
	status := peer.Disconnected
	err := n.loop.Call(ctx, func() {
		if n.session != nil {
			status = n.session.registry.Status(peerID)
		}
	})
	return status, err
}

func (n *Node) Peers(ctx context.Context) ([]PeerRecord, error) {
	var peers []PeerRecord
	err := n.loop.Call(ctx, func() { peers = n.roster.List() })
	return peers, err
}

func (n *Node) Messages(ctx context.Context, peerID string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := n.loop.Call(ctx, func() { msgs = n.transcript.Messages(peerID) })
	return msgs, err
}
