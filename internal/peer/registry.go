package peer

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diesing/rt-share/internal/eventloop"
	"github.com/diesing/rt-share/internal/transport"
)

var (
	ErrCircuitOpen = errors.New("peer: too many consecutive connection failures")
	ErrSelf        = errors.New("peer: cannot connect to self")
	ErrClosed      = errors.New("peer: registry closed")
)

const channelLabel = "chat"

type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Stable reports whether s is a resting state rather than a transition.
func (s Status) Stable() bool {
	return s == Disconnected || s == Connected
}

type Options struct {
	LocalID  string
	Factory  transport.Factory
	Signaler Signaler
	Roster   Roster
	Listener Listener
	Loop     eventloop.Poster
	Log      logrus.FieldLogger

	RetryCeiling       int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	Jitter             time.Duration
	NegotiationTimeout time.Duration

	// RandFn returns a value in [0, n). Defaults to math/rand.
	RandFn func(n int64) int64
	Now    func() time.Time
}

type state struct {
	id        string
	status    Status
	failures  int
	initiator bool

	pc         transport.PeerConnection
	dc         transport.DataChannel
	channelUp  bool
	candidates []string
	since      time.Time

	// gen changes whenever pc is replaced or torn down; callbacks carry the
	// gen they were registered under and are ignored once it moves on.
	gen   int
	retry eventloop.Timer
}

// Registry owns one connection state per peer. Every method, and every
// callback it registers, runs on the event loop; it holds no locks.
type Registry struct {
	opts    Options
	log     logrus.FieldLogger
	peers   map[string]*state
	tripped bool
	closed  bool
}

func NewRegistry(opts Options) *Registry {
	if opts.RandFn == nil {
		opts.RandFn = rand.Int63n
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryCeiling <= 0 {
		opts.RetryCeiling = 10
	}

	return &Registry{
		opts:  opts,
		log:   opts.Log.WithField("component", "registry"),
		peers: make(map[string]*state),
	}
}

// SelectOrConnect starts a connection to id unless one already exists. The
// side with the greater id makes the offer; the other waits for it.
func (r *Registry) SelectOrConnect(id string) error {
	switch {
	case r.closed:
		return ErrClosed
	case r.tripped:
		return ErrCircuitOpen
	case id == r.opts.LocalID:
		return ErrSelf
	}

	st, ok := r.peers[id]
	if ok && st.status != Disconnected {
		return nil
	}
	if !ok {
		st = &state{id: id}
		r.peers[id] = st
	}
	r.connect(st)
	return nil
}

func (r *Registry) connect(st *state) {
	st.initiator = ShouldInitiate(r.opts.LocalID, st.id)
	r.stopRetry(st)
	r.setStatus(st, Connecting)
	st.since = r.opts.Now()

	log := r.log.WithField("peer", st.id)
	if !st.initiator {
		log.Debug("Waiting for offer from peer")
		return
	}

	log.Debug("Creating offer")
	if err := r.newConnection(st); err != nil {
		r.fail(st, err)
		return
	}

	dc, err := st.pc.CreateDataChannel(channelLabel)
	if err != nil {
		r.fail(st, err)
		return
	}
	r.attachChannel(st, dc, st.gen)

	offer, err := st.pc.CreateOffer()
	if err != nil {
		r.fail(st, err)
		return
	}
	if err := st.pc.SetLocalDescription(offer); err != nil {
		r.fail(st, err)
		return
	}
	if err := r.opts.Signaler.SendOffer(st.id, offer); err != nil {
		r.fail(st, fmt.Errorf("sending offer: %w", err))
	}
}

// HandleOffer answers an offer from id, creating responder state if needed.
// Offers arriving mid-negotiation are refused.
func (r *Registry) HandleOffer(id, desc string) {
	if r.closed || r.tripped || id == r.opts.LocalID {
		return
	}
	log := r.log.WithField("peer", id)

	st, ok := r.peers[id]
	if !ok {
		st = &state{id: id}
		r.peers[id] = st
	}

	switch {
	case st.pc == nil:
	case st.pc.SignalingState() != transport.SignalingStable:
		log.Warnf("Ignoring offer in signaling state %s", st.pc.SignalingState())
		return
	case st.pc.HasRemoteDescription():
		log.Info("Peer restarted its connection, rebuilding")
		r.teardown(st)
	}

	st.initiator = false
	r.stopRetry(st)
	if st.status != Connecting {
		r.setStatus(st, Connecting)
	}
	st.since = r.opts.Now()

	if st.pc == nil {
		if err := r.newConnection(st); err != nil {
			r.fail(st, err)
			return
		}
	}

	if err := st.pc.SetRemoteDescription(desc); err != nil {
		r.fail(st, err)
		return
	}
	r.flushCandidates(st)

	answer, err := st.pc.CreateAnswer()
	if err != nil {
		r.fail(st, err)
		return
	}
	if err := st.pc.SetLocalDescription(answer); err != nil {
		r.fail(st, err)
		return
	}
	if err := r.opts.Signaler.SendAnswer(id, answer); err != nil {
		r.fail(st, fmt.Errorf("sending answer: %w", err))
	}
}

// HandleAnswer applies an answer to our outstanding offer. Anything else is dropped.
func (r *Registry) HandleAnswer(id, desc string) {
	st, ok := r.peers[id]
	if !ok || st.pc == nil || st.pc.SignalingState() != transport.SignalingHaveLocalOffer {
		r.log.WithField("peer", id).Debug("Dropping answer without a pending offer")
		return
	}

	if err := st.pc.SetRemoteDescription(desc); err != nil {
		r.fail(st, err)
		return
	}
	r.flushCandidates(st)
}

// HandleCandidate adds a remote ICE candidate, queueing it until the remote
// description is known.
func (r *Registry) HandleCandidate(id, candidate string) {
	st, ok := r.peers[id]
	if !ok || st.status == Disconnected {
		r.log.WithField("peer", id).Debug("Dropping candidate for unknown peer")
		return
	}

	if st.pc == nil || !st.pc.HasRemoteDescription() {
		st.candidates = append(st.candidates, candidate)
		return
	}
	if err := st.pc.AddICECandidate(candidate); err != nil {
		r.log.WithField("peer", id).Warnf("Failed to add ICE candidate: %v", err)
	}
}

func (r *Registry) flushCandidates(st *state) {
	pending := st.candidates
	st.candidates = nil
	for _, c := range pending {
		if err := st.pc.AddICECandidate(c); err != nil {
			r.log.WithField("peer", st.id).Warnf("Failed to add queued ICE candidate: %v", err)
		}
	}
}

func (r *Registry) newConnection(st *state) error {
	pc, err := r.opts.Factory.NewPeerConnection()
	if err != nil {
		return err
	}

	st.gen++
	gen := st.gen
	st.pc = pc

	pc.OnICECandidate(func(c string) {
		r.opts.Loop.Post(func() {
			if !r.current(st, gen) {
				return
			}
			if err := r.opts.Signaler.SendCandidate(st.id, c); err != nil {
				r.log.WithField("peer", st.id).Warnf("Failed to send ICE candidate: %v", err)
			}
		})
	})

	pc.OnConnectionStateChange(func(s transport.ConnectionState) {
		r.opts.Loop.Post(func() {
			if !r.current(st, gen) {
				return
			}
			r.log.WithField("peer", st.id).Debugf("Connection state %s", s)
			if s.Failed() {
				r.fail(st, fmt.Errorf("connection %s", s))
			}
		})
	})

	pc.OnDataChannel(func(dc transport.DataChannel) {
		r.opts.Loop.Post(func() {
			if !r.current(st, gen) {
				_ = dc.Close()
				return
			}
			r.attachChannel(st, dc, gen)
		})
	})

	return nil
}

func (r *Registry) attachChannel(st *state, dc transport.DataChannel, gen int) {
	st.dc = dc

	dc.OnOpen(func() {
		r.opts.Loop.Post(func() {
			if !r.current(st, gen) || st.channelUp {
				return
			}
			st.channelUp = true
			st.failures = 0
			r.setStatus(st, Connected)
			r.log.WithField("peer", st.id).Info("Data channel open")
			r.opts.Listener.ChannelOpen(st.id, dc)
		})
	})

	dc.OnClose(func() {
		r.opts.Loop.Post(func() {
			if !r.current(st, gen) {
				return
			}
			r.fail(st, errors.New("data channel closed"))
		})
	})
}

func (r *Registry) current(st *state, gen int) bool {
	return !r.closed && r.peers[st.id] == st && st.gen == gen
}

// fail records a connection failure and either schedules a retry or, at the
// ceiling, trips the circuit breaker.
func (r *Registry) fail(st *state, cause error) {
	log := r.log.WithField("peer", st.id)
	r.stopRetry(st)
	r.teardown(st)

	if r.tripped {
		r.setStatus(st, Disconnected)
		return
	}

	st.failures++
	log.Warnf("Connection failed (%d/%d): %v", st.failures, r.opts.RetryCeiling, cause)

	if st.failures >= r.opts.RetryCeiling {
		r.tripped = true
		r.setStatus(st, Disconnected)
		log.Error("Retry ceiling reached, giving up")
		r.opts.Listener.Fatal(fmt.Errorf("%w: peer %s failed %d times", ErrCircuitOpen, st.id, st.failures))
		return
	}

	if !r.opts.Roster.IsOnline(st.id) {
		r.setStatus(st, Disconnected)
		return
	}

	r.setStatus(st, Reconnecting)
	delay := Backoff(st.failures, r.opts.BaseDelay, r.opts.MaxDelay, r.opts.Jitter, r.opts.RandFn)
	gen := st.gen
	log.Debugf("Reconnecting in %s", delay)

	st.retry = r.opts.Loop.AfterFunc(delay, func() {
		if !r.current(st, gen) || r.tripped || st.status != Reconnecting {
			return
		}
		st.retry = nil
		if !r.opts.Roster.IsOnline(st.id) {
			r.setStatus(st, Disconnected)
			return
		}
		r.connect(st)
	})
}

// teardown closes the connection and channel handles. The state itself stays.
func (r *Registry) teardown(st *state) {
	if st.channelUp {
		st.channelUp = false
		r.opts.Listener.ChannelClosed(st.id)
	}
	st.gen++
	if st.dc != nil {
		_ = st.dc.Close()
		st.dc = nil
	}
	if st.pc != nil {
		_ = st.pc.Close()
		st.pc = nil
	}
	st.candidates = nil
}

func (r *Registry) stopRetry(st *state) {
	if st.retry != nil {
		st.retry.Stop()
		st.retry = nil
	}
}

func (r *Registry) setStatus(st *state, s Status) {
	if st.status == s {
		return
	}
	st.status = s
	r.opts.Listener.StatusChanged(st.id, s)
}

// Remove destroys the state for a peer that left.
func (r *Registry) Remove(id string) {
	st, ok := r.peers[id]
	if !ok {
		return
	}
	r.stopRetry(st)
	r.teardown(st)
	r.setStatus(st, Disconnected)
	delete(r.peers, id)
}

// Reconcile connects to every online peer that has no live connection and
// fails negotiations that have been stuck for longer than the timeout.
func (r *Registry) Reconcile() {
	if r.closed || r.tripped {
		return
	}

	now := r.opts.Now()
	for _, id := range r.opts.Roster.OnlinePeers() {
		if id == r.opts.LocalID {
			continue
		}

		st, ok := r.peers[id]
		if !ok || st.status == Disconnected {
			_ = r.SelectOrConnect(id)
			continue
		}

		stuck := st.status == Connecting && st.pc != nil &&
			r.opts.NegotiationTimeout > 0 && now.Sub(st.since) > r.opts.NegotiationTimeout
		if stuck {
			r.fail(st, errors.New("negotiation timed out"))
		}
		if r.tripped {
			return
		}
	}
}

func (r *Registry) Status(id string) Status {
	if st, ok := r.peers[id]; ok {
		return st.status
	}
	return Disconnected
}

func (r *Registry) Statuses() map[string]Status {
	out := make(map[string]Status, len(r.peers))
	for id, st := range r.peers {
		out[id] = st.status
	}
	return out
}

// Peers returns the ids with state, sorted.
func (r *Registry) Peers() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Channel returns the open data channel for id, if any.
func (r *Registry) Channel(id string) (transport.DataChannel, bool) {
	st, ok := r.peers[id]
	if !ok || !st.channelUp {
		return nil, false
	}
	return st.dc, true
}

func (r *Registry) Tripped() bool {
	return r.tripped
}

// Close tears down every connection. The registry is unusable afterwards.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	for id, st := range r.peers {
		r.stopRetry(st)
		r.teardown(st)
		r.setStatus(st, Disconnected)
		delete(r.peers, id)
	}
	r.closed = true
}
