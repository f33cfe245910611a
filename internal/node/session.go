package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/diesing/rt-share/internal/eventloop"
	"github.com/diesing/rt-share/internal/peer"
	"github.com/diesing/rt-share/internal/signaling"
	"github.com/diesing/rt-share/internal/transfer"
	"github.com/diesing/rt-share/internal/transport"
)

// relay is the part of the signaling client a session drives.
type relay interface {
	peer.Signaler
	Join(id string) error
	Leave(id string) error
}

type fileSource interface {
	io.ReaderAt
	io.Closer
}

// session is one connection to the relay and everything built on top of it.
// A restart replaces the whole session; roster, transcript and history live
// on the Node. All methods run on the event loop.
type session struct {
	n     *Node
	loop  eventloop.Poster
	relay relay
	log   logrus.FieldLogger

	registry *peer.Registry
	engine   *transfer.Engine

	published map[string]peer.Status
	outgoing  map[string]fileSource

	statusTimer    eventloop.Timer
	reconcileTimer eventloop.Timer

	ended   chan error
	started bool
	stopped bool
}

var (
	_ peer.Listener   = (*session)(nil)
	_ peer.Signaler   = (*session)(nil)
	_ transfer.Events = (*session)(nil)
)

// newSession builds the registry and engine. relay must be set before start.
func newSession(n *Node, loop eventloop.Poster) *session {
	s := &session{
		n:         n,
		loop:      loop,
		log:       n.log.WithField("component", "session"),
		published: make(map[string]peer.Status),
		outgoing:  make(map[string]fileSource),
		ended:     make(chan error, 1),
	}

	cfg := n.cfg
	s.registry = peer.NewRegistry(peer.Options{
		LocalID:            n.id,
		Factory:            n.factory,
		Signaler:           s,
		Roster:             n.roster,
		Listener:           s,
		Loop:               loop,
		Log:                n.log,
		RetryCeiling:       cfg.Peers.RetryCeiling,
		BaseDelay:          cfg.Peers.BaseDelay,
		MaxDelay:           cfg.Peers.MaxDelay,
		Jitter:             cfg.Peers.Jitter,
		NegotiationTimeout: cfg.Peers.NegotiationTimeout,
		RandFn:             n.randFn,
		Now:                n.now,
	})
	s.engine = transfer.NewEngine(transfer.Options{
		Loop:          loop,
		Events:        s,
		Log:           n.log,
		ChunkSize:     cfg.Transfer.ChunkSize,
		HighWaterMark: uint64(cfg.Transfer.HighWaterMark),
		LowWaterMark:  uint64(cfg.Transfer.LowWaterMark),
		MaxFileSize:   cfg.Transfer.MaxFileSize,
		ChunksPerTurn: cfg.Transfer.ChunksPerTurn,
	})
	return s
}

func (s *session) start() {
	s.started = true
	if err := s.relay.Join(s.n.id); err != nil {
		s.end(fmt.Errorf("joining relay: %w", err))
		return
	}
	s.log.Infof("Joined relay as %s", s.n.id)
	s.n.observer.SessionStarted(s.n.id)

	s.statusTimer = s.loop.AfterFunc(s.n.cfg.Peers.StatusInterval, s.refreshStatus)
	s.reconcileTimer = s.loop.AfterFunc(s.n.cfg.Peers.ReconcileInterval, s.reconcile)
}

// end reports why the session is over. Only the first reason is kept.
func (s *session) end(err error) {
	select {
	case s.ended <- err:
	default:
	}
}

// stop leaves the relay and tears down every connection. The relay client
// itself is closed by the caller, off the loop.
func (s *session) stop() {
	if s.stopped {
		return
	}
	s.stopped = true

	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	if s.reconcileTimer != nil {
		s.reconcileTimer.Stop()
	}

	if err := s.relay.Leave(s.n.id); err != nil {
		s.log.Debugf("Failed to leave relay: %v", err)
	}
	s.engine.Close()
	s.registry.Close()
	for p := range s.outgoing {
		s.closeOutgoing(p)
	}

	if s.n.roster.MarkAllOffline() {
		s.n.observer.PeersChanged(s.n.roster.List())
	}
	s.publish(map[string]peer.Status{})
}

// handleSignal is the signaling client's handler. It runs on the client's
// read goroutine and hands the event to the loop.
func (s *session) handleSignal(ev signaling.Event) {
	if ev.Kind == signaling.EventClosed {
		err := ev.Err
		if err == nil {
			err = signaling.ErrClosed
		}
		s.end(err)
		return
	}
	s.loop.Post(func() {
		if !s.started || s.stopped {
			return
		}
		s.dispatch(ev)
	})
}

func (s *session) dispatch(ev signaling.Event) {
	log := s.log.WithField("peer", ev.Sender)

	switch ev.Kind {
	case signaling.EventJoined:
		log.Infof("Relay reports %d peer(s) online", len(ev.Peers))
		if s.n.roster.Replace(ev.Peers) {
			s.n.observer.PeersChanged(s.n.roster.List())
		}
		for _, id := range s.registry.Peers() {
			if !s.n.roster.IsOnline(id) {
				s.registry.Remove(id)
			}
		}
		s.registry.Reconcile()

	case signaling.EventUserJoin:
		log.Info("Peer joined")
		if s.n.roster.Join(ev.Peers[0]) {
			s.n.observer.PeersChanged(s.n.roster.List())
		}
		if err := s.registry.SelectOrConnect(ev.Sender); err != nil {
			log.Debugf("Not connecting: %v", err)
		}

	case signaling.EventUserLeft:
		log.Info("Peer left")
		if s.n.roster.Leave(ev.Sender) {
			s.n.observer.PeersChanged(s.n.roster.List())
		}
		s.registry.Remove(ev.Sender)

	case signaling.EventOffer:
		// an offer can overtake the relay's userJoin broadcast
		if s.n.roster.Join(signaling.PeerInfo{ID: ev.Sender}) {
			s.n.observer.PeersChanged(s.n.roster.List())
		}
		s.registry.HandleOffer(ev.Sender, ev.Payload)

	case signaling.EventAnswer:
		s.registry.HandleAnswer(ev.Sender, ev.Payload)

	case signaling.EventCandidate:
		s.registry.HandleCandidate(ev.Sender, ev.Payload)

	case signaling.EventRelayError:
		log.Debugf("Relay error: %v", ev.Err)
	}
}

func (s *session) refreshStatus() {
	if s.stopped {
		return
	}
	s.publish(s.registry.Statuses())
	s.statusTimer = s.loop.AfterFunc(s.n.cfg.Peers.StatusInterval, s.refreshStatus)
}

// publish reports every status that differs from the last published one.
// Peers missing from current count as disconnected.
func (s *session) publish(current map[string]peer.Status) {
	for id, st := range current {
		if prev, ok := s.published[id]; ok && prev == st {
			continue
		}
		s.published[id] = st
		s.n.observer.PeerStatusChanged(id, st)
	}
	for id, prev := range s.published {
		if _, ok := current[id]; ok {
			continue
		}
		delete(s.published, id)
		if prev != peer.Disconnected {
			s.n.observer.PeerStatusChanged(id, peer.Disconnected)
		}
	}
}

func (s *session) reconcile() {
	if s.stopped {
		return
	}
	s.registry.Reconcile()
	s.reconcileTimer = s.loop.AfterFunc(s.n.cfg.Peers.ReconcileInterval, s.reconcile)
}

func (s *session) selectPeer(id string) error {
	if !s.n.roster.IsOnline(id) {
		return fmt.Errorf("%w: %s is offline", ErrNotConnected, id)
	}
	return s.registry.SelectOrConnect(id)
}

func (s *session) sendText(peerID, text string) error {
	if err := s.engine.SendText(peerID, text); err != nil {
		return notConnected(err)
	}
	msg := s.n.transcript.AddText(peerID, s.n.id, text)
	s.n.observer.MessageAdded(peerID, msg)
	return nil
}

// sendFile starts sending src. On success the session owns src and closes
// it when the transfer ends; on error the caller still owns it.
func (s *session) sendFile(peerID, name string, size int64, src fileSource) error {
	if _, busy := s.outgoing[peerID]; busy {
		return transfer.ErrTransferInProgress
	}

	s.outgoing[peerID] = src
	if err := s.engine.SendFile(peerID, name, size, src); err != nil {
		delete(s.outgoing, peerID)
		return notConnected(err)
	}
	return nil
}

func (s *session) closeOutgoing(peerID string) {
	src, ok := s.outgoing[peerID]
	if !ok {
		return
	}
	delete(s.outgoing, peerID)
	if err := src.Close(); err != nil {
		s.log.WithField("peer", peerID).Debugf("Failed to close source file: %v", err)
	}
}

func (s *session) respondToOffer(peerID string, accept bool) error {
	return s.engine.RespondToOffer(peerID, accept)
}

func (s *session) SendOffer(target, desc string) error {
	return s.relay.SendOffer(target, desc)
}

func (s *session) SendAnswer(target, desc string) error {
	return s.relay.SendAnswer(target, desc)
}

func (s *session) SendCandidate(target, candidate string) error {
	return s.relay.SendCandidate(target, candidate)
}

func notConnected(err error) error {
	if errors.Is(err, transfer.ErrPeerNotConnected) {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return err
}

func (s *session) ChannelOpen(peerID string, dc transport.DataChannel) {
	s.engine.Attach(peerID, dc)
}

func (s *session) ChannelClosed(peerID string) {
	s.engine.Detach(peerID)
}

func (s *session) StatusChanged(peerID string, status peer.Status) {
	s.log.WithField("peer", peerID).Debugf("Status %s", status)
}

func (s *session) Fatal(err error) {
	s.log.Errorf("Giving up on the session: %v", err)
	s.end(err)
}

func (s *session) TextReceived(peerID, text string) {
	msg := s.n.transcript.AddText(peerID, peerID, text)
	s.n.observer.MessageAdded(peerID, msg)
}

func (s *session) FileOffered(peerID, filename string, size int64) {
	s.n.observer.FileOffered(peerID, filename, size)
}

func (s *session) FileDenied(peerID, filename string) {
	s.closeOutgoing(peerID)
	s.n.observer.FileDenied(peerID, filename)
}

func (s *session) Progress(peerID, filename string, dir transfer.Direction, percent int) {
	s.n.observer.Progress(peerID, filename, dir, percent)
}

func (s *session) ProgressCleared(peerID, filename string, dir transfer.Direction) {
	s.n.observer.ProgressCleared(peerID, filename, dir)
}

func (s *session) FileReceived(peerID, filename string, content []byte) {
	log := s.log.WithField("peer", peerID)

	if err := s.n.history.Append(context.Background(), peerID, filename, content); err != nil {
		log.Warnf("Failed to archive %s: %v", filename, err)
	}
	if s.n.sink != nil {
		path, err := s.n.sink.Deliver(peerID, filename, content)
		if err != nil {
			log.Errorf("Failed to save %s: %v", filename, err)
		} else {
			s.n.observer.FileSaved(peerID, filename, path)
		}
	}

	msg := s.n.transcript.AddFile(peerID, peerID, filename)
	s.n.observer.MessageAdded(peerID, msg)
}

func (s *session) FileSent(peerID, filename string, size int64) {
	s.closeOutgoing(peerID)
	msg := s.n.transcript.AddFile(peerID, s.n.id, filename)
	s.n.observer.MessageAdded(peerID, msg)
}

func (s *session) TransferFailed(peerID, filename string, dir transfer.Direction, err error) {
	if dir == transfer.Outgoing {
		s.closeOutgoing(peerID)
	}
	s.n.observer.TransferFailed(peerID, filename, err)
}
