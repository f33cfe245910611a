// Package history archives received files in a blob store under a total
// byte budget, evicting the oldest entries first.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/diesing/rt-share/internal/store"
)

const indexKey = "history/index"

var ErrOutOfRange = errors.New("history: no such entry")

func contentKey(seq uint64) string {
	return fmt.Sprintf("history/%d", seq)
}

// Store keeps the index in memory and mirrors it to the blob store after
// every change. Contents are only read back on demand.
type Store struct {
	mu     sync.Mutex
	blobs  store.Blobs
	budget int64
	log    logrus.FieldLogger

	idx   index
	total int64
}

// Open loads the persisted index. A budget <= 0 disables eviction.
func Open(ctx context.Context, blobs store.Blobs, budget int64, log logrus.FieldLogger) (*Store, error) {
	s := &Store{
		blobs:  blobs,
		budget: budget,
		log:    log.WithField("component", "history"),
	}

	raw, err := blobs.Get(ctx, indexKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("loading history index: %w", err)
	}

	idx, err := decodeIndex(raw)
	if err != nil {
		s.log.Warnf("Discarding unreadable history index: %v", err)
		return s, nil
	}
	s.idx = idx
	for _, e := range idx.entries {
		s.total += e.Size
	}

	if s.overBudget() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for s.overBudget() {
			if err := s.evictOldest(ctx); err != nil {
				return nil, err
			}
		}
		if err := s.saveIndex(ctx); err != nil {
			return nil, err
		}
	}

	s.log.Debugf("Loaded %d entries (%d bytes)", len(s.idx.entries), s.total)
	return s, nil
}

// Append archives content and then evicts from the front until the total
// fits the budget again or the store is empty. An entry larger than the whole
// budget therefore leaves nothing behind.
func (s *Store) Append(ctx context.Context, sender, filename string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := encodedContentSize(len(content))
	e := Entry{Seq: s.idx.nextSeq, Size: size, Sender: sender, Filename: filename}
	s.idx.nextSeq++

	data := encodeContent(content)
	evicted := false
	for {
		err := s.blobs.Set(ctx, contentKey(e.Seq), data)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrCapacityExceeded) || len(s.idx.entries) == 0 {
			if evicted {
				s.persistAfterFailure(ctx)
			}
			return fmt.Errorf("archiving %s: %w", filename, err)
		}
		s.log.Debugf("Store is full, evicting to make room for %s", filename)
		if err := s.evictOldest(ctx); err != nil {
			if evicted {
				s.persistAfterFailure(ctx)
			}
			return err
		}
		evicted = true
	}

	s.idx.entries = append(s.idx.entries, e)
	s.total += size
	for s.overBudget() {
		if err := s.evictOldest(ctx); err != nil {
			s.persistAfterFailure(ctx)
			return err
		}
	}

	return s.saveIndex(ctx)
}

func (s *Store) overBudget() bool {
	return s.budget > 0 && s.total > s.budget && len(s.idx.entries) > 0
}

func (s *Store) evictOldest(ctx context.Context) error {
	e := s.idx.entries[0]
	if err := s.blobs.Delete(ctx, contentKey(e.Seq)); err != nil {
		return fmt.Errorf("evicting %s: %w", e.Filename, err)
	}
	s.idx.entries = s.idx.entries[1:]
	s.total -= e.Size
	s.log.WithField("sender", e.Sender).Infof("Evicted %s from history", e.Filename)
	return nil
}

func (s *Store) saveIndex(ctx context.Context) error {
	if err := s.blobs.Set(ctx, indexKey, encodeIndex(s.idx)); err != nil {
		return fmt.Errorf("saving history index: %w", err)
	}
	return nil
}

func (s *Store) persistAfterFailure(ctx context.Context) {
	if err := s.saveIndex(ctx); err != nil {
		s.log.Warnf("History index is out of date: %v", err)
	}
}

// Entries returns the archived entries, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.idx.entries))
	copy(out, s.idx.entries)
	return out
}

// Content reads back the file at position i of Entries.
func (s *Store) Content(ctx context.Context, i int) ([]byte, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.idx.entries) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	e := s.idx.entries[i]
	s.mu.Unlock()

	raw, err := s.blobs.Get(ctx, contentKey(e.Seq))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", e.Filename, err)
	}
	return decodeContent(raw)
}

// TotalSize is the encoded size of all retained entries.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idx.entries)
}
