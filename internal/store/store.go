// Package store provides the byte-capacity-limited blob store used for the
// session identity and transfer history.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diesing/rt-share/internal/db"
	"gorm.io/gorm"
)

type BlobStore struct {
	db       *gorm.DB
	capacity int64
}

// NewBlobStore wraps gdb. capacity <= 0 disables the limit.
func NewBlobStore(gdb *gorm.DB, capacity int64) *BlobStore {
	return &BlobStore{db: gdb, capacity: capacity}
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob db.Blob
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	return blob.Value, nil
}

// Set stores value under key, replacing any previous value. The write is
// refused with ErrCapacityExceeded when the other keys plus value would not fit.
func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.capacity > 0 {
			var others int64
			err := tx.Model(&db.Blob{}).
				Where("blob_key <> ?", key).
				Select("COALESCE(SUM(size), 0)").
				Scan(&others).Error
			if err != nil {
				return fmt.Errorf("summing blob sizes: %w", err)
			}
			if others+int64(len(value)) > s.capacity {
				return fmt.Errorf("%w: %q needs %d bytes, %d of %d in use",
					ErrCapacityExceeded, key, len(value), others, s.capacity)
			}
		}

		blob := db.Blob{Key: key, Value: value, Size: int64(len(value))}
		if err := tx.Save(&blob).Error; err != nil {
			return fmt.Errorf("writing %q: %w", key, err)
		}
		return nil
	})
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&db.Blob{}).Error; err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Used(ctx context.Context) (int64, error) {
	var used int64
	err := s.db.WithContext(ctx).Model(&db.Blob{}).
		Select("COALESCE(SUM(size), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, fmt.Errorf("summing blob sizes: %w", err)
	}
	return used, nil
}

// MemoryStore is an in-process Blobs used by tests and ephemeral sessions.
type MemoryStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	capacity int64
}

func NewMemoryStore(capacity int64) *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte), capacity: capacity}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 {
		var others int64
		for k, v := range m.blobs {
			if k != key {
				others += int64(len(v))
			}
		}
		if others+int64(len(value)) > m.capacity {
			return fmt.Errorf("%w: %q needs %d bytes, %d of %d in use",
				ErrCapacityExceeded, key, len(value), others, m.capacity)
		}
	}
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}

func (m *MemoryStore) Used(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var used int64
	for _, v := range m.blobs {
		used += int64(len(v))
	}
	return used, nil
}
