// Package peer owns session identities and the per-peer connection state.
package peer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/diesing/rt-share/internal/store"
)

const IdentityKey = "sessionId"

// GenerateID returns a random five digit decimal id.
func GenerateID(randFn func(n int) int) string {
	return strconv.Itoa(10000 + randFn(90000))
}

// LoadOrCreateIdentity returns the identity persisted in blobs, creating and
// storing a new one on first use.
func LoadOrCreateIdentity(ctx context.Context, blobs store.Blobs, randFn func(n int) int) (string, error) {
	data, err := blobs.Get(ctx, IdentityKey)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("loading identity: %w", err)
	}

	id := GenerateID(randFn)
	if err := blobs.Set(ctx, IdentityKey, []byte(id)); err != nil {
		return "", fmt.Errorf("saving identity: %w", err)
	}
	return id, nil
}

// ShouldInitiate reports whether local makes the offer to remote. For any two
// distinct ids exactly one side initiates.
func ShouldInitiate(local, remote string) bool {
	return local > remote
}
