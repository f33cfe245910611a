package peer

import (
	"context"
	"testing"

	"github.com/diesing/rt-share/internal/store"
)

func TestShouldInitiate_ExactlyOneSide(t *testing.T) {
	pairs := [][2]string{
		{"A", "B"},
		{"10000", "99999"},
		{"48213", "48231"},
		{"9", "10"},
		{"", "x"},
	}

	for _, p := range pairs {
		ab := ShouldInitiate(p[0], p[1])
		ba := ShouldInitiate(p[1], p[0])
		if ab == ba {
			t.Errorf("%q vs %q: expected exactly one initiator, got %v/%v", p[0], p[1], ab, ba)
		}
	}

	if !ShouldInitiate("B", "A") {
		t.Error("expected the greater id to initiate")
	}
}

func TestGenerateID(t *testing.T) {
	tests := []struct {
		roll int
		want string
	}{
		{0, "10000"},
		{89999, "99999"},
		{38213, "48213"},
	}

	for _, tt := range tests {
		got := GenerateID(func(n int) int {
			if n != 90000 {
				t.Fatalf("expected range 90000, got %d", n)
			}
			return tt.roll
		})
		if got != tt.want {
			t.Errorf("roll %d: expected %s, got %s", tt.roll, tt.want, got)
		}
	}
}

func TestLoadOrCreateIdentity_Persists(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemoryStore(0)

	calls := 0
	randFn := func(n int) int {
		calls++
		return 12345
	}

	first, err := LoadOrCreateIdentity(ctx, blobs, randFn)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	if first != "22345" {
		t.Errorf("expected 22345, got %s", first)
	}

	second, err := LoadOrCreateIdentity(ctx, blobs, randFn)
	if err != nil {
		t.Fatalf("second LoadOrCreateIdentity failed: %v", err)
	}
	if second != first {
		t.Errorf("expected persisted id %s, got %s", first, second)
	}
	if calls != 1 {
		t.Errorf("expected one generation, got %d", calls)
	}
}
