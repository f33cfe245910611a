package peer

import (
	"testing"
	"time"
)

func TestBackoff_Doubles(t *testing.T) {
	zero := func(int64) int64 { return 0 }
	base := 300 * time.Millisecond
	maxDelay := 4 * time.Second

	want := []time.Duration{
		300 * time.Millisecond,
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
		4 * time.Second,
		4 * time.Second,
	}

	for i, w := range want {
		if got := Backoff(i+1, base, maxDelay, time.Second, zero); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestBackoff_Jitter(t *testing.T) {
	var bound int64
	got := Backoff(1, 300*time.Millisecond, 4*time.Second, time.Second, func(n int64) int64 {
		bound = n
		return n - 1
	})

	if bound != int64(time.Second) {
		t.Errorf("expected jitter bound 1s, got %d", bound)
	}
	if got >= 1300*time.Millisecond || got < 1299*time.Millisecond {
		t.Errorf("expected just under 1.3s, got %s", got)
	}
}
