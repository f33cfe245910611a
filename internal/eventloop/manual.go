package eventloop

import (
	"sort"
	"time"
)

// Manual is a single-threaded Poster for tests. Nothing runs until Drain or
// Advance is called.
type Manual struct {
	now    time.Duration
	queue  []func()
	timers []*manualTimer
	seq    int
}

var _ Poster = (*Manual)(nil)

type manualTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(f func()) bool {
	m.queue = append(m.queue, f)
	return true
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Drain runs queued tasks, including ones they post, until the queue is empty.
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		f := m.queue[0]
		m.queue = m.queue[1:]
		f()
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	m.Drain()
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.at
		t.fired = true
		t.f()
		m.Drain()
	}
	m.now = target
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (m *Manual) Now() time.Duration {
	return m.now
}

func (m *Manual) nextDue(target time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at != m.timers[j].at {
			return m.timers[i].at < m.timers[j].at
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at > target {
		return nil
	}
	return m.timers[0]
}
