// Package eventloop runs every state transition of a session on one
// goroutine. Callbacks from other goroutines are posted as tasks.
package eventloop

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("eventloop: stopped")

type Timer interface {
	Stop() bool
}

// Poster is what components need from a loop: a way to enqueue work and to
// schedule it later. Timer callbacks run on the loop.
type Poster interface {
	Post(f func()) bool
	AfterFunc(d time.Duration, f func()) Timer
}

type Loop struct {
	tasks chan func()
	done  chan struct{}
}

var _ Poster = (*Loop)(nil)

func New(queue int) *Loop {
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled. Tasks posted afterwards are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-l.tasks:
			f()
		}
	}
}

// Post enqueues f. It reports false once the loop has stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

// Call runs f on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// the task may have been queued behind the stop
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}
