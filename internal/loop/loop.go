// Package loop provides the single consumer goroutine on which session
// notifications are delivered.
package loop

import (
	"context"
	"log/slog"
	"sync"
)

// Loop executes posted functions one at a time, in the order they were
// posted, on the goroutine running Run. Post never blocks.
type Loop struct {
	name string

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New creates a Loop. Nothing runs until Run is called.
func New(name string) *Loop {
	return &Loop{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It returns false if the loop has stopped, in which case
// fn is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		slog.Debug("loop stopped, dropping task", "loop", l.name)
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued functions not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run drains the queue until ctx is cancelled. Functions still queued at
// that point are discarded. Panics raised by posted functions are not
// recovered.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.stop()

	slog.Debug("loop started", "loop", l.name)

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Sync blocks until every function posted before the call has run, or ctx
// expires. It must not be called from the loop goroutine.
func (l *Loop) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if !l.Post(func() { close(reached) }) {
		return context.Canceled
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) stop() {
	l.mu.Lock()
	dropped := len(l.queue)
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	slog.Debug("loop stopped", "loop", l.name, "dropped", dropped)
}
