// ABOUTME: I/O loop that accepts work submitted from other goroutines and dispatches each unit.
// ABOUTME: Carries (unit-of-work, completion-channel) pairs so workers can block on loop-owned work.

package ioloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotStarted indicates Submit was called before the loop was started.
// This is a startup-ordering bug and callers should treat it as fatal.
var ErrNotStarted = errors.New("ioloop not started")

// ErrStopped indicates the loop shut down before the work could run.
var ErrStopped = errors.New("ioloop stopped")

// ErrSubmitTimeout indicates the submitted work did not complete within the
// caller's deadline. The work's context is cancelled before this is returned.
var ErrSubmitTimeout = errors.New("ioloop submit timed out")

// Work is a unit of loop-owned work. The context is cancelled if the
// submitter gives up waiting or the loop shuts down.
type Work func(ctx context.Context) (any, error)

type result struct {
	value any
	err   error
}

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	work   Work
	done   chan result // buffered, single send
}

// Loop owns channel I/O on behalf of worker goroutines. Exactly one
// goroutine runs the intake; everyone else interacts through Submit. Each
// accepted unit runs on its own goroutine, so a unit suspended waiting on
// one client never delays submissions for other sessions.
type Loop struct {
	tasks   chan *task
	quit    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
	once    sync.Once
	logger  *slog.Logger
}

// New creates a Loop. Start must be called before any Submit.
func New(logger *slog.Logger) *Loop {
	return &Loop{
		tasks:  make(chan *task),
		quit:   make(chan struct{}),
		logger: logger.With("component", "ioloop"),
	}
}

// Start launches the loop goroutine. Safe to call once; the loop runs until
// ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.once.Do(func() {
		l.started.Store(true)
		go l.run(ctx)
	})
}

// Stop shuts the loop down. Work already executing finishes; queued and
// future submissions fail with ErrStopped.
func (l *Loop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.quit)
	}
}

func (l *Loop) run(ctx context.Context) {
	l.logger.Debug("ioloop running")
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.quit:
			return
		case t := <-l.tasks:
			go l.execute(t)
		}
	}
}

func (l *Loop) execute(t *task) {
	// Skip work whose submitter already gave up.
	if t.ctx.Err() != nil {
		t.done <- result{err: t.ctx.Err()}
		return
	}
	value, err := t.work(t.ctx)
	t.done <- result{value: value, err: err}
}

// Submit runs work on the loop goroutine and blocks until it completes or
// timeout elapses. The timeout must be strictly greater than any deadline
// the work enforces internally, so the inner mechanism gets the first say
// and Submit is only the backstop against indefinite blocking.
// On timeout the work's context is cancelled and ErrSubmitTimeout returned.
func (l *Loop) Submit(ctx context.Context, work Work, timeout time.Duration) (any, error) {
	if !l.started.Load() {
		return nil, ErrNotStarted
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{
		ctx:    taskCtx,
		cancel: cancel,
		work:   work,
		done:   make(chan result, 1),
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.tasks <- t:
	case <-l.quit:
		cancel()
		return nil, ErrStopped
	case <-timer.C:
		cancel()
		return nil, ErrSubmitTimeout
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	select {
	case res := <-t.done:
		cancel()
		return res.value, res.err
	case <-l.quit:
		cancel()
		return nil, ErrStopped
	case <-timer.C:
		cancel()
		l.logger.Warn("submitted work exceeded bridge timeout", "timeout", timeout)
		return nil, ErrSubmitTimeout
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}
