// ABOUTME: Tests for the cross-context bridge loop.
// ABOUTME: Validates fail-fast ordering, result delivery, timeout cancellation, and shutdown.

package ioloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitBeforeStart(t *testing.T) {
	loop := New(testLogger())

	_, err := loop.Submit(context.Background(), func(context.Context) (any, error) {
		return nil, nil
	}, time.Second)

	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestSubmitDeliversResult(t *testing.T) {
	loop := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	t.Run("value", func(t *testing.T) {
		v, err := loop.Submit(ctx, func(context.Context) (any, error) {
			return 42, nil
		}, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.(int) != 42 {
			t.Errorf("expected 42, got %v", v)
		}
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := loop.Submit(ctx, func(context.Context) (any, error) {
			return nil, boom
		}, time.Second)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}

func TestSubmitTimeoutCancelsWork(t *testing.T) {
	loop := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	workCancelled := make(chan struct{})

	_, err := loop.Submit(ctx, func(workCtx context.Context) (any, error) {
		<-workCtx.Done()
		close(workCancelled)
		return nil, workCtx.Err()
	}, 50*time.Millisecond)

	if !errors.Is(err, ErrSubmitTimeout) {
		t.Fatalf("expected ErrSubmitTimeout, got %v", err)
	}

	select {
	case <-workCancelled:
	case <-time.After(time.Second):
		t.Fatal("work context was never cancelled")
	}
}

func TestUnitsInterleave(t *testing.T) {
	loop := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	blockedRunning := make(chan struct{})
	release := make(chan struct{})
	blockedDone := make(chan error, 1)

	go func() {
		_, err := loop.Submit(ctx, func(context.Context) (any, error) {
			close(blockedRunning)
			<-release
			return nil, nil
		}, 5*time.Second)
		blockedDone <- err
	}()

	select {
	case <-blockedRunning:
	case <-time.After(time.Second):
		t.Fatal("first unit never started")
	}

	// An independent unit must complete while the first is still suspended.
	v, err := loop.Submit(ctx, func(context.Context) (any, error) {
		return "done", nil
	}, time.Second)
	if err != nil {
		t.Fatalf("independent unit blocked behind suspended unit: %v", err)
	}
	if v.(string) != "done" {
		t.Errorf("expected done, got %v", v)
	}

	close(release)
	if err := <-blockedDone; err != nil {
		t.Fatalf("suspended unit failed after release: %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	loop := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	loop.Stop()

	_, err := loop.Submit(ctx, func(context.Context) (any, error) {
		return nil, nil
	}, time.Second)

	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestSubmitHonorsCallerContext(t *testing.T) {
	loop := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	callCtx, callCancel := context.WithCancel(ctx)
	callCancel()

	_, err := loop.Submit(callCtx, func(workCtx context.Context) (any, error) {
		<-workCtx.Done()
		return nil, workCtx.Err()
	}, time.Second)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
