// Package ioloop provides the bridge between synchronous callers and the
// gateway's asynchronous session machinery.
//
// A Loop is a single intake goroutine consuming submitted work functions
// and dispatching each onto its own goroutine: units interleave, so one
// unit suspended on a slow client never stalls work for other sessions.
// Submit schedules a function onto the loop and blocks the caller until the
// work completes, the submit timeout fires, or the caller's context is
// cancelled; on timeout the work's own context is cancelled too, so a
// function already running can observe the abandonment and stop.
//
// Submitting before Start fails fast with ErrNotStarted rather than
// parking the caller forever. After Stop, submissions fail with
// ErrStopped.
package ioloop
