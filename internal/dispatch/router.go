// ABOUTME: Command router mapping envelope cmd names to registered handlers.
// ABOUTME: Runs each inbound message as a detached task and converts failures to error envelopes.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bluepigwx/agentlite/internal/protocol"
	"github.com/bluepigwx/agentlite/internal/session"
)

// DefaultMaxConcurrent caps concurrently running handlers when the config
// does not say otherwise.
const DefaultMaxConcurrent = 256

// Handler processes one inbound command. It sends its own success envelope;
// a returned error is converted to an error envelope by the dispatch task
// wrapper.
type Handler func(ctx context.Context, s *session.Session, params map[string]any) error

// Router owns the command→handler table and the dispatch boundary.
//
// Each inbound message runs as its own goroutine, never inline with the
// session read loop: a handler may issue a SendRequest back to the very
// client whose reply that read loop must deliver. Handler execution is
// bounded by a semaphore; reply resolution bypasses it so a saturated pool
// can never deadlock an in-flight request.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	slots  chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRouter creates a Router with the given bound on concurrently running
// handlers. Non-positive means DefaultMaxConcurrent.
func NewRouter(maxConcurrent int, logger *slog.Logger) *Router {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Router{
		handlers: make(map[string]Handler),
		slots:    make(chan struct{}, maxConcurrent),
		logger:   logger.With("component", "dispatch"),
	}
}

// Register inserts a handler into the table. Registering the same cmd twice
// overwrites the previous handler with a logged warning
// (last-registration-wins).
func (r *Router) Register(cmd string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[cmd]; exists {
		r.logger.Warn("handler re-registered, overwriting", "cmd", cmd)
	}
	r.handlers[cmd] = h
}

// RegisterBuiltins installs the handlers every deployment ships with.
func (r *Router) RegisterBuiltins() {
	r.Register("ping", handlePing)
	r.Register("new_conversation", handleNewConversation)
}

func (r *Router) lookup(cmd string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[cmd]
	return h, ok
}

// Dispatch routes one raw inbound message as a detached task and returns
// immediately.
func (r *Router) Dispatch(ctx context.Context, s *session.Session, raw []byte) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatchOne(ctx, s, raw)
	}()
}

// Wait blocks until all in-flight dispatch tasks finish.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) dispatchOne(ctx context.Context, s *session.Session, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrMissingCmd) {
			r.sendError(s, "unknown", "missing cmd field")
		} else {
			r.sendError(s, "error", "message must be valid JSON")
		}
		return
	}

	// Client replies to server-initiated requests are matched by request id
	// and must not wait behind the handler pool.
	if env.IsReply() {
		s.ResolveResponse(env.RequestID, env.Status, env.Params)
		return
	}

	handler, ok := r.lookup(env.Cmd)
	if !ok {
		r.sendError(s, env.Cmd, fmt.Sprintf("unknown command: %s", env.Cmd))
		return
	}

	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return
	}

	r.runHandler(ctx, s, env, handler)
}

// runHandler invokes a handler and converts any failure, including a panic,
// into an error envelope. An uncaught failure in a detached task would
// otherwise only be logged and the client's expected reply silently dropped.
func (r *Router) runHandler(ctx context.Context, s *session.Session, env *protocol.Envelope, handler Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "cmd", env.Cmd, "session_id", s.ID, "panic", rec)
			r.sendError(s, env.Cmd, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := handler(ctx, s, env.Params); err != nil {
		r.logger.Error("handler failed", "cmd", env.Cmd, "session_id", s.ID, "error", err)
		r.sendError(s, env.Cmd, err.Error())
	}
}

func (r *Router) sendError(s *session.Session, cmd, reason string) {
	if err := s.SendEnvelope(protocol.NewErrorResponse(cmd, reason)); err != nil {
		r.logger.Debug("failed to send error envelope", "cmd", cmd, "error", err)
	}
}

func handlePing(_ context.Context, s *session.Session, _ map[string]any) error {
	return s.SendEnvelope(protocol.NewResponse("ping", protocol.StatusOK, nil))
}

func handleNewConversation(_ context.Context, s *session.Session, _ map[string]any) error {
	cid := s.NewConversation()
	return s.SendEnvelope(protocol.NewResponse("new_conversation", protocol.StatusOK, map[string]any{
		"conversation_id": cid,
	}))
}
