// ABOUTME: Represents one persistent websocket client session and its pending requests.
// ABOUTME: Handles raw I/O, request/response correlation by request id, and conversation ids.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bluepigwx/agentlite/internal/protocol"
)

// DefaultRequestTimeout is used when a caller passes a non-positive timeout
// to SendRequest.
const DefaultRequestTimeout = 30 * time.Second

// ErrRequestTimeout indicates no matching reply arrived before the deadline.
var ErrRequestTimeout = errors.New("request timed out waiting for client reply")

// ErrSessionClosed indicates the session was cleaned up while a request was
// still outstanding, or a request was issued after cleanup began.
var ErrSessionClosed = errors.New("session closed")

// RemoteError carries the reason from a client reply with status "error".
type RemoteError struct {
	RequestID string
	Reason    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("client returned error [request_id=%s]: %s", e.RequestID, e.Reason)
}

// Conn is the subset of a websocket connection the session needs.
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type requestResult struct {
	params map[string]any
	err    error
}

// pendingRequest tracks one outstanding server-initiated request.
// The result channel is buffered and receives exactly one value: whichever
// of reply, timeout, or cleanup reaches the entry first removes it from the
// pending map under the session mutex, so the terminal transition is unique.
type pendingRequest struct {
	id       string
	deadline time.Time
	result   chan requestResult
}

// Session is the server-side state for one connected client.
type Session struct {
	ID string

	conn   Conn
	logger *slog.Logger

	// websocket connections do not support concurrent writers
	writeMu sync.Mutex

	mu             sync.Mutex
	conversationID string
	pending        map[string]*pendingRequest
	cleaned        bool
}

// New creates a Session wrapping an accepted websocket connection.
// The session id is freshly generated.
func New(conn Conn, logger *slog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		ID:      id,
		conn:    conn,
		logger:  logger.With("session_id", id),
		pending: make(map[string]*pendingRequest),
	}
}

// Accept completes the connection handshake bookkeeping and logs the new
// identity. The websocket upgrade itself happens in the HTTP handler.
func (s *Session) Accept() {
	s.logger.Info("session established")
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// ReadText receives one raw text message. Only the owning read loop may call
// this.
func (s *Session) ReadText() ([]byte, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
		// Binary and control frames are not part of the protocol.
		s.logger.Debug("ignoring non-text message", "type", msgType)
	}
}

// SendText sends one raw text message. Writes are serialized internally so
// any goroutine may call it.
func (s *Session) SendText(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// SendEnvelope encodes and sends an envelope.
func (s *Session) SendEnvelope(env *protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return s.SendText(data)
}

// SendRequest sends a server-initiated request to the client and blocks the
// calling goroutine until a correlated reply arrives or timeout elapses.
// Multiple concurrent calls on one session are independent; replies are
// matched strictly by request id, never by arrival order.
//
// Returns the reply's params on status "ok", a *RemoteError on status
// "error", ErrRequestTimeout on deadline, and ErrSessionClosed if the
// session is cleaned up while waiting.
func (s *Session) SendRequest(ctx context.Context, cmd string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	pr, err := s.registerPending(timeout)
	if err != nil {
		return nil, err
	}

	env := protocol.NewRequest(cmd, params, pr.id)
	if err := s.SendEnvelope(env); err != nil {
		s.removePending(pr.id)
		return nil, fmt.Errorf("sending request [cmd=%s]: %w", cmd, err)
	}

	s.logger.Debug("request sent", "cmd", cmd, "request_id", pr.id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pr.result:
		if res.err != nil {
			return nil, res.err
		}
		return res.params, nil

	case <-timer.C:
		// The reply may have won the race; prefer it if the entry is gone.
		if !s.removePending(pr.id) {
			res := <-pr.result
			if res.err != nil {
				return nil, res.err
			}
			return res.params, nil
		}
		return nil, fmt.Errorf("%w [cmd=%s, request_id=%s]", ErrRequestTimeout, cmd, pr.id)

	case <-ctx.Done():
		if !s.removePending(pr.id) {
			res := <-pr.result
			if res.err != nil {
				return nil, res.err
			}
			return res.params, nil
		}
		return nil, ctx.Err()
	}
}

// registerPending generates a fresh correlation id not currently in use and
// stores the entry. Fails once cleanup has begun.
func (s *Session) registerPending(timeout time.Duration) (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleaned {
		return nil, ErrSessionClosed
	}

	var id string
	for {
		id = uuid.New().String()
		if _, exists := s.pending[id]; !exists {
			break
		}
	}

	pr := &pendingRequest{
		id:       id,
		deadline: time.Now().Add(timeout),
		result:   make(chan requestResult, 1),
	}
	s.pending[id] = pr
	return pr, nil
}

// removePending deletes the entry if still present. Returns false when the
// entry already reached a terminal state through another path.
func (s *Session) removePending(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[requestID]; !ok {
		return false
	}
	delete(s.pending, requestID)
	return true
}

// ResolveResponse routes a client reply to the matching pending request.
// Returns false if no entry matches (stray or duplicate reply); the call
// then has no side effect.
func (s *Session) ResolveResponse(requestID, status string, params map[string]any) bool {
	s.mu.Lock()
	pr, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("reply for unknown request", "request_id", requestID)
		return false
	}

	if status == protocol.StatusOK {
		pr.result <- requestResult{params: params}
	} else {
		reason := status
		if r, ok := params["reason"].(string); ok && r != "" {
			reason = r
		}
		pr.result <- requestResult{err: &RemoteError{RequestID: requestID, Reason: reason}}
	}
	return true
}

// PendingCount returns the number of outstanding server-initiated requests.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cleanup force-cancels every outstanding request and clears the pending
// table. Called once at disconnect; no new entries can be registered after
// it begins. Safe if some entries already resolved.
func (s *Session) Cleanup() {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return
	}
	s.cleaned = true
	cancelled := make([]*pendingRequest, 0, len(s.pending))
	for _, pr := range s.pending {
		cancelled = append(cancelled, pr)
	}
	s.pending = make(map[string]*pendingRequest)
	s.mu.Unlock()

	for _, pr := range cancelled {
		pr.result <- requestResult{err: fmt.Errorf("%w [request_id=%s]", ErrSessionClosed, pr.id)}
	}

	if len(cancelled) > 0 {
		s.logger.Info("cancelled pending requests on cleanup", "count", len(cancelled))
	}
}

// ConversationID returns the active conversation id, or "" if none exists
// yet.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// EnsureConversation returns the active conversation id, generating and
// storing one on first use.
func (s *Session) EnsureConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID == "" {
		s.conversationID = uuid.New().String()
		s.logger.Info("conversation created", "conversation_id", s.conversationID)
	}
	return s.conversationID
}

// NewConversation unconditionally starts a fresh conversation and returns
// its id.
func (s *Session) NewConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversationID = uuid.New().String()
	s.logger.Info("conversation reset", "conversation_id", s.conversationID)
	return s.conversationID
}
