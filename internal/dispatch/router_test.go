// ABOUTME: Tests for command routing, error envelopes, builtins, and the dispatch boundary.
// ABOUTME: Covers unknown commands, malformed messages, handler failures, and reply routing.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bluepigwx/agentlite/internal/protocol"
	"github.com/bluepigwx/agentlite/internal/session"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, io.EOF
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) envelopes(t *testing.T) []*protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Envelope, 0, len(c.written))
	for _, data := range c.written {
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("written frame does not decode: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession() (*session.Session, *fakeConn) {
	conn := &fakeConn{}
	return session.New(conn, testLogger()), conn
}

// dispatchAndWait runs one message through the router and waits for the
// detached task to finish.
func dispatchAndWait(r *Router, s *session.Session, raw string) {
	r.Dispatch(context.Background(), s, []byte(raw))
	r.Wait()
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := NewRouter(0, testLogger())
	s, _ := newTestSession()

	got := make(chan map[string]any, 1)
	r.Register("greet", func(_ context.Context, _ *session.Session, params map[string]any) error {
		got <- params
		return nil
	})

	dispatchAndWait(r, s, `{"cmd":"greet","params":{"name":"bob"}}`)

	select {
	case params := <-got:
		if params["name"] != "bob" {
			t.Errorf("handler received wrong params: %v", params)
		}
	default:
		t.Fatal("handler was not invoked")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := NewRouter(0, testLogger())
	s, conn := newTestSession()

	dispatchAndWait(r, s, `{"cmd":"nope"}`)

	envs := conn.envelopes(t)
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	if envs[0].Cmd != "nope" || envs[0].Status != protocol.StatusError {
		t.Errorf("unexpected envelope: %+v", envs[0])
	}
	if envs[0].Params["reason"] != "unknown command: nope" {
		t.Errorf("unexpected reason: %v", envs[0].Params["reason"])
	}
}

func TestDispatchMalformedMessage(t *testing.T) {
	t.Run("invalid JSON", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		s, conn := newTestSession()

		dispatchAndWait(r, s, `{{{`)

		envs := conn.envelopes(t)
		if len(envs) != 1 {
			t.Fatalf("expected exactly 1 error envelope, got %d", len(envs))
		}
		if envs[0].Cmd != "error" || envs[0].Status != protocol.StatusError {
			t.Errorf("unexpected envelope: %+v", envs[0])
		}
	})

	t.Run("missing cmd", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		s, conn := newTestSession()

		dispatchAndWait(r, s, `{"params":{}}`)

		envs := conn.envelopes(t)
		if len(envs) != 1 {
			t.Fatalf("expected 1 envelope, got %d", len(envs))
		}
		if envs[0].Cmd != "unknown" {
			t.Errorf("expected cmd unknown, got %q", envs[0].Cmd)
		}
	})

	t.Run("session survives a bad message", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		r.RegisterBuiltins()
		s, conn := newTestSession()

		dispatchAndWait(r, s, `garbage`)
		dispatchAndWait(r, s, `{"cmd":"ping"}`)

		envs := conn.envelopes(t)
		if len(envs) != 2 {
			t.Fatalf("expected 2 envelopes, got %d", len(envs))
		}
		if envs[1].Cmd != "ping" || envs[1].Status != protocol.StatusOK {
			t.Errorf("ping after bad message failed: %+v", envs[1])
		}
	})
}

func TestDispatchHandlerFailure(t *testing.T) {
	t.Run("error converted to envelope", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		s, conn := newTestSession()

		r.Register("fail", func(context.Context, *session.Session, map[string]any) error {
			return errors.New("database exploded")
		})

		dispatchAndWait(r, s, `{"cmd":"fail"}`)

		envs := conn.envelopes(t)
		if len(envs) != 1 {
			t.Fatalf("expected 1 envelope, got %d", len(envs))
		}
		if envs[0].Cmd != "fail" || envs[0].Params["reason"] != "database exploded" {
			t.Errorf("unexpected envelope: %+v", envs[0])
		}
	})

	t.Run("panic converted to envelope", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		s, conn := newTestSession()

		r.Register("boom", func(context.Context, *session.Session, map[string]any) error {
			panic("unexpected nil")
		})

		dispatchAndWait(r, s, `{"cmd":"boom"}`)

		envs := conn.envelopes(t)
		if len(envs) != 1 {
			t.Fatalf("expected 1 envelope, got %d", len(envs))
		}
		if envs[0].Status != protocol.StatusError {
			t.Errorf("expected error status, got %+v", envs[0])
		}
	})
}

func TestBuiltins(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		r.RegisterBuiltins()
		s, conn := newTestSession()

		dispatchAndWait(r, s, `{"cmd":"ping"}`)

		envs := conn.envelopes(t)
		if len(envs) != 1 || envs[0].Cmd != "ping" || envs[0].Status != protocol.StatusOK {
			t.Fatalf("unexpected ping reply: %+v", envs)
		}
		if len(envs[0].Params) != 0 {
			t.Errorf("expected empty params, got %v", envs[0].Params)
		}
	})

	t.Run("new_conversation", func(t *testing.T) {
		r := NewRouter(0, testLogger())
		r.RegisterBuiltins()
		s, conn := newTestSession()

		dispatchAndWait(r, s, `{"cmd":"new_conversation"}`)

		envs := conn.envelopes(t)
		if len(envs) != 1 || envs[0].Status != protocol.StatusOK {
			t.Fatalf("unexpected reply: %+v", envs)
		}
		cid, _ := envs[0].Params["conversation_id"].(string)
		if cid == "" {
			t.Error("expected a conversation id")
		}
		if s.ConversationID() != cid {
			t.Error("session did not store the new conversation id")
		}
	})
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRouter(0, testLogger())
	s, _ := newTestSession()

	called := make(chan string, 2)
	r.Register("x", func(context.Context, *session.Session, map[string]any) error {
		called <- "first"
		return nil
	})
	r.Register("x", func(context.Context, *session.Session, map[string]any) error {
		called <- "second"
		return nil
	})

	dispatchAndWait(r, s, `{"cmd":"x"}`)

	if got := <-called; got != "second" {
		t.Errorf("expected last registration to win, got %q", got)
	}
}

func TestDispatchRoutesClientReplies(t *testing.T) {
	r := NewRouter(0, testLogger())
	s, conn := newTestSession()

	type outcome struct {
		params map[string]any
		err    error
	}
	out := make(chan outcome, 1)
	go func() {
		params, err := s.SendRequest(context.Background(), "get_scene_info", nil, 5*time.Second)
		out <- outcome{params, err}
	}()

	// Wait for the outbound request to learn its correlation id.
	var reqID string
	deadline := time.Now().Add(2 * time.Second)
	for reqID == "" {
		if time.Now().After(deadline) {
			t.Fatal("request envelope never written")
		}
		for _, env := range conn.envelopes(t) {
			if env.RequestID != "" {
				reqID = env.RequestID
			}
		}
		time.Sleep(time.Millisecond)
	}

	reply, _ := json.Marshal(map[string]any{
		"cmd":        "get_scene_info",
		"status":     "ok",
		"params":     map[string]any{"blocks": "here"},
		"request_id": reqID,
	})
	dispatchAndWait(r, s, string(reply))

	select {
	case res := <-out:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.params["blocks"] != "here" {
			t.Errorf("reply params not delivered: %v", res.params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never unblocked the caller")
	}
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	r := NewRouter(1, testLogger())
	s, _ := newTestSession()

	release := make(chan struct{})
	r.Register("slow", func(context.Context, *session.Session, map[string]any) error {
		<-release
		return nil
	})

	start := time.Now()
	for i := 0; i < 8; i++ {
		r.Dispatch(context.Background(), s, []byte(fmt.Sprintf(`{"cmd":"slow","params":{"i":%d}}`, i)))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Dispatch blocked the caller for %v", elapsed)
	}

	close(release)
	r.Wait()
}
