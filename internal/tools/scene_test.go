// ABOUTME: Tests for the scene tools driving session requests through the bridge.
// ABOUTME: Exercises the worker-goroutine path: registry lookup, Submit, reply, coordinate flooring.

package tools

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bluepigwx/agentlite/internal/ioloop"
	"github.com/bluepigwx/agentlite/internal/protocol"
	"github.com/bluepigwx/agentlite/internal/session"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
}

func (c *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error { return nil }

// lastEnvelope waits for an outbound envelope and decodes it.
func (c *fakeConn) lastEnvelope(t *testing.T) *protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		n := len(c.written)
		var data []byte
		if n > 0 {
			data = c.written[n-1]
		}
		c.mu.Unlock()

		if data != nil {
			env, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("outbound frame does not decode: %v", err)
			}
			return env
		}
		if time.Now().After(deadline) {
			t.Fatal("no envelope written")
		}
		time.Sleep(time.Millisecond)
	}
}

func newSceneFixture(t *testing.T) (*SceneTools, *session.Session, *fakeConn) {
	t.Helper()

	logger := testLogger()
	sessions := session.NewRegistry(logger)
	conn := &fakeConn{}
	s := sessions.Accept(conn)

	loop := ioloop.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	loop.Start(ctx)

	st := NewSceneTools(sessions, loop, 2*time.Second, time.Second, logger)
	return st, s, conn
}

func TestGetSceneInfo(t *testing.T) {
	st, s, conn := newSceneFixture(t)

	type outcome struct {
		result map[string]any
		err    error
	}
	out := make(chan outcome, 1)
	go func() {
		result, err := st.GetSceneInfo(context.Background(), s.ID)
		out <- outcome{result, err}
	}()

	env := conn.lastEnvelope(t)
	if env.Cmd != "get_scene_info" || env.RequestID == "" {
		t.Fatalf("unexpected outbound request: %+v", env)
	}

	s.ResolveResponse(env.RequestID, protocol.StatusOK, map[string]any{"camera": "data"})

	select {
	case res := <-out:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.result["camera"] != "data" {
			t.Errorf("reply not delivered: %v", res.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tool call hung")
	}
}

func TestSetBlocksFloorsCoordinates(t *testing.T) {
	st, s, conn := newSceneFixture(t)

	blocks := []any{
		map[string]any{"type": float64(1), "wx": 1.9, "wy": -0.2, "wz": 3.0},
	}

	out := make(chan error, 1)
	go func() {
		_, err := st.SetBlocks(context.Background(), s.ID, blocks)
		out <- err
	}()

	env := conn.lastEnvelope(t)
	if env.Cmd != "set_blocks" {
		t.Fatalf("unexpected outbound request: %+v", env)
	}

	sent, ok := env.Params["blocks"].([]any)
	if !ok || len(sent) != 1 {
		t.Fatalf("unexpected blocks payload: %v", env.Params["blocks"])
	}
	block := sent[0].(map[string]any)
	// JSON round trip turns the ints back into float64.
	if block["wx"].(float64) != 1 || block["wy"].(float64) != -1 || block["wz"].(float64) != 3 {
		t.Errorf("coordinates not floored: %v", block)
	}

	s.ResolveResponse(env.RequestID, protocol.StatusOK, map[string]any{"placed": 1})
	if err := <-out; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetBlocksRejectsMalformedBlocks(t *testing.T) {
	st, s, _ := newSceneFixture(t)

	_, err := st.SetBlocks(context.Background(), s.ID, []any{"not an object"})
	if err == nil {
		t.Fatal("expected error")
	}

	_, err = st.SetBlocks(context.Background(), s.ID, []any{
		map[string]any{"type": 1, "wx": "east", "wy": 0, "wz": 0},
	})
	if err == nil {
		t.Fatal("expected error for non-numeric coordinate")
	}
}

func TestSceneToolsSessionNotFound(t *testing.T) {
	st, _, _ := newSceneFixture(t)

	_, err := st.GetSceneInfo(context.Background(), "gone")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
