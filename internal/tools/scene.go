// ABOUTME: Scene manipulation tools that send requests to a client over its websocket session.
// ABOUTME: Runs off the session loop, so all channel work goes through the ioloop bridge.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bluepigwx/agentlite/internal/ioloop"
	"github.com/bluepigwx/agentlite/internal/session"
)

// SceneTools issues scene commands to connected clients on behalf of agent
// or HTTP callers running on worker goroutines.
//
// The bridge timeout is the request timeout plus a grace period, so the
// inner request deadline always fires first and the bridge only backstops
// against indefinite blocking.
type SceneTools struct {
	sessions       *session.Registry
	loop           *ioloop.Loop
	requestTimeout time.Duration
	bridgeGrace    time.Duration
	logger         *slog.Logger
}

// NewSceneTools creates the scene toolset.
func NewSceneTools(sessions *session.Registry, loop *ioloop.Loop, requestTimeout, bridgeGrace time.Duration, logger *slog.Logger) *SceneTools {
	if requestTimeout <= 0 {
		requestTimeout = session.DefaultRequestTimeout
	}
	if bridgeGrace <= 0 {
		bridgeGrace = 30 * time.Second
	}
	return &SceneTools{
		sessions:       sessions,
		loop:           loop,
		requestTimeout: requestTimeout,
		bridgeGrace:    bridgeGrace,
		logger:         logger.With("component", "scene_tools"),
	}
}

// RegisterAll registers the scene tools into a registry.
func (st *SceneTools) RegisterAll(reg *Registry) {
	reg.Register(&Tool{
		Name:        "get_scene_info",
		Description: "Fetch the client scene: camera position and all block data.",
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sessionID, _ := args["session_id"].(string)
			return st.GetSceneInfo(ctx, sessionID)
		},
	})
	reg.Register(&Tool{
		Name:        "set_blocks",
		Description: "Place a batch of blocks in the client scene. Each block needs type, wx, wy, wz.",
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sessionID, _ := args["session_id"].(string)
			blocks, ok := args["blocks"].([]any)
			if !ok {
				return nil, fmt.Errorf("missing or invalid blocks param")
			}
			return st.SetBlocks(ctx, sessionID, blocks)
		},
	})
}

// request looks the session up and submits its SendRequest onto the bridge.
func (st *SceneTools) request(ctx context.Context, sessionID, cmd string, params map[string]any) (map[string]any, error) {
	s, err := st.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	value, err := st.loop.Submit(ctx, func(ctx context.Context) (any, error) {
		return s.SendRequest(ctx, cmd, params, st.requestTimeout)
	}, st.requestTimeout+st.bridgeGrace)
	if err != nil {
		return nil, err
	}
	return value.(map[string]any), nil
}

// GetSceneInfo asks the client for its current scene contents.
func (st *SceneTools) GetSceneInfo(ctx context.Context, sessionID string) (map[string]any, error) {
	return st.request(ctx, sessionID, "get_scene_info", nil)
}

// SetBlocks places blocks in the client scene. Fractional coordinates are
// floored: models produce floats, block coordinates must be integers.
func (st *SceneTools) SetBlocks(ctx context.Context, sessionID string, blocks []any) (map[string]any, error) {
	sanitized := make([]map[string]any, 0, len(blocks))
	for i, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("block %d is not an object", i)
		}
		out := map[string]any{"type": block["type"]}
		for _, axis := range []string{"wx", "wy", "wz"} {
			v, err := toFloat(block[axis])
			if err != nil {
				return nil, fmt.Errorf("block %d: %s: %w", i, axis, err)
			}
			out[axis] = int(math.Floor(v))
		}
		sanitized = append(sanitized, out)
	}

	return st.request(ctx, sessionID, "set_blocks", map[string]any{"blocks": sanitized})
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
