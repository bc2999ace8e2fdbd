// ABOUTME: Minimal fake client for E2E testing: connects via websocket, answers scene requests.
// ABOUTME: Usage: fake-client [-addr localhost:8000] [-chat "message"]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Cmd       string         `json:"cmd"`
	Status    string         `json:"status,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8000", "gateway address")
	chat := flag.String("chat", "", "send one chat message after connecting")
	flag.Parse()

	if err := run(*addr, *chat); err != nil {
		log.Fatal(err)
	}
}

func run(addr, chat string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	url := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(env envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	done := make(chan error, 1)
	go func() {
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				done <- err
				return
			}

			switch {
			case env.RequestID != "":
				// Server-initiated request: answer with a canned scene.
				yellow.Printf("<- request %s (request_id=%s)\n", env.Cmd, env.RequestID)
				reply := envelope{
					Cmd:       env.Cmd,
					Status:    "ok",
					RequestID: env.RequestID,
					Params:    cannedReply(env.Cmd, env.Params),
				}
				if err := send(reply); err != nil {
					done <- err
					return
				}
				green.Printf("-> replied to %s\n", env.Cmd)

			case env.Cmd == "connected":
				cyan.Printf("<- connected, session_id=%v\n", env.Params["session_id"])

			default:
				data, _ := json.Marshal(env)
				fmt.Printf("<- %s\n", data)
			}
		}
	}()

	if err := send(envelope{Cmd: "ping"}); err != nil {
		return err
	}

	if chat != "" {
		if err := send(envelope{Cmd: "chat", Params: map[string]any{"message": chat}}); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return fmt.Errorf("connection closed: %w", err)
	}
}

// cannedReply fabricates plausible payloads for the scene commands.
func cannedReply(cmd string, params map[string]any) map[string]any {
	switch cmd {
	case "get_scene_info":
		return map[string]any{
			"camera": map[string]any{"x": 0, "y": 12, "z": -8},
			"blocks": []any{
				map[string]any{"type": 1, "wx": 0, "wy": 0, "wz": 0},
			},
		}
	case "set_blocks":
		blocks, _ := params["blocks"].([]any)
		return map[string]any{"placed": len(blocks)}
	default:
		return map[string]any{}
	}
}
