// ABOUTME: The chat command handler wiring the websocket dispatch layer to agent inference.
// ABOUTME: Ensures a conversation exists, runs the default agent, and replies with the result.

package agent

import (
	"context"
	"fmt"

	"github.com/bluepigwx/agentlite/internal/dispatch"
	"github.com/bluepigwx/agentlite/internal/protocol"
	"github.com/bluepigwx/agentlite/internal/session"
)

// ChatHandler returns the handler for the "chat" command.
//
// Request params:  message (string, required)
// Response params: reply, conversation_id
//
// Inference is long-running; the dispatch layer already runs handlers on
// worker goroutines off the session read loop, so this blocks freely.
func ChatHandler(mgr *Manager) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, params map[string]any) error {
		message, _ := params["message"].(string)
		if message == "" {
			return fmt.Errorf("missing message param")
		}

		a, err := mgr.Default()
		if err != nil {
			return err
		}

		conversationID := s.EnsureConversation()

		reply, err := mgr.Chat(ctx, a.Name, conversationID, message)
		if err != nil {
			return err
		}

		return s.SendEnvelope(protocol.NewResponse("chat", protocol.StatusOK, map[string]any{
			"reply":           reply,
			"conversation_id": conversationID,
		}))
	}
}
