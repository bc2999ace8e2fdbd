// ABOUTME: HTTP API handlers: health, session listing, agent listing, tool invocation, history.
// ABOUTME: The scene endpoints mirror the tools so clients can be driven without an agent.

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/bluepigwx/agentlite/internal/ioloop"
	"github.com/bluepigwx/agentlite/internal/session"
	"github.com/bluepigwx/agentlite/internal/store"
)

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.handleWebSocket)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("GET /api/sessions", g.handleListSessions)
	mux.HandleFunc("GET /api/agents", g.handleListAgents)
	mux.HandleFunc("GET /api/tools", g.handleListTools)
	mux.HandleFunc("POST /api/tools/{name}/invoke", g.handleInvokeTool)
	mux.HandleFunc("POST /api/chat/completions", g.handleChatCompletions)
	mux.HandleFunc("GET /api/scene_info", g.handleGetSceneInfo)
	mux.HandleFunc("POST /api/set_blocks", g.handleSetBlocks)
	mux.HandleFunc("GET /api/conversations/{id}/messages", g.handleConversationMessages)
}

// SessionInfoResponse is one entry in the GET /api/sessions listing.
type SessionInfoResponse struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Pending        int    `json:"pending_requests"`
}

// SetBlocksRequest is the JSON body for POST /api/set_blocks.
type SetBlocksRequest struct {
	SessionID string `json:"session_id"`
	Blocks    []any  `json:"blocks"`
}

// ChatCompletionRequest is the JSON body for POST /api/chat/completions.
// An empty conversation id starts a fresh conversation.
type ChatCompletionRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// MessageResponse is one message in a conversation history listing.
type MessageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": g.sessions.OnlineCount(),
	})
}

// handleListSessions returns all active sessions from a registry snapshot.
func (g *Gateway) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	snapshot := g.sessions.Snapshot()

	response := make([]SessionInfoResponse, 0, len(snapshot))
	for id, s := range snapshot {
		response = append(response, SessionInfoResponse{
			SessionID:      id,
			ConversationID: s.ConversationID(),
			Pending:        s.PendingCount(),
		})
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleListAgents returns the configured agents.
func (g *Gateway) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, g.agents.List())
}

// handleListTools returns the registered tools.
func (g *Gateway) handleListTools(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, g.tools.List())
}

// handleInvokeTool runs any registered tool directly over HTTP. The request
// body is the tool's argument map.
func (g *Gateway) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	tool, err := g.tools.Get(name)
	if err != nil {
		g.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	args := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		g.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := tool.Run(r.Context(), args)
	if err != nil {
		g.writeToolError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"tool":   name,
		"result": result,
	})
}

// handleChatCompletions runs one exchange with the default agent over HTTP,
// mirroring the websocket chat command for clients without a session.
func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		g.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	a, err := g.agents.Default()
	if err != nil {
		g.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	reply, err := g.agents.Chat(r.Context(), a.Name, conversationID, req.Message)
	if err != nil {
		g.logger.Error("chat completion failed", "conversation_id", conversationID, "error", err)
		g.writeError(w, http.StatusInternalServerError, "chat completion failed")
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"reply":           reply,
		"conversation_id": conversationID,
	})
}

// handleGetSceneInfo drives the get_scene_info tool over HTTP. Unlike agent
// tool calls there is no injected session id, so it comes from the query.
func (g *Gateway) handleGetSceneInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		g.writeError(w, http.StatusBadRequest, "session_id query parameter is required")
		return
	}

	result, err := g.sceneTools.GetSceneInfo(r.Context(), sessionID)
	if err != nil {
		g.writeToolError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

// handleSetBlocks drives the set_blocks tool over HTTP.
func (g *Gateway) handleSetBlocks(w http.ResponseWriter, r *http.Request) {
	var req SetBlocksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		g.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := g.sceneTools.SetBlocks(r.Context(), req.SessionID, req.Blocks)
	if err != nil {
		g.writeToolError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

// handleConversationMessages returns a conversation's history.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	messages, err := g.store.Messages(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			g.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("loading conversation messages", "conversation_id", conversationID, "error", err)
		g.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        response,
	})
}

// writeToolError maps tool failures onto HTTP statuses.
func (g *Gateway) writeToolError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		g.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrRequestTimeout), errors.Is(err, ioloop.ErrSubmitTimeout):
		g.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		g.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("writing JSON response", "error", err)
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
