// Package gateway orchestrates the agentlite server components.
//
// # Overview
//
// The gateway package is the central coordinator of the agentlite server.
// It owns and manages all major components: the session registry, the
// command router, the bridge loop, the agent manager, the conversation
// store, and the HTTP server carrying the websocket endpoint.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config     *config.Config
//	    sessions   *session.Registry
//	    router     *dispatch.Router
//	    loop       *ioloop.Loop
//	    agents     *agent.Manager
//	    store      store.Store
//	    tools      *tools.Registry
//	    httpServer *http.Server
//	    // ... and more
//	}
//
// # Websocket Endpoint
//
// Clients connect at /ws. On accept the gateway registers a session and
// announces it:
//
//	{"cmd": "connected", "status": "ok", "params": {"session_id": "..."}}
//
// Every subsequent text frame is handed to the router as a detached task.
// The receive loop never awaits dispatch: a handler may issue a request
// back to the same client, and that reply arrives through the same loop.
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - GET /api/sessions - List connected sessions
//   - GET /api/agents - List configured agents
//   - GET /api/tools - List registered tools
//   - GET /api/scene_info - Query a client's scene state
//   - POST /api/set_blocks - Place blocks in a client's scene
//   - GET /api/conversations/{id}/messages - Conversation history
//   - GET /health - Liveness check
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	err = gw.Run(ctx)
//
// Run starts the bridge loop before the HTTP listener; handlers may submit
// bridge work from the first accepted message. Cancelling the context shuts
// the server down gracefully: HTTP drain, bridge stop, router drain, store
// close, in that order.
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, Run/Shutdown
//   - ws.go: Websocket upgrade, session lifecycle, receive loop
//   - api.go: HTTP handlers
package gateway
