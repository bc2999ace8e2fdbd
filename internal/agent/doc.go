// Package agent manages the configured assistants and runs chat exchanges.
//
// # Overview
//
// Agents are built once at startup from configuration. Each agent binds a
// system prompt to a Completer, the interface hiding how replies are
// produced:
//
//   - OpenAICompleter talks to any OpenAI-compatible chat completions
//     endpoint (vLLM, Ollama, LocalAI)
//   - EchoCompleter replies with the user's message, for running without a
//     model endpoint
//
// # Chat Exchanges
//
// Manager.Chat is one full exchange: load history from the store, complete,
// persist both turns:
//
//	reply, err := mgr.Chat(ctx, "helper", conversationID, "hello")
//
// ChatHandler adapts this to the websocket dispatch layer as the "chat"
// command.
package agent
