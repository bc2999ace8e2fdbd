// Package dispatch routes inbound websocket messages to command handlers.
//
// # Overview
//
// The Router maps command names to handlers and runs every inbound message
// as a detached task. Dispatch returns immediately; the session's read loop
// is never blocked by handler work.
//
// # Message Classes
//
// Three kinds of messages arrive, decided in order:
//
//  1. Undecodable or cmd-less payloads get an error envelope back.
//  2. Replies (status and request_id both set) are routed to the session's
//     pending-request table. Replies bypass the worker limit so that
//     saturated handlers waiting on clients can always be unblocked.
//  3. Everything else is a command: looked up, or echoed back with an
//     "unknown command" error.
//
// # Handler Contract
//
//	type Handler func(ctx context.Context, s *session.Session, params map[string]any) error
//
// A returned error or a panic becomes an error envelope to the client under
// the command's own name; the session survives. Registering a name twice
// overwrites the earlier handler with a logged warning.
//
// Handler concurrency is capped by the server.max_dispatch setting
// (default 256).
package dispatch
