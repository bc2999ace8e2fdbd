// Package session manages websocket client sessions and request correlation.
//
// # Overview
//
// A Session wraps one websocket connection with serialized writes, a
// conversation binding, and a table of pending server-to-client requests.
// The Registry tracks all live sessions under a single lock.
//
// # Request Correlation
//
// The server can call INTO a client and wait for its answer:
//
//	params, err := s.SendRequest(ctx, "get_scene_info", nil, 30*time.Second)
//
// SendRequest tags the outgoing envelope with a fresh request id, parks the
// caller on a single-use channel, and returns when the client's reply is
// routed back through ResolveResponse, the timeout fires, or the context is
// cancelled. Exactly one of those outcomes wins: the pending entry is
// removed under the session lock, and whoever removes it first owns the
// result. Late replies after a timeout are logged and dropped.
//
// # Lifecycle
//
//	s := registry.Accept(conn)   // register, assign uuid
//	...
//	s.Cleanup()                  // fail all pending requests
//	registry.Disconnect(s)       // deregister (idempotent)
//	s.Close()                    // close the websocket
//
// After Cleanup, new SendRequest calls fail immediately with
// ErrSessionClosed.
//
// # Errors
//
//   - ErrRequestTimeout: the client did not reply in time
//   - ErrSessionClosed: the session was cleaned up
//   - ErrSessionNotFound: registry lookup miss
//   - RemoteError: the client replied with an error status
package session
