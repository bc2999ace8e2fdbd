// Package protocol defines the JSON envelope exchanged over the websocket.
//
// Every message is one envelope:
//
//	{"cmd": "chat", "status": "ok", "params": {...}, "request_id": "..."}
//
// Commands carry cmd and params. Replies additionally carry status and the
// request_id of the request they answer; IsReply distinguishes the two.
// Params is always a map, never nil, so handlers can index it without
// checking.
package protocol
