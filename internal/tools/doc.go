// Package tools holds the callable tool registry and the built-in tools.
//
// Scene tools (get_scene_info, set_blocks) reach into a connected client
// through the bridge loop: look the session up, submit a request onto the
// loop, wait for the client's correlated reply. The calculate tool is a
// local arithmetic evaluator and needs no session.
//
// Tools are registered at startup; re-registering a name overwrites with a
// logged warning.
package tools
