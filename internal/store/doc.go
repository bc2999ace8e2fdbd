// Package store provides persistent conversation storage using SQLite.
//
// # Architecture
//
// The Store interface covers conversations and their messages; SQLiteStore
// is the single implementation, backed by modernc.org/sqlite so no cgo is
// required.
//
// # SQLite Configuration
//
// The store uses WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests.
//
// # Error Handling
//
// Messages returns ErrConversationNotFound for unknown conversations. All
// methods accept context.Context for cancellation support.
package store
