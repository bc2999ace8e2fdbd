// ABOUTME: Storage interface for conversation history kept across chat turns.
// ABOUTME: Defines the Store contract; sqlite.go provides the SQLite implementation.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrConversationNotFound indicates the conversation id is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Conversation groups the messages exchanged within one session dialogue.
type Conversation struct {
	ID        string
	SessionID string
	CreatedAt time.Time
}

// Store persists conversations and their messages.
type Store interface {
	// EnsureConversation records a conversation if not already present.
	EnsureConversation(ctx context.Context, id, sessionID string) error

	// AppendMessage adds one message to a conversation, creating the
	// conversation row if needed.
	AppendMessage(ctx context.Context, conversationID, role, content string) error

	// Messages returns a conversation's messages in chronological order.
	// Returns ErrConversationNotFound for an unknown conversation.
	Messages(ctx context.Context, conversationID string) ([]Message, error)

	// Conversations lists all recorded conversations, newest first.
	Conversations(ctx context.Context) ([]Conversation, error)

	// Close releases the underlying resources.
	Close() error
}
