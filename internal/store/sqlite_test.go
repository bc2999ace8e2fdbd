// ABOUTME: Tests for the SQLite conversation store.
// ABOUTME: Uses in-memory databases so no files are touched.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureConversationIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureConversation(ctx, "conv-1", "sess-1"))
	require.NoError(t, s.EnsureConversation(ctx, "conv-1", "sess-1"))

	convs, err := s.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv-1", convs[0].ID)
	assert.Equal(t, "sess-1", convs[0].SessionID)
}

func TestAppendAndReadMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "hello"))
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleAssistant, "hi there"))
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "how are you"))

	msgs, err := s.Messages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi there", msgs[1].Content)
	assert.Equal(t, "how are you", msgs[2].Content)

	for _, m := range msgs {
		assert.Equal(t, "conv-1", m.ConversationID)
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())
	}
}

func TestAppendCreatesConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "conv-new", RoleUser, "first"))

	convs, err := s.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv-new", convs[0].ID)
}

func TestMessagesUnknownConversation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Messages(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessagesEmptyConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureConversation(ctx, "conv-empty", "sess-1"))

	msgs, err := s.Messages(ctx, "conv-empty")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationsIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "conv-a", RoleUser, "a1"))
	require.NoError(t, s.AppendMessage(ctx, "conv-b", RoleUser, "b1"))
	require.NoError(t, s.AppendMessage(ctx, "conv-a", RoleAssistant, "a2"))

	msgsA, err := s.Messages(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, msgsA, 2)

	msgsB, err := s.Messages(ctx, "conv-b")
	require.NoError(t, err)
	require.Len(t, msgsB, 1)
	assert.Equal(t, "b1", msgsB[0].Content)
}
