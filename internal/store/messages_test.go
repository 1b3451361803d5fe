package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow-backend/internal/types"
)

func TestMessageAppend(t *testing.T) {
	database, mock := newMockDB(t)
	ms := NewMessageStore(database)

	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m1", "user-1", "user", "Show my contacts", "text", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := ms.Append(context.Background(), "user-1", types.ChatMessage{
		ID:        "m1",
		Sender:    types.SenderUser,
		Text:      "Show my contacts",
		Timestamp: time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageHistory(t *testing.T) {
	database, mock := newMockDB(t)
	ms := NewMessageStore(database)

	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "sender", "text", "type", "data", "created_at"}).
		AddRow("m1", "user", "Show my contacts", "text", nil, created).
		AddRow("m2", "ai", "Found 1 contact.", "contacts_list", `[{"id":"1","name":"John Doe"}]`, created.Add(time.Second)).
		AddRow("m3", "ai", "Sorry, I encountered an error: boom", "error", nil, created.Add(2*time.Second))

	mock.ExpectQuery("ORDER BY created_at, id").
		WithArgs("user-1").
		WillReturnRows(rows)

	msgs, err := ms.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, created.UnixMilli(), msgs[0].Timestamp)
	assert.False(t, msgs[0].IsRetryable)

	assert.Equal(t, types.TypeContactsList, msgs[1].Type)
	assert.NotNil(t, msgs[1].Data)

	// Error rows come back retryable.
	assert.True(t, msgs[2].IsRetryable)
}

func TestMessageDeleteAll(t *testing.T) {
	database, mock := newMockDB(t)
	ms := NewMessageStore(database)

	mock.ExpectExec("DELETE FROM chat_messages").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, ms.DeleteAll(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageDeleteAllError(t *testing.T) {
	database, mock := newMockDB(t)
	ms := NewMessageStore(database)

	mock.ExpectExec("DELETE FROM chat_messages").
		WithArgs("user-1").
		WillReturnError(fmt.Errorf("connection reset"))

	err := ms.DeleteAll(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete chat messages")
}

func TestMemoryMessageStoreRoundTrip(t *testing.T) {
	ms := NewMemoryMessageStore()
	ctx := context.Background()

	msg := types.ChatMessage{
		ID:        "m1",
		Sender:    types.SenderAI,
		Text:      "Found 1 contact.",
		Type:      types.TypeContactsList,
		Data:      []types.ContactData{{ID: "1", Name: "John Doe"}},
		Timestamp: time.Now().UnixMilli(),
	}
	require.NoError(t, ms.Append(ctx, "user-1", msg))

	history, err := ms.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.Sender, history[0].Sender)
	assert.Equal(t, msg.Text, history[0].Text)
	assert.Equal(t, msg.Type, history[0].Type)
	assert.Equal(t, msg.Data, history[0].Data)

	require.NoError(t, ms.DeleteAll(ctx, "user-1"))
	history, err = ms.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryHistorySortsByTimestamp(t *testing.T) {
	ms := NewMemoryMessageStore()
	ctx := context.Background()

	require.NoError(t, ms.Append(ctx, "user-1", types.ChatMessage{ID: "m2", Sender: types.SenderAI, Text: "late", Timestamp: 200}))
	require.NoError(t, ms.Append(ctx, "user-1", types.ChatMessage{ID: "m1", Sender: types.SenderUser, Text: "early", Timestamp: 100}))

	history, err := ms.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "early", history[0].Text)
	assert.Equal(t, "late", history[1].Text)
}

func TestMemoryContactStoreFilters(t *testing.T) {
	cs := NewMemoryContactStore()
	ctx := context.Background()

	for _, c := range []types.ContactData{
		{Name: "John Doe", PropertyAddress: "123 Main St"},
		{Name: "Jane Smith", PropertyAddress: "456 Oak Ave"},
		{Name: "Johnny Appleseed"},
	} {
		_, err := cs.Insert(ctx, "user-1", c)
		require.NoError(t, err)
	}

	byName, err := cs.Search(ctx, "user-1", "john", "")
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byAddress, err := cs.Search(ctx, "user-1", "", "main")
	require.NoError(t, err)
	require.Len(t, byAddress, 1)
	assert.Equal(t, "John Doe", byAddress[0].Name)

	// Other users see nothing.
	other, err := cs.Search(ctx, "user-2", "", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}
