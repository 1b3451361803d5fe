package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agentflow-backend/internal/db"
	"agentflow-backend/internal/types"
)

// MessageStore persists chat transcripts in PostgreSQL, one row per message.
type MessageStore struct {
	db *db.DB
}

func NewMessageStore(database *db.DB) *MessageStore {
	return &MessageStore{db: database}
}

// Append stores a single chat message for the user.
func (ms *MessageStore) Append(ctx context.Context, userID string, msg types.ChatMessage) error {
	if userID == "" || msg.ID == "" {
		return fmt.Errorf("user_id and message id are required")
	}

	var data sql.NullString
	if msg.Data != nil {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("failed to encode message data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}
	msgType := msg.Type
	if msgType == "" {
		msgType = types.TypeText
	}

	_, err := ms.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, sender, text, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, userID, msg.Sender, msg.Text, msgType, data, time.UnixMilli(msg.Timestamp).UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// History returns the user's transcript ordered oldest first. Error rows are
// marked retryable on the way out; retryability itself is not a column.
func (ms *MessageStore) History(ctx context.Context, userID string) ([]types.ChatMessage, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	rows, err := ms.db.QueryContext(ctx, `
		SELECT id, sender, text, type, data, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var out []types.ChatMessage
	for rows.Next() {
		var (
			msg       types.ChatMessage
			data      sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.Type, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Timestamp = createdAt.UnixMilli()
		if data.Valid {
			var decoded any
			if err := json.Unmarshal([]byte(data.String), &decoded); err == nil {
				msg.Data = decoded
			}
		}
		msg.IsRetryable = msg.Type == types.TypeError
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat messages: %w", err)
	}
	return out, nil
}

// DeleteAll removes the user's entire transcript.
func (ms *MessageStore) DeleteAll(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := ms.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return nil
}
