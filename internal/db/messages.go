package db

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/models"
)

type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, sender models.Sender, content string) (*models.Message, error) {
	id, err := GenerateID(PrefixMessage)
	if err != nil {
		return nil, fmt.Errorf("generating message ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender, message, created_at) VALUES (?, ?, ?, ?)`,
		id, sender, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	return &models.Message{
		ID:        id,
		Sender:    sender,
		Message:   content,
		Timestamp: now,
	}, nil
}

// ListAll returns the full log, oldest first.
func (r *MessageRepository) ListAll(ctx context.Context) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender, message, created_at FROM messages ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Message, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

func (r *MessageRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}
	return result.RowsAffected()
}
