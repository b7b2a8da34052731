package db

import (
	"context"
	"fmt"
	"time"
)

type ProgressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// MarkCompleted records a finished lecture. Repeating an index is a no-op
// and reports added=false.
func (r *ProgressRepository) MarkCompleted(ctx context.Context, userID, courseID string, index int) (added bool, err error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, course_id, video_index, completed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, course_id, video_index) DO NOTHING`,
		userID, courseID, index, time.Now().UTC(),
	)
	if err != nil {
		if IsForeignKeyError(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("recording progress: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows > 0, nil
}

// Completed returns finished lecture indices in the order they were first
// recorded.
func (r *ProgressRepository) Completed(ctx context.Context, userID, courseID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT video_index FROM progress WHERE user_id = ? AND course_id = ? ORDER BY rowid`,
		userID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	defer rows.Close()

	indices := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating progress: %w", err)
	}
	return indices, nil
}
