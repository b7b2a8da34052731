package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursehub/internal/models"
)

// ErrCourseUnavailable is returned when crediting a course that is not
// approved for sale.
var ErrCourseUnavailable = errors.New("course not available for purchase")

type PurchaseRepository struct {
	db *DB
}

func NewPurchaseRepository(db *DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Credit records that userID bought courseID with the given gateway payment.
// The user must exist and the course must be approved. A payment ID seen
// before, or a course the user already owns, is reported with
// credited=false and no error.
func (r *PurchaseRepository) Credit(ctx context.Context, userID, courseID, orderID, paymentID string) (credited bool, err error) {
	id, err := GenerateID(PrefixPurchase)
	if err != nil {
		return false, fmt.Errorf("generating purchase ID: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("querying user: %w", err)
	}

	var price float64
	var status models.ApprovalStatus
	err = tx.QueryRowContext(ctx,
		`SELECT price, approval_status FROM courses WHERE id = ?`, courseID,
	).Scan(&price, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("querying course: %w", err)
	}
	if status != models.StatusApproved {
		return false, ErrCourseUnavailable
	}

	var owned int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE user_id = ? AND course_id = ?`, userID, courseID,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("checking ownership: %w", err)
	}
	if owned > 0 {
		return false, tx.Commit()
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, course_id, payment_id, order_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payment_id) DO NOTHING`,
		id, userID, courseID, paymentID, orderID, price, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting purchase: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing purchase: %w", err)
	}
	return rows > 0, nil
}
