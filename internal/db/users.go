package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursehub/internal/models"
)

const userColumns = `id, username, email, password_hash, role, otp_hash, otp_expires_at, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, username, email, passwordHash string, role models.Role) (*models.User, error) {
	id, err := GenerateID(PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, email, passwordHash, role, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:               id,
		Username:         username,
		Email:            email,
		Role:             role,
		PasswordHash:     passwordHash,
		PurchasedCourses: []string{},
		Progress:         []models.CourseProgress{},
		CreatedAt:        now,
		UpdatedAt:        &now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// FindProfile returns the user with purchased course IDs and per-course
// progress filled in.
func (r *UserRepository) FindProfile(ctx context.Context, id string) (*models.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	purchased, err := r.purchasedCourseIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PurchasedCourses = purchased

	progress, err := r.progressForUsers(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	u.Progress = progress[id]
	if u.Progress == nil {
		u.Progress = []models.CourseProgress{}
	}

	return u, nil
}

// SetOTP stores the hashed one-time code, replacing any earlier one.
func (r *UserRepository) SetOTP(ctx context.Context, userID, codeHash string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET otp_hash = ?, otp_expires_at = ?, updated_at = ? WHERE id = ?`,
		codeHash, expiresAt.UTC(), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	return checkRowsAffected(result)
}

// ConsumeOTP clears a matching, unexpired code and returns its owner.
// A second call with the same code finds nothing.
func (r *UserRepository) ConsumeOTP(ctx context.Context, email, codeHash string, now time.Time) (*models.User, error) {
	return r.findOne(ctx,
		`UPDATE users SET otp_hash = NULL, otp_expires_at = NULL, updated_at = ?
		WHERE email = ? AND otp_hash = ? AND otp_expires_at > ?
		RETURNING `+userColumns,
		now.UTC(), email, codeHash, now.UTC(),
	)
}

func (r *UserRepository) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET otp_hash = NULL, otp_expires_at = NULL WHERE otp_expires_at IS NOT NULL AND otp_expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("clearing expired otps: %w", err)
	}
	return result.RowsAffected()
}

// ListWithProgress returns ordinary users that have completed at least one
// lecture, each with course summaries attached to their progress entries.
func (r *UserRepository) ListWithProgress(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		WHERE role = ? AND id IN (SELECT DISTINCT user_id FROM progress)
		ORDER BY username, id`,
		models.RoleUser,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	var ids []string
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	progress, err := r.progressForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		purchased, err := r.purchasedCourseIDs(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.PurchasedCourses = purchased
		u.Progress = progress[u.ID]
	}

	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (r *UserRepository) purchasedCourseIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT course_id FROM purchases WHERE user_id = ? ORDER BY rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying purchases: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepository) progressForUsers(ctx context.Context, userIDs []string) (map[string][]models.CourseProgress, error) {
	out := make(map[string][]models.CourseProgress, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT p.user_id, p.course_id, c.title, c.number_of_lectures, p.video_index
		FROM progress p
		JOIN courses c ON c.id = p.course_id
		WHERE p.user_id IN (`+placeholders(len(userIDs))+`)
		ORDER BY p.user_id, p.course_id, p.rowid`,
		stringArgs(userIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var summary models.CourseSummary
		var index int
		if err := rows.Scan(&userID, &summary.ID, &summary.Title, &summary.NumberOfLectures, &index); err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}

		entries := out[userID]
		if n := len(entries); n > 0 && entries[n-1].CourseID == summary.ID {
			entries[n-1].CompletedVideos = append(entries[n-1].CompletedVideos, index)
		} else {
			s := summary
			entries = append(entries, models.CourseProgress{
				CourseID:        summary.ID,
				Course:          &s,
				CompletedVideos: []int{index},
			})
		}
		out[userID] = entries
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating progress: %w", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var otpHash sql.NullString
	var otpExpiresAt, updatedAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&otpHash,
		&otpExpiresAt,
		&u.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.OTPHash = nullStringToPtr(otpHash)
	u.OTPExpiresAt = nullTimeToPtr(otpExpiresAt)
	u.UpdatedAt = nullTimeToPtr(updatedAt)
	u.PurchasedCourses = []string{}
	u.Progress = []models.CourseProgress{}

	return &u, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}
