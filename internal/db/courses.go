package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursehub/internal/mediaurl"
	"coursehub/internal/models"
)

const courseColumns = `c.id, c.title, c.description, c.price, c.visibility, c.publish_date, c.image,
	c.number_of_lectures, c.instructor_name, c.level, c.category, c.approval_status, c.created_at, c.updated_at`

// CourseFilter narrows List. Zero values match everything.
type CourseFilter struct {
	Status *models.ApprovalStatus
	// PurchasedBy keeps only courses this user has bought.
	PurchasedBy string
	// NotPurchasedBy drops courses this user has already bought.
	NotPurchasedBy string
	// Newest orders by creation time descending instead of ascending.
	Newest bool
	Limit  int
}

type CourseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts the course and its ordered video paths. ID and timestamps
// are assigned here.
func (r *CourseRepository) Create(ctx context.Context, c *models.Course) error {
	id, err := GenerateID(PrefixCourse)
	if err != nil {
		return fmt.Errorf("generating course ID: %w", err)
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, price, visibility, publish_date, image,
			number_of_lectures, instructor_name, level, category, approval_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Title, c.Description, c.Price, c.Visibility, c.PublishDate.UTC(), c.Image,
		c.NumberOfLectures, c.InstructorName, c.Level, c.Category, c.ApprovalStatus, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	for i, path := range c.Videos {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_videos (course_id, position, path) VALUES (?, ?, ?)`,
			id, i, path,
		); err != nil {
			return fmt.Errorf("inserting course video: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing course: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Videos == nil {
		c.Videos = []string{}
	}
	c.PurchasedBy = []string{}
	return nil
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses c WHERE c.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying course: %w", err)
	}

	if err := r.hydrate(ctx, []*models.Course{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepository) SetStatus(ctx context.Context, id string, status models.ApprovalStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses SET approval_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating course status: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *CourseRepository) List(ctx context.Context, f CourseFilter) ([]*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c`
	var where []string
	var args []any

	if f.Status != nil {
		where = append(where, `c.approval_status = ?`)
		args = append(args, *f.Status)
	}
	if f.PurchasedBy != "" {
		where = append(where, `c.id IN (SELECT course_id FROM purchases WHERE user_id = ?)`)
		args = append(args, f.PurchasedBy)
	}
	if f.NotPurchasedBy != "" {
		where = append(where, `c.id NOT IN (SELECT course_id FROM purchases WHERE user_id = ?)`)
		args = append(args, f.NotPurchasedBy)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if f.Newest {
		query += ` ORDER BY c.created_at DESC, c.rowid DESC`
	} else {
		query += ` ORDER BY c.created_at, c.rowid`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating courses: %w", err)
	}

	if err := r.hydrate(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// Revenue sums price times purchaser count over approved courses.
func (r *CourseRepository) Revenue(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(c.price) FROM purchases p JOIN courses c ON c.id = p.course_id WHERE c.approval_status = ?`,
		models.StatusApproved,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing revenue: %w", err)
	}
	return total.Float64, nil
}

// ReferencedStoragePaths lists the blob storage paths of every course image
// and video.
func (r *CourseRepository) ReferencedStoragePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT image FROM courses UNION SELECT path FROM course_videos`)
	if err != nil {
		return nil, fmt.Errorf("querying media references: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scanning media reference: %w", err)
		}
		if storagePath, ok := mediaurl.ParseStoragePath(ref); ok {
			paths[storagePath] = struct{}{}
		}
	}
	return paths, rows.Err()
}

// hydrate loads videos and purchasers for the given courses in two queries.
func (r *CourseRepository) hydrate(ctx context.Context, courses []*models.Course) error {
	if len(courses) == 0 {
		return nil
	}

	byID := make(map[string]*models.Course, len(courses))
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		c.Videos = []string{}
		c.PurchasedBy = []string{}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	in := placeholders(len(ids))

	videoRows, err := r.db.QueryContext(ctx,
		`SELECT course_id, path FROM course_videos WHERE course_id IN (`+in+`) ORDER BY course_id, position`,
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("querying course videos: %w", err)
	}
	defer videoRows.Close()
	for videoRows.Next() {
		var courseID, path string
		if err := videoRows.Scan(&courseID, &path); err != nil {
			return fmt.Errorf("scanning course video: %w", err)
		}
		byID[courseID].Videos = append(byID[courseID].Videos, path)
	}
	if err := videoRows.Err(); err != nil {
		return fmt.Errorf("iterating course videos: %w", err)
	}

	buyerRows, err := r.db.QueryContext(ctx,
		`SELECT course_id, user_id FROM purchases WHERE course_id IN (`+in+`) ORDER BY rowid`,
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("querying purchasers: %w", err)
	}
	defer buyerRows.Close()
	for buyerRows.Next() {
		var courseID, userID string
		if err := buyerRows.Scan(&courseID, &userID); err != nil {
			return fmt.Errorf("scanning purchaser: %w", err)
		}
		byID[courseID].PurchasedBy = append(byID[courseID].PurchasedBy, userID)
	}
	return buyerRows.Err()
}

func scanCourse(row rowScanner) (*models.Course, error) {
	var c models.Course
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Price,
		&c.Visibility,
		&c.PublishDate,
		&c.Image,
		&c.NumberOfLectures,
		&c.InstructorName,
		&c.Level,
		&c.Category,
		&c.ApprovalStatus,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
