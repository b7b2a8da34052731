// Package progress records which lectures a user has finished.
package progress

import (
	"context"
	"errors"
	"fmt"

	"coursehub/internal/db"
	"coursehub/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrCourseNotFound = errors.New("course not found")
	ErrInvalidIndex   = errors.New("video index must not be negative")
)

type Store interface {
	MarkCompleted(ctx context.Context, userID, courseID string, index int) (bool, error)
	Completed(ctx context.Context, userID, courseID string) ([]int, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type CourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type Tracker struct {
	store   Store
	users   UserLookup
	courses CourseLookup
}

// Status is a user's progress through one course.
type Status struct {
	CompletedVideos []int `json:"completedVideos"`
	Completed       bool  `json:"completed"`
}

func NewTracker(store Store, users UserLookup, courses CourseLookup) *Tracker {
	return &Tracker{store: store, users: users, courses: courses}
}

// Update marks videoIndex finished. Repeating an index is not an error.
func (t *Tracker) Update(ctx context.Context, userID, courseID string, videoIndex int) error {
	if videoIndex < 0 {
		return ErrInvalidIndex
	}
	if _, err := t.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("looking up user: %w", err)
	}
	if _, err := t.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("looking up course: %w", err)
	}

	if _, err := t.store.MarkCompleted(ctx, userID, courseID, videoIndex); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	return nil
}

// Get never fails for a pairing with nothing recorded; it returns an empty
// set. Completion is only computed when the course can be found.
func (t *Tracker) Get(ctx context.Context, userID, courseID string) (*Status, error) {
	completed, err := t.store.Completed(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	status := &Status{CompletedVideos: completed}
	course, err := t.courses.FindByID(ctx, courseID)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("looking up course: %w", err)
	default:
		status.Completed = IsComplete(completed, course.NumberOfLectures)
	}
	return status, nil
}

// IsComplete reports whether every lecture of a course with total lectures
// has been finished.
func IsComplete(completed []int, total int) bool {
	if total <= 0 {
		return false
	}
	seen := make(map[int]struct{}, len(completed))
	for _, idx := range completed {
		seen[idx] = struct{}{}
	}
	return len(seen) == total
}
