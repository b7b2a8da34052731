package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/db"
	"coursehub/internal/models"
)

func newTracker(t *testing.T) (*Tracker, *models.User, *models.Course) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	ctx := context.Background()

	users := db.NewUserRepository(database)
	courses := db.NewCourseRepository(database)

	user, err := users.Create(ctx, "student", "s@example.com", "hash", models.RoleUser)
	require.NoError(t, err)
	course := &models.Course{
		Title:            "Go",
		PublishDate:      time.Now(),
		Videos:           []string{"/uploads/course-videos/a.mp4", "/uploads/course-videos/b.mp4"},
		Image:            "/uploads/course-images/a.jpg",
		NumberOfLectures: 2,
		ApprovalStatus:   models.StatusApproved,
	}
	require.NoError(t, courses.Create(ctx, course))

	return NewTracker(db.NewProgressRepository(database), users, courses), user, course
}

func TestUpdateIsIdempotent(t *testing.T) {
	tracker, user, course := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Update(ctx, user.ID, course.ID, 0))
	require.NoError(t, tracker.Update(ctx, user.ID, course.ID, 0))

	status, err := tracker.Get(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, status.CompletedVideos)
	assert.False(t, status.Completed)

	require.NoError(t, tracker.Update(ctx, user.ID, course.ID, 1))
	status, err = tracker.Get(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, status.CompletedVideos)
	assert.True(t, status.Completed)
}

func TestGetWithoutRecordIsEmpty(t *testing.T) {
	tracker, user, course := newTracker(t)

	status, err := tracker.Get(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.NotNil(t, status.CompletedVideos)
	assert.Empty(t, status.CompletedVideos)

	status, err = tracker.Get(context.Background(), "usr_nobody", "crs_nothing")
	require.NoError(t, err)
	assert.Empty(t, status.CompletedVideos)
}

func TestUpdateErrors(t *testing.T) {
	tracker, user, course := newTracker(t)
	ctx := context.Background()

	assert.ErrorIs(t, tracker.Update(ctx, "usr_missing", course.ID, 0), ErrUserNotFound)
	assert.ErrorIs(t, tracker.Update(ctx, user.ID, "crs_missing", 0), ErrCourseNotFound)
	assert.ErrorIs(t, tracker.Update(ctx, user.ID, course.ID, -1), ErrInvalidIndex)
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name      string
		completed []int
		total     int
		want      bool
	}{
		{name: "all", completed: []int{2, 0, 1}, total: 3, want: true},
		{name: "partial", completed: []int{0}, total: 3, want: false},
		{name: "no_lectures", completed: nil, total: 0, want: false},
		{name: "duplicates_do_not_count", completed: []int{0, 0}, total: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplete(tt.completed, tt.total))
		})
	}
}
