package catalog

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/blob"
	"coursehub/internal/db"
	"coursehub/internal/mediaurl"
	"coursehub/internal/models"
)

const mp4Header = "\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp41isom"

type fixture struct {
	svc      *Service
	courses  *db.CourseRepository
	users    *db.UserRepository
	database *db.DB
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	root := t.TempDir()
	blobs, err := blob.NewService(root, 1<<20)
	require.NoError(t, err)

	courses := db.NewCourseRepository(database)
	users := db.NewUserRepository(database)
	return &fixture{
		svc:      NewService(courses, users, blobs, 256),
		courses:  courses,
		users:    users,
		database: database,
		root:     root,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func submission(t *testing.T) Submission {
	return Submission{
		Title:          "Go in Practice",
		Description:    `<p>Learn Go</p><script>alert(1)</script>`,
		Price:          500,
		InstructorName: "Ada",
		Level:          "Beginner",
		Category:       "Programming",
		Videos: []Upload{
			{Name: "one.mp4", Content: strings.NewReader(mp4Header + "1")},
			{Name: "two.mp4", Content: strings.NewReader(mp4Header + "2")},
		},
		Image: &Upload{Name: "cover.png", Content: bytes.NewReader(pngBytes(t, 512, 256))},
	}
}

func TestSubmitForcesPendingAndSanitizes(t *testing.T) {
	f := newFixture(t)

	course, err := f.svc.Submit(context.Background(), submission(t))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, course.ApprovalStatus)
	assert.NotContains(t, course.Description, "<script>")
	assert.Contains(t, course.Description, "<p>Learn Go</p>")
	assert.Equal(t, 2, course.NumberOfLectures)
	assert.True(t, course.Visibility)
	require.Len(t, course.Videos, 2)
	assert.True(t, strings.HasPrefix(course.Image, mediaurl.PathPrefix+"course-images/"))
	assert.True(t, strings.HasSuffix(course.Image, ".jpg"))

	storagePath, ok := mediaurl.ParseStoragePath(course.Videos[0])
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(f.root, filepath.FromSlash(storagePath)))
	assert.NoError(t, err)

	stored, err := f.svc.Get(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.Videos, stored.Videos)
}

func TestSubmitRequiresMedia(t *testing.T) {
	f := newFixture(t)

	noVideos := submission(t)
	noVideos.Videos = nil
	_, err := f.svc.Submit(context.Background(), noVideos)
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	noImage := submission(t)
	noImage.Image = nil
	_, err = f.svc.Submit(context.Background(), noImage)
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestSubmitRemovesStoredVideosWhenImageIsInvalid(t *testing.T) {
	f := newFixture(t)

	sub := submission(t)
	sub.Image = &Upload{Name: "cover.png", Content: strings.NewReader("not an image")}

	_, err := f.svc.Submit(context.Background(), sub)
	require.ErrorIs(t, err, blob.ErrInvalidImage)

	var files []string
	_ = filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	assert.Empty(t, files)
}

func TestSubmitRejectsNonVideoUpload(t *testing.T) {
	f := newFixture(t)

	sub := submission(t)
	sub.Videos = []Upload{{Name: "fake.mp4", Content: io.NopCloser(strings.NewReader("plain text"))}}

	_, err := f.svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, blob.ErrDisallowedType)
}

func TestApprovalStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course, err := f.svc.Submit(ctx, submission(t))
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := f.svc.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)

	require.NoError(t, f.svc.Approve(ctx, course.ID))
	approved, err = f.svc.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, course.ID, approved[0].ID)

	require.NoError(t, f.svc.Approve(ctx, course.ID), "approving twice succeeds")
	got, err := f.svc.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.ApprovalStatus)
	approved, err = f.svc.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	require.NoError(t, f.svc.Reject(ctx, course.ID))
	got, err = f.svc.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.ApprovalStatus)

	assert.ErrorIs(t, f.svc.Approve(ctx, "crs_missing"), ErrCourseNotFound)
	_, err = f.svc.Get(ctx, "crs_missing")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestListPurchasableExcludesOwnedCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owned, err := f.svc.Submit(ctx, submission(t))
	require.NoError(t, err)
	other, err := f.svc.Submit(ctx, submission(t))
	require.NoError(t, err)
	require.NoError(t, f.svc.Approve(ctx, owned.ID))
	require.NoError(t, f.svc.Approve(ctx, other.ID))

	user, err := f.users.Create(ctx, "student", "s@example.com", "hash", models.RoleUser)
	require.NoError(t, err)
	_, err = db.NewPurchaseRepository(f.database).Credit(ctx, user.ID, owned.ID, "order_1", "pay_1")
	require.NoError(t, err)

	list, err := f.svc.ListPurchasable(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	bought, err := f.svc.PurchasedBy(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, bought, 1)
	assert.Equal(t, owned.ID, bought[0].ID)

	revenue, err := f.svc.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, revenue)

	featured, err := f.svc.Featured(ctx, 1)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, other.ID, featured[0].ID)

	_, err = f.svc.ListPurchasable(ctx, "usr_missing")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}
