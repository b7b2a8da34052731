// Package catalog manages course submission, the approval workflow and
// course listings.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"coursehub/internal/blob"
	"coursehub/internal/constants"
	"coursehub/internal/db"
	"coursehub/internal/mediaurl"
	"coursehub/internal/models"
)

var (
	ErrInvalidSubmission = errors.New("invalid course submission")
	ErrCourseNotFound    = errors.New("course not found")
	ErrUserNotFound      = errors.New("user not found")
)

type CourseStore interface {
	Create(ctx context.Context, c *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SetStatus(ctx context.Context, id string, status models.ApprovalStatus) error
	List(ctx context.Context, f db.CourseFilter) ([]*models.Course, error)
	Revenue(ctx context.Context) (float64, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListWithProgress(ctx context.Context) ([]*models.User, error)
}

type MediaStore interface {
	Save(ctx context.Context, kind blob.Kind, originalName string, src io.Reader) (*blob.StoredBlob, error)
	Delete(storagePath string) error
}

// Upload is one submitted media file.
type Upload struct {
	Name    string
	Content io.Reader
}

type Submission struct {
	Title            string
	Description      string
	Price            float64
	Visibility       *bool
	PublishDate      time.Time
	NumberOfLectures int
	InstructorName   string
	Level            string
	Category         string
	Videos           []Upload
	Image            *Upload
}

type Service struct {
	courses      CourseStore
	users        UserStore
	media        MediaStore
	policy       *bluemonday.Policy
	imageMaxEdge int
}

func NewService(courses CourseStore, users UserStore, media MediaStore, imageMaxEdge int) *Service {
	return &Service{
		courses:      courses,
		users:        users,
		media:        media,
		policy:       bluemonday.UGCPolicy(),
		imageMaxEdge: imageMaxEdge,
	}
}

// Submit stores the media and creates the course as Pending. Stored files
// are removed again if anything after the first save fails.
func (s *Service) Submit(ctx context.Context, sub Submission) (course *models.Course, err error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	var stored []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range stored {
			if delErr := s.media.Delete(p); delErr != nil {
				slog.Warn("failed to remove media after rejected submission", "component", "catalog", "path", p, "error", delErr)
			}
		}
	}()

	videos := make([]string, 0, len(sub.Videos))
	for _, v := range sub.Videos {
		saved, err := s.media.Save(ctx, blob.KindCourseVideo, v.Name, v.Content)
		if err != nil {
			return nil, fmt.Errorf("storing video %q: %w", v.Name, err)
		}
		stored = append(stored, saved.StoragePath)
		videos = append(videos, mediaurl.Reference(saved.StoragePath))
	}

	normalized, err := blob.NormalizeStaticImage(sub.Image.Content, s.imageMaxEdge, 0)
	if err != nil {
		return nil, fmt.Errorf("processing image %q: %w", sub.Image.Name, err)
	}
	image, err := s.media.Save(ctx, blob.KindCourseImage, "cover"+normalized.Ext, bytes.NewReader(normalized.Data))
	if err != nil {
		return nil, fmt.Errorf("storing image %q: %w", sub.Image.Name, err)
	}
	stored = append(stored, image.StoragePath)

	visibility := true
	if sub.Visibility != nil {
		visibility = *sub.Visibility
	}
	lectures := sub.NumberOfLectures
	if lectures == 0 {
		lectures = len(videos)
	}
	publishDate := sub.PublishDate
	if publishDate.IsZero() {
		publishDate = time.Now().UTC()
	}

	course = &models.Course{
		Title:            strings.TrimSpace(sub.Title),
		Description:      s.policy.Sanitize(sub.Description),
		Price:            sub.Price,
		Visibility:       visibility,
		PublishDate:      publishDate,
		Videos:           videos,
		Image:            mediaurl.Reference(image.StoragePath),
		NumberOfLectures: lectures,
		InstructorName:   strings.TrimSpace(sub.InstructorName),
		Level:            strings.TrimSpace(sub.Level),
		Category:         strings.TrimSpace(sub.Category),
		ApprovalStatus:   models.StatusPending,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("saving course: %w", err)
	}

	slog.Info("course submitted", "component", "catalog", "course_id", course.ID, "videos", len(videos))
	return course, nil
}

func validateSubmission(sub Submission) error {
	switch {
	case len(sub.Videos) == 0:
		return fmt.Errorf("%w: at least one video is required", ErrInvalidSubmission)
	case len(sub.Videos) > constants.MaxCourseVideos:
		return fmt.Errorf("%w: at most %d videos are allowed", ErrInvalidSubmission, constants.MaxCourseVideos)
	case sub.Image == nil:
		return fmt.Errorf("%w: an image is required", ErrInvalidSubmission)
	case sub.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidSubmission)
	case sub.NumberOfLectures < 0:
		return fmt.Errorf("%w: numberOfLectures must not be negative", ErrInvalidSubmission)
	case strings.TrimSpace(sub.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidSubmission)
	}
	return nil
}

func (s *Service) Approve(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.StatusApproved)
}

func (s *Service) Reject(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.StatusRejected)
}

// setStatus overwrites the status whatever it currently is.
func (s *Service) setStatus(ctx context.Context, id string, status models.ApprovalStatus) error {
	err := s.courses.SetStatus(ctx, id, status)
	if errors.Is(err, db.ErrNotFound) {
		return ErrCourseNotFound
	}
	if err != nil {
		return err
	}
	slog.Info("course status changed", "component", "catalog", "course_id", id, "status", status)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Course, error) {
	c, err := s.courses.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrCourseNotFound
	}
	return c, err
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Course, error) {
	return s.courses.List(ctx, db.CourseFilter{})
}

func (s *Service) ListPending(ctx context.Context) ([]*models.Course, error) {
	return s.listByStatus(ctx, models.StatusPending, db.CourseFilter{})
}

func (s *Service) ListApproved(ctx context.Context) ([]*models.Course, error) {
	return s.listByStatus(ctx, models.StatusApproved, db.CourseFilter{})
}

// Featured returns the newest approved courses.
func (s *Service) Featured(ctx context.Context, limit int) ([]*models.Course, error) {
	if limit <= 0 {
		limit = constants.FeaturedCourseLimit
	}
	return s.listByStatus(ctx, models.StatusApproved, db.CourseFilter{Newest: true, Limit: limit})
}

// ListPurchasable returns approved courses the user has not bought yet.
func (s *Service) ListPurchasable(ctx context.Context, userID string) ([]*models.Course, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.listByStatus(ctx, models.StatusApproved, db.CourseFilter{NotPurchasedBy: userID})
}

func (s *Service) PurchasedBy(ctx context.Context, userID string) ([]*models.Course, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.courses.List(ctx, db.CourseFilter{PurchasedBy: userID})
}

func (s *Service) Revenue(ctx context.Context) (float64, error) {
	return s.courses.Revenue(ctx)
}

func (s *Service) StudentsWithProgress(ctx context.Context) ([]*models.User, error) {
	return s.users.ListWithProgress(ctx)
}

func (s *Service) listByStatus(ctx context.Context, status models.ApprovalStatus, f db.CourseFilter) ([]*models.Course, error) {
	f.Status = &status
	return s.courses.List(ctx, f)
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	_, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
