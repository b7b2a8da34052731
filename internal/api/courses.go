package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"coursehub/internal/catalog"
	"coursehub/internal/models"
)

type CourseHandler struct {
	catalog *catalog.Service
}

func NewCourseHandler(courses *catalog.Service) *CourseHandler {
	return &CourseHandler{catalog: courses}
}

// GET /courses
func (h *CourseHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListApproved(r.Context())
	h.writeList(w, courses, err)
}

// GET /selectedCourses
func (h *CourseHandler) Featured(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.Featured(r.Context(), 0)
	h.writeList(w, courses, err)
}

// GET /allcourses
func (h *CourseHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListAll(r.Context())
	h.writeList(w, courses, err)
}

// GET /pendingcourses
func (h *CourseHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListPending(r.Context())
	h.writeList(w, courses, err)
}

// GET /courses/{id}
// Courses that are not approved are hidden from the public route.
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.catalog.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if errors.Is(err, catalog.ErrCourseNotFound) || (err == nil && course.ApprovalStatus != models.StatusApproved) {
		notFound(w, "Course not found")
		return
	}
	if err != nil {
		slog.Error("error loading course", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// GET /coursespurchase/{id}
func (h *CourseHandler) ListPurchasable(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !canActFor(r, userID) {
		forbidden(w, "Cannot list courses for another user")
		return
	}

	courses, err := h.catalog.ListPurchasable(r.Context(), userID)
	if errors.Is(err, catalog.ErrUserNotFound) {
		notFound(w, "User not found")
		return
	}
	h.writeList(w, courses, err)
}

// GET /user-courses/{id}
func (h *CourseHandler) ListPurchased(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !canActFor(r, userID) {
		forbidden(w, "Cannot list courses for another user")
		return
	}

	courses, err := h.catalog.PurchasedBy(r.Context(), userID)
	if errors.Is(err, catalog.ErrUserNotFound) {
		notFound(w, "User not found")
		return
	}
	h.writeList(w, courses, err)
}

// PUT /approvecourse/{id}
func (h *CourseHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.catalog.Approve, "Course has been approved.")
}

// PUT /rejectcourse/{id}
func (h *CourseHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.catalog.Reject, "Course has been rejected.")
}

func (h *CourseHandler) setStatus(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) error, message string) {
	err := apply(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if errors.Is(err, catalog.ErrCourseNotFound) {
		notFound(w, "Course not found.")
		return
	}
	if err != nil {
		slog.Error("error updating course status", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

type RevenueResponse struct {
	TotalRevenue float64 `json:"totalRevenue"`
}

// GET /revenue
func (h *CourseHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	total, err := h.catalog.Revenue(r.Context())
	if err != nil {
		slog.Error("error calculating revenue", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, RevenueResponse{TotalRevenue: total})
}

// GET /students-with-progress
func (h *CourseHandler) StudentsWithProgress(w http.ResponseWriter, r *http.Request) {
	students, err := h.catalog.StudentsWithProgress(r.Context())
	if err != nil {
		slog.Error("error listing students with progress", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *CourseHandler) writeList(w http.ResponseWriter, courses []*models.Course, err error) {
	if err != nil {
		slog.Error("error listing courses", "error", err)
		internalError(w)
		return
	}
	if courses == nil {
		courses = []*models.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}
