package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"coursehub/internal/progress"
)

type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

type UpdateProgressRequest struct {
	UserID     string `json:"userId" validate:"required"`
	CourseID   string `json:"courseId" validate:"required"`
	VideoIndex *int   `json:"videoIndex" validate:"required,gte=0"`
}

// POST /updateProgress
func (h *ProgressHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProgressRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !canActFor(r, req.UserID) {
		forbidden(w, "Cannot update progress for another user")
		return
	}

	err := h.tracker.Update(r.Context(), req.UserID, req.CourseID, *req.VideoIndex)
	switch {
	case errors.Is(err, progress.ErrInvalidIndex):
		badRequest(w, "videoIndex must not be negative")
		return
	case errors.Is(err, progress.ErrUserNotFound):
		notFound(w, "User not found")
		return
	case errors.Is(err, progress.ErrCourseNotFound):
		notFound(w, "Course not found")
		return
	case err != nil:
		slog.Error("error updating progress", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Progress updated successfully"})
}

// GET /userProgress?userId=&courseId=
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	courseID := strings.TrimSpace(r.URL.Query().Get("courseId"))
	if userID == "" || courseID == "" {
		badRequest(w, "Query parameters 'userId' and 'courseId' are required")
		return
	}
	if !canActFor(r, userID) {
		forbidden(w, "Cannot view progress for another user")
		return
	}

	status, err := h.tracker.Get(r.Context(), userID, courseID)
	if err != nil {
		slog.Error("error loading progress", "error", err)
		internalError(w)
		return
	}
	if status.CompletedVideos == nil {
		status.CompletedVideos = []int{}
	}

	writeJSON(w, http.StatusOK, status)
}
