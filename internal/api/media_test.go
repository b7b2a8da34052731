package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"coursehub/internal/blob"
	"coursehub/internal/mediaurl"
)

func TestMediaHandlerServe(t *testing.T) {
	blobs, err := blob.NewService(filepath.Join(t.TempDir(), "uploads"), 1<<20)
	if err != nil {
		t.Fatalf("blob.NewService() error = %v", err)
	}
	stored, err := blobs.Save(context.Background(), blob.KindCourseVideo, "lesson.mp4", strings.NewReader(testMP4+"lesson"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	ref := mediaurl.Reference(stored.StoragePath)
	handler := NewMediaHandler(blobs)

	tests := []struct {
		name            string
		path            string
		wantStatus      int
		wantDisposition string
	}{
		{name: "inline", path: ref, wantStatus: http.StatusOK, wantDisposition: "inline"},
		{name: "download", path: ref + "?download=true", wantStatus: http.StatusOK, wantDisposition: "attachment"},
		{name: "missing", path: "/uploads/course-videos/zz/blb_missing.mp4", wantStatus: http.StatusNotFound},
		{name: "unknown_kind", path: "/uploads/secrets/config.yaml", wantStatus: http.StatusNotFound},
		{name: "traversal", path: "/uploads/../test.db", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.Serve(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if got := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(got, tt.wantDisposition+";") {
				t.Fatalf("Content-Disposition = %q, want %s", got, tt.wantDisposition)
			}
			if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "video/") {
				t.Fatalf("Content-Type = %q, want a video type", got)
			}
			if !strings.HasSuffix(rr.Body.String(), "lesson") {
				t.Fatalf("body = %q, want stored bytes", rr.Body.String())
			}
		})
	}
}
