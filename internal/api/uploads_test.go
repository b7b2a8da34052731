package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadMultipartFormReturnsJSON413OnOversizeBody(t *testing.T) {
	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("videos", "large.mp4")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{'a'}, 2048)); err != nil {
		t.Fatalf("part.Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/addcourse", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()

	form, cleanup, ok := readMultipartForm(rr, req, 1024)
	cleanup()
	if ok {
		t.Fatalf("readMultipartForm() ok = true, want false")
	}
	if form != nil {
		t.Fatalf("readMultipartForm() form = %#v, want nil", form)
	}

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Error.Code != ErrCodePayloadTooLarge {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodePayloadTooLarge)
	}
}

func TestBuildSubmissionValidatesFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		files   map[string]int
		wantErr string
	}{
		{
			name:    "missing_title",
			fields:  map[string]string{"price": "10"},
			files:   map[string]int{"videos": 1, "image": 1},
			wantErr: "title is required",
		},
		{
			name:    "price_not_numeric",
			fields:  map[string]string{"title": "Go", "price": "ten"},
			files:   map[string]int{"videos": 1, "image": 1},
			wantErr: "price must contain only digits",
		},
		{
			name:    "bad_publish_date",
			fields:  map[string]string{"title": "Go", "price": "10", "publishDate": "tomorrow"},
			files:   map[string]int{"videos": 1, "image": 1},
			wantErr: "publishDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp",
		},
		{
			name:    "no_videos",
			fields:  map[string]string{"title": "Go", "price": "10"},
			files:   map[string]int{"image": 1},
			wantErr: "at least one file in field 'videos' is required",
		},
		{
			name:    "too_many_videos",
			fields:  map[string]string{"title": "Go", "price": "10"},
			files:   map[string]int{"videos": 11, "image": 1},
			wantErr: "too many files in field 'videos'",
		},
		{
			name:    "two_images",
			fields:  map[string]string{"title": "Go", "price": "10"},
			files:   map[string]int{"videos": 1, "image": 2},
			wantErr: "exactly one file in field 'image' is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := &multipart.Form{Value: map[string][]string{}, File: map[string][]*multipart.FileHeader{}}
			for k, v := range tt.fields {
				form.Value[k] = []string{v}
			}
			for field, n := range tt.files {
				for i := 0; i < n; i++ {
					form.File[field] = append(form.File[field], &multipart.FileHeader{Filename: "f"})
				}
			}

			_, opened, err := buildSubmission(form)
			closeAll(opened)
			if err == nil {
				t.Fatal("buildSubmission() error = nil, want validation error")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("buildSubmission() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParsePublishDate(t *testing.T) {
	for _, raw := range []string{"2026-03-01", "2026-03-01T10:00:00Z"} {
		got, err := parsePublishDate(raw)
		if err != nil {
			t.Fatalf("parsePublishDate(%q) error = %v", raw, err)
		}
		if got.Year() != 2026 || got.Month() != 3 || got.Day() != 1 {
			t.Fatalf("parsePublishDate(%q) = %s, want 2026-03-01", raw, got)
		}
	}
}
