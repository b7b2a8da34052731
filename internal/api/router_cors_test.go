package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	allowed := []string{"https://coursehub.example.com", "https://preview-*"}

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantNext   bool
		wantACAO   string
	}{
		{name: "no_origin_passes_through", method: http.MethodGet, wantStatus: http.StatusOK, wantNext: true},
		{name: "configured_origin", method: http.MethodGet, origin: "https://coursehub.example.com", wantStatus: http.StatusOK, wantNext: true, wantACAO: "https://coursehub.example.com"},
		{name: "wildcard_origin", method: http.MethodPost, origin: "https://preview-42.example.net", wantStatus: http.StatusOK, wantNext: true, wantACAO: "https://preview-42.example.net"},
		{name: "loopback_dev_server", method: http.MethodGet, origin: "http://localhost:5173", wantStatus: http.StatusOK, wantNext: true, wantACAO: "http://localhost:5173"},
		{name: "preflight", method: http.MethodOptions, origin: "https://coursehub.example.com", wantStatus: http.StatusNoContent, wantACAO: "https://coursehub.example.com"},
		{name: "foreign_origin", method: http.MethodGet, origin: "https://evil.example.org", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := corsMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/send_message", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if called != tt.wantNext {
				t.Fatalf("next called = %v, want %v", called, tt.wantNext)
			}
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantACAO)
			}
			if tt.wantStatus == http.StatusForbidden {
				expectErrorCode(t, rr, http.StatusForbidden, ErrCodeInvalidRequest)
			}
		})
	}
}

func TestCORSPreflightAllowsChatSessionHeader(t *testing.T) {
	handler := corsMiddleware(nil)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/send_message", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	headers := rr.Header().Get("Access-Control-Allow-Headers")
	for _, want := range []string{"Authorization", "Content-Type", chatSessionHeader} {
		if !strings.Contains(headers, want) {
			t.Fatalf("Access-Control-Allow-Headers = %q, missing %q", headers, want)
		}
	}
	if methods := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, http.MethodPut) || !strings.Contains(methods, http.MethodDelete) {
		t.Fatalf("Access-Control-Allow-Methods = %q, want PUT and DELETE", methods)
	}
}
