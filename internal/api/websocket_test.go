package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coursehub/internal/auth"
	"coursehub/internal/models"
	"coursehub/internal/ws"
)

func TestOriginMatchesAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed string
		want    bool
	}{
		{name: "exact_match", origin: "https://example.com", allowed: "https://example.com", want: true},
		{name: "trailing_slash", origin: "https://example.com", allowed: "https://example.com/", want: true},
		{name: "wildcard_prefix_match", origin: "https://app.example.com", allowed: "https://*", want: true},
		{name: "wildcard_prefix_miss", origin: "http://example.com", allowed: "https://*", want: false},
		{name: "exact_miss", origin: "https://evil.com", allowed: "https://example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originMatchesAllowed(tt.origin, tt.allowed); got != tt.want {
				t.Fatalf("originMatchesAllowed(%q, %q) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestCheckOriginAllowsLoopbackAndConfiguredOrigins(t *testing.T) {
	handler := NewWebSocketHandler(nil, nil, nil, []string{"https://example.com"})

	for _, origin := range []string{"", "http://127.0.0.1:5173", "http://localhost:3000", "https://example.com"} {
		req := httptest.NewRequest("GET", "http://localhost/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if !handler.checkOrigin(req) {
			t.Fatalf("expected origin %q to be allowed", origin)
		}
	}

	deniedReq := httptest.NewRequest("GET", "http://localhost/ws", nil)
	deniedReq.Header.Set("Origin", "https://evil.com")
	if handler.checkOrigin(deniedReq) {
		t.Fatal("expected disallowed origin to be rejected")
	}
}

func TestServeWSRejectsBeforeUpgrade(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, time.Hour)
	instructorToken, err := jwtService.IssueOperatorToken(models.RoleInstructor, "teach@example.com")
	if err != nil {
		t.Fatalf("IssueOperatorToken() error = %v", err)
	}

	handler := NewWebSocketHandler(ws.NewHub(), jwtService, nil, nil)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "missing_token", query: "", want: http.StatusUnauthorized},
		{name: "garbage_token", query: "?token=abc", want: http.StatusUnauthorized},
		{name: "instructor", query: "?token=" + instructorToken, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeWS(rr, httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestServeWSSendsHelloAndReceivesBroadcast(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, time.Hour)
	adminToken, err := jwtService.IssueOperatorToken(models.RoleAdmin, "admin@example.com")
	if err != nil {
		t.Fatalf("IssueOperatorToken() error = %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Shutdown()

	server := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, jwtService, nil, nil).ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + adminToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello struct {
		Op   int `json:"op"`
		Data struct {
			SessionID string `json:"session_id"`
			Sender    string `json:"sender"`
		} `json:"d"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("ReadJSON(hello) error = %v", err)
	}
	if hello.Op != int(ws.OpHello) || hello.Data.SessionID == "" || hello.Data.Sender != "admin" {
		t.Fatalf("hello = %+v, want HELLO for admin with a session id", hello)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hub.HasSession(hello.Data.SessionID) {
		if time.Now().After(deadline) {
			t.Fatal("session never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastDispatchExcept(ws.EventMessageCreate, ws.MessageCreatePayload{ID: "msg_1", Message: "hi"}, "")

	var dispatch struct {
		Op   int    `json:"op"`
		Type string `json:"t"`
	}
	if err := conn.ReadJSON(&dispatch); err != nil {
		t.Fatalf("ReadJSON(dispatch) error = %v", err)
	}
	if dispatch.Type != ws.EventMessageCreate {
		t.Fatalf("dispatch type = %q, want %q", dispatch.Type, ws.EventMessageCreate)
	}
}
