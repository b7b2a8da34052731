package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"coursehub/internal/auth"
	"coursehub/internal/models"
	"coursehub/internal/ws"
)

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type WebSocketHandler struct {
	hub            *ws.Hub
	jwtService     *auth.JWTService
	users          UserLookup
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, jwtService *auth.JWTService, users UserLookup, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		jwtService:     jwtService,
		users:          users,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return isOriginAllowed(origin, h.allowedOrigins)
}

// GET /ws?token=
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		unauthorized(w, "Missing token")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		slog.Debug("rejected websocket token", "error", err)
		unauthorized(w, "Invalid or expired token")
		return
	}

	sender, ok := senderForRole(claims.Role)
	if !ok {
		forbidden(w, "Role has no chat access")
		return
	}
	if claims.Role == models.RoleUser {
		if _, err := h.users.FindByID(r.Context(), claims.UserID); err != nil {
			unauthorized(w, "User not found")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, sender)
	go client.WritePump()

	if err := client.Register(); err != nil {
		slog.Warn("websocket registration failed", "session_id", client.SessionID(), "error", err)
		client.Close()
		return
	}

	slog.Debug("websocket connected", "session_id", client.SessionID(), "sender", sender)
	go client.ReadPump()
}
