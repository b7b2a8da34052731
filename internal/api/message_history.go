package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"coursehub/internal/chat"
	"coursehub/internal/models"
)

// chatSessionHeader names the websocket session that posted the message so
// it is left out of the fan-out.
const chatSessionHeader = "X-Chat-Session"

type MessageHandler struct {
	relay *chat.Relay
}

func NewMessageHandler(relay *chat.Relay) *MessageHandler {
	return &MessageHandler{relay: relay}
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
	Sender  string `json:"sender" validate:"required"`
}

type ChatResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// POST /send_message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sender := models.Sender(strings.TrimSpace(req.Sender))
	if !sender.Valid() {
		badRequest(w, "Invalid sender type")
		return
	}
	if own, ok := senderForRole(GetClaims(r).Role); !ok || own != sender {
		forbidden(w, "Cannot send messages as "+string(sender))
		return
	}

	origin := strings.TrimSpace(r.Header.Get(chatSessionHeader))
	_, err := h.relay.Post(r.Context(), sender, req.Message, origin)
	switch {
	case errors.Is(err, chat.ErrInvalidSender):
		badRequest(w, "Invalid sender type")
		return
	case errors.Is(err, chat.ErrEmptyMessage):
		badRequest(w, "message is required")
		return
	case errors.Is(err, chat.ErrMessageTooLong):
		badRequest(w, "message exceeds maximum length")
		return
	case err != nil:
		slog.Error("error posting message", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, ChatResultResponse{Success: true, Message: "Message sent successfully"})
}

// GET /get_messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.relay.List(r.Context())
	if err != nil {
		slog.Error("error listing messages", "error", err)
		internalError(w)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// DELETE /delete_messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.relay.Clear(r.Context())
	if err != nil {
		slog.Error("error clearing messages", "error", err)
		internalError(w)
		return
	}

	slog.Info("chat history cleared", "deleted", deleted)
	writeJSON(w, http.StatusOK, ChatResultResponse{Success: true, Message: "Chat history deleted successfully"})
}
