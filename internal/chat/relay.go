package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"coursehub/internal/constants"
	"coursehub/internal/models"
	"coursehub/internal/ws"
)

var (
	ErrInvalidSender  = errors.New("sender must be user or admin")
	ErrEmptyMessage   = errors.New("message is required")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

type MessageStore interface {
	Create(ctx context.Context, sender models.Sender, content string) (*models.Message, error)
	ListAll(ctx context.Context) ([]*models.Message, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Broadcaster pushes a dispatch to connected sessions. exceptSessionID
// names the session that should not receive it; empty means everyone.
type Broadcaster interface {
	BroadcastDispatchExcept(eventType string, data interface{}, exceptSessionID string)
}

// Relay appends chat messages to the durable log and then fans them out.
// Delivery to sockets is best effort; the log is the source of truth.
type Relay struct {
	messages MessageStore
	hub      Broadcaster
}

func NewRelay(messages MessageStore, hub Broadcaster) *Relay {
	return &Relay{messages: messages, hub: hub}
}

// Post stores a message and publishes it to every session except origin.
func (r *Relay) Post(ctx context.Context, sender models.Sender, text, origin string) (*models.Message, error) {
	return r.post(ctx, sender, text, origin, "")
}

// PostFromSession is the socket entry point. The nonce is echoed in the
// MESSAGE_CREATE payload so other tabs of the same client can reconcile.
func (r *Relay) PostFromSession(ctx context.Context, sender models.Sender, text, origin, nonce string) error {
	_, err := r.post(ctx, sender, text, origin, nonce)
	return err
}

func (r *Relay) post(ctx context.Context, sender models.Sender, text, origin, nonce string) (*models.Message, error) {
	if !sender.Valid() {
		return nil, ErrInvalidSender
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > constants.MessageContentMaxLength {
		return nil, ErrMessageTooLong
	}

	msg, err := r.messages.Create(ctx, sender, text)
	if err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	r.hub.BroadcastDispatchExcept(ws.EventMessageCreate, ws.MessageCreatePayload{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Message:   msg.Message,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
		Nonce:     nonce,
	}, origin)

	return msg, nil
}

func (r *Relay) List(ctx context.Context) ([]*models.Message, error) {
	messages, err := r.messages.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return messages, nil
}

// Clear deletes the whole log and tells every session to drop its copy.
func (r *Relay) Clear(ctx context.Context) (int64, error) {
	deleted, err := r.messages.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing messages: %w", err)
	}

	r.hub.BroadcastDispatchExcept(ws.EventMessageHistoryCleared, ws.MessageHistoryClearedPayload{Deleted: deleted}, "")
	return deleted, nil
}
