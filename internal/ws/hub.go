package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"coursehub/internal/models"
)

const (
	// maxDroppedMessagesBeforeDisconnect is the threshold for disconnecting slow clients
	maxDroppedMessagesBeforeDisconnect = 100
)

// MessageSink persists and fans out a chat message posted over a socket.
// origin is the posting session, which is left out of the fan-out.
type MessageSink interface {
	PostFromSession(ctx context.Context, sender models.Sender, text, origin, nonce string) error
}

// registerRequest is used for synchronous registration with a callback
type registerRequest struct {
	client *Client
	done   chan struct{}
}

type Hub struct {
	clients      map[*Client]bool
	sessions     map[string]*Client
	registerSync chan registerRequest
	unregister   chan *Client
	shutdown     chan struct{}
	sink         MessageSink
	sequence     int64
	mu           sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		sessions:     make(map[string]*Client),
		registerSync: make(chan registerRequest),
		unregister:   make(chan *Client),
		shutdown:     make(chan struct{}),
	}
}

// SetMessageSink wires socket MESSAGE_SEND commands to the chat relay. It
// must be called before Run.
func (h *Hub) SetMessageSink(sink MessageSink) {
	h.sink = sink
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- &WSMessage{Op: OpInvalidSession, Data: InvalidSessionPayload{Resumable: true}}:
				default:
				}
				client.Close()
				delete(h.clients, client)
				delete(h.sessions, client.sessionID)
			}
			h.mu.Unlock()
			slog.Info("shutdown complete", "component", "hub")
			return

		case req := <-h.registerSync:
			h.mu.Lock()
			// The client is identified under the lock so that a visible
			// session always receives dispatches.
			if req.client.transitionTo(ClientStateIdentified) {
				h.clients[req.client] = true
				h.sessions[req.client.sessionID] = req.client
			}
			h.mu.Unlock()
			close(req.done)
			slog.Debug("client registered", "component", "hub", "session_id", req.client.sessionID, "sender", req.client.sender)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if h.sessions[client.sessionID] == client {
					delete(h.sessions, client.sessionID)
				}
				client.CloseSend()
			}
			h.mu.Unlock()
		}
	}
}

// Caller must hold at least a read lock on h.mu.
func (h *Hub) sendToClientLocked(client *Client, msg *WSMessage) {
	if !client.IsIdentified() {
		return
	}
	select {
	case client.send <- msg:
		// Message sent successfully
	default:
		// Client buffer full - track the drop
		dropped := atomic.AddInt64(&client.DroppedMessages, 1)

		// Log warning periodically (every 10 drops)
		if dropped%10 == 1 {
			slog.Warn("dropped messages for slow client", "component", "hub", "dropped", dropped, "session_id", client.sessionID)
		}

		// Disconnect clients that fall too far behind
		if dropped >= maxDroppedMessagesBeforeDisconnect {
			slog.Warn("disconnecting slow client", "component", "hub", "session_id", client.sessionID, "dropped", dropped)
			// Close will be handled by the client's pumps
			client.Close()
		}
	}
}

func (h *Hub) nextSequence() int64 {
	return atomic.AddInt64(&h.sequence, 1)
}

// BroadcastDispatchExcept sends a DISPATCH to every client except the
// session named by exceptSessionID. An empty or unknown session id excludes
// nobody.
func (h *Hub) BroadcastDispatchExcept(eventType string, data interface{}, exceptSessionID string) {
	seq := h.nextSequence()
	msg := &WSMessage{
		Op:   OpDispatch,
		Type: eventType,
		Data: data,
		Seq:  &seq,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if exceptSessionID != "" && client.sessionID == exceptSessionID {
			continue
		}
		h.sendToClientLocked(client, msg)
	}
}

// HasSession reports whether sessionID is registered and receiving dispatches.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

func (h *Hub) Shutdown() {
	close(h.shutdown)
}
