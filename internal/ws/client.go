package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coursehub/internal/constants"
	"coursehub/internal/models"
)

// ClientState represents the lifecycle state of a WebSocket client
type ClientState int32

const (
	ClientStateConnected  ClientState = iota // WS connected, not yet registered
	ClientStateIdentified                    // Registered with the hub, receiving dispatches
	ClientStateClosing                       // Shutdown initiated
	ClientStateClosed                        // Terminal
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 32768

	// Timeout for hub registration
	registerTimeout = 5 * time.Second

	// Timeout for persisting a socket-posted message
	postTimeout = 5 * time.Second

	// Rate limiting intervals
	messageRateLimit = 200 * time.Millisecond // 5 messages per second
)

var errRegisterTimeout = errors.New("hub registration timed out")

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *WSMessage
	connCloseOnce sync.Once

	state atomic.Int32

	sender    models.Sender
	sessionID string

	// DroppedMessages tracks how many messages have been dropped due to full buffer
	DroppedMessages int64

	// Only accessed from the ReadPump goroutine, so no mutex is needed.
	lastMessage time.Time
}

// NewClient creates a client for an already authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, sender models.Sender) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *WSMessage, constants.WSClientSendBufferSize),
		sender:    sender,
		sessionID: uuid.New().String(),
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) Sender() models.Sender {
	return c.sender
}

// Register queues the HELLO carrying the session id and adds the client to
// the hub. Dispatches are delivered once the hub has accepted it.
func (c *Client) Register() error {
	c.send <- &WSMessage{
		Op: OpHello,
		Data: HelloPayload{
			ProtocolVersion: ProtocolVersion,
			SessionID:       c.sessionID,
			Sender:          c.sender,
		},
	}

	done := make(chan struct{})
	select {
	case c.hub.registerSync <- registerRequest{client: c, done: done}:
	case <-time.After(registerTimeout):
		return errRegisterTimeout
	}
	select {
	case <-done:
	case <-time.After(registerTimeout):
		return errRegisterTimeout
	}

	if !c.hub.HasSession(c.sessionID) {
		return errors.New("client closed during registration")
	}
	return nil
}

// Close performs cleanup for the client, ensuring it only happens once
func (c *Client) Close() {
	if !c.transitionTo(ClientStateClosing) {
		// Already closing/closed, but still ensure conn is closed
		c.closeConn()
		return
	}
	c.closeConn()
	c.transitionTo(ClientStateClosed)
}

func (c *Client) closeConn() {
	c.connCloseOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "component", "ws", "session_id", c.sessionID, "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("error parsing message", "component", "ws", "session_id", c.sessionID, "error", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.IsClosed() {
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("error writing message", "component", "ws", "session_id", c.sessionID, "error", err)
				return
			}

		case <-ticker.C:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *WSMessage) {
	switch msg.Op {
	case OpDispatch:
		c.handleDispatch(msg)
	default:
		slog.Debug("unknown op code", "component", "ws", "op", msg.Op)
	}
}

// handleDispatch routes DISPATCH messages by their type
func (c *Client) handleDispatch(msg *WSMessage) {
	switch msg.Type {
	case CmdMessageSend:
		c.handleMessageSend(msg)
	default:
		slog.Debug("unknown dispatch type", "component", "ws", "type", msg.Type)
	}
}

func (c *Client) handleMessageSend(msg *WSMessage) {
	if !c.IsIdentified() || c.hub.sink == nil {
		return
	}

	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return
	}
	var payload MessageSendPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Debug("invalid message payload", "component", "ws", "session_id", c.sessionID, "error", err)
		return
	}

	text, nonce := payload.Message, payload.Nonce
	if text == "" {
		c.sendError(ErrCodeInvalidRequest, "Message is required", nonce)
		return
	}

	if utf8.RuneCountInString(text) > constants.MessageContentMaxLength {
		c.sendError(ErrCodeMessageTooLong, "Message exceeds maximum length", nonce)
		return
	}

	// Rate limit check
	now := time.Now()
	if now.Sub(c.lastMessage) < messageRateLimit {
		c.sendError(ErrCodeRateLimited, "Sending too fast", nonce)
		return
	}
	c.lastMessage = now

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	if err := c.hub.sink.PostFromSession(ctx, c.sender, text, c.sessionID, nonce); err != nil {
		slog.Error("error posting message", "component", "ws", "session_id", c.sessionID, "error", err)
		c.sendError(ErrCodeInternal, "Message could not be sent", nonce)
	}
}

func (c *Client) sendError(code, message, nonce string) {
	select {
	case c.send <- &WSMessage{
		Op:   OpDispatch,
		Type: EventError,
		Data: ErrorPayload{Code: code, Message: message, Nonce: nonce},
	}:
	default:
	}
}

// State returns the current client state
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// IsIdentified returns true if the client is registered and receiving dispatches
func (c *Client) IsIdentified() bool {
	return c.State() == ClientStateIdentified
}

// IsClosed returns true if the client is closing or closed
func (c *Client) IsClosed() bool {
	state := c.State()
	return state == ClientStateClosing || state == ClientStateClosed
}

// isValidClientTransition checks if a state transition is valid
func isValidClientTransition(from, to ClientState) bool {
	switch from {
	case ClientStateConnected:
		return to == ClientStateIdentified || to == ClientStateClosing
	case ClientStateIdentified:
		return to == ClientStateClosing
	case ClientStateClosing:
		return to == ClientStateClosed
	case ClientStateClosed:
		return false
	}
	return false
}

// transitionTo atomically transitions to a new state if valid
func (c *Client) transitionTo(newState ClientState) bool {
	for {
		current := ClientState(c.state.Load())
		if !isValidClientTransition(current, newState) {
			return false
		}
		if c.state.CompareAndSwap(int32(current), int32(newState)) {
			return true
		}
	}
}

// CloseSend closes the send channel (called by hub during cleanup)
func (c *Client) CloseSend() {
	if c.transitionTo(ClientStateClosing) {
		close(c.send)
		c.closeConn()
		c.transitionTo(ClientStateClosed)
	}
}
