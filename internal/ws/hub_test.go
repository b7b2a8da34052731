package ws

import (
	"context"
	"testing"
	"time"

	"coursehub/internal/constants"
	"coursehub/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub()
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

func registeredClient(t *testing.T, h *Hub, sender models.Sender) *Client {
	t.Helper()

	c := NewClient(h, nil, sender)
	if err := c.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	hello := receive(t, c)
	if hello.Op != OpHello {
		t.Fatalf("first message op = %d, want HELLO", hello.Op)
	}
	payload, ok := hello.Data.(HelloPayload)
	if !ok || payload.SessionID != c.SessionID() {
		t.Fatalf("HELLO payload = %+v, want session %q", hello.Data, c.SessionID())
	}
	return c
}

func receive(t *testing.T, c *Client) *WSMessage {
	t.Helper()

	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: op=%d type=%s", msg.Op, msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastDispatchExceptSkipsOrigin(t *testing.T) {
	h := startHub(t)
	origin := registeredClient(t, h, models.SenderUser)
	other := registeredClient(t, h, models.SenderAdmin)

	h.BroadcastDispatchExcept(EventMessageCreate, MessageCreatePayload{ID: "msg_1", Message: "hi"}, origin.SessionID())

	got := receive(t, other)
	if got.Type != EventMessageCreate || got.Seq == nil {
		t.Fatalf("other received %+v, want sequenced MESSAGE_CREATE", got)
	}
	expectNothing(t, origin)
}

func TestBroadcastDispatchExceptUnknownSessionReachesEveryone(t *testing.T) {
	h := startHub(t)
	a := registeredClient(t, h, models.SenderUser)
	b := registeredClient(t, h, models.SenderUser)

	h.BroadcastDispatchExcept(EventMessageHistoryCleared, MessageHistoryClearedPayload{Deleted: 3}, "")

	for _, c := range []*Client{a, b} {
		if got := receive(t, c); got.Type != EventMessageHistoryCleared {
			t.Fatalf("received %q, want %q", got.Type, EventMessageHistoryCleared)
		}
	}
}

func TestSlowClientIsDisconnectedAfterDrops(t *testing.T) {
	h := &Hub{clients: make(map[*Client]bool), sessions: make(map[string]*Client)}
	c := NewClient(h, nil, models.SenderUser)
	c.state.Store(int32(ClientStateIdentified))
	h.clients[c] = true

	msg := &WSMessage{Op: OpDispatch, Type: EventMessageCreate}
	for i := 0; i < constants.WSClientSendBufferSize+maxDroppedMessagesBeforeDisconnect; i++ {
		h.mu.RLock()
		h.sendToClientLocked(c, msg)
		h.mu.RUnlock()
	}

	if !c.IsClosed() {
		t.Fatalf("client state = %d, want closed after %d drops", c.State(), c.DroppedMessages)
	}
}

type recordingSink struct {
	sender models.Sender
	text   string
	origin string
}

func (s *recordingSink) PostFromSession(_ context.Context, sender models.Sender, text, origin, _ string) error {
	s.sender, s.text, s.origin = sender, text, origin
	return nil
}

func TestMessageSendForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	h := &Hub{sink: sink}
	c := NewClient(h, nil, models.SenderAdmin)
	c.state.Store(int32(ClientStateIdentified))

	c.handleMessage(&WSMessage{
		Op:   OpDispatch,
		Type: CmdMessageSend,
		Data: map[string]interface{}{"message": "hello"},
	})

	if sink.text != "hello" || sink.sender != models.SenderAdmin || sink.origin != c.SessionID() {
		t.Fatalf("sink got %+v, want hello from admin session %q", sink, c.SessionID())
	}
}

func TestMessageSendRejectsTooLong(t *testing.T) {
	sink := &recordingSink{}
	h := &Hub{sink: sink}
	c := NewClient(h, nil, models.SenderUser)
	c.state.Store(int32(ClientStateIdentified))

	long := make([]rune, constants.MessageContentMaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	c.handleMessage(&WSMessage{
		Op:   OpDispatch,
		Type: CmdMessageSend,
		Data: map[string]interface{}{"message": string(long), "nonce": "n1"},
	})

	if sink.text != "" {
		t.Fatal("sink received an over-long message")
	}
	got := receive(t, c)
	payload, ok := got.Data.(ErrorPayload)
	if got.Type != EventError || !ok || payload.Code != ErrCodeMessageTooLong || payload.Nonce != "n1" {
		t.Fatalf("received %+v, want MESSAGE_TOO_LONG error", got)
	}
}

func TestRegisterClosedClientIsRejected(t *testing.T) {
	h := startHub(t)
	c := NewClient(h, nil, models.SenderUser)
	c.Close()

	if err := c.Register(); err == nil {
		t.Fatal("Register() error = nil for a closed client")
	}
	if h.HasSession(c.SessionID()) {
		t.Fatal("closed client session is visible to the hub")
	}
}

func TestUnregisterDropsSession(t *testing.T) {
	h := startHub(t)
	c := registeredClient(t, h, models.SenderAdmin)
	if !h.HasSession(c.SessionID()) {
		t.Fatal("HasSession() = false after Register")
	}

	h.unregister <- c

	deadline := time.Now().Add(time.Second)
	for h.HasSession(c.SessionID()) {
		if time.Now().After(deadline) {
			t.Fatal("session still registered after unregister")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMessageSendAcceptsTypedPayload(t *testing.T) {
	sink := &recordingSink{}
	h := &Hub{sink: sink}
	c := NewClient(h, nil, models.SenderUser)
	c.state.Store(int32(ClientStateIdentified))

	c.handleMessage(&WSMessage{
		Op:   OpDispatch,
		Type: CmdMessageSend,
		Data: MessageSendPayload{Message: "typed hello", Nonce: "n2"},
	})

	if sink.text != "typed hello" || sink.sender != models.SenderUser {
		t.Fatalf("sink got %+v, want typed hello from user", sink)
	}
}
