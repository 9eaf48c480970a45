package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func testClient(h *Hub, buffer int) *Client {
	return &Client{hub: h, send: make(chan Message, buffer)}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewHub(t *testing.T) {
	h := New("events")

	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not be running before Run")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h := New("events")
	go h.Run()
	defer h.Stop()

	c := testClient(h, 4)
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registration")

	if err := h.BroadcastJSON(map[string]string{"event_type": "absence"}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Type != JSONMessage {
			t.Errorf("message type = %v, want JSONMessage", msg.Type)
		}
		var decoded map[string]string
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if decoded["event_type"] != "absence" {
			t.Errorf("event_type = %q, want absence", decoded["event_type"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := New("events")
	go h.Run()
	defer h.Stop()

	c := testClient(h, 1)
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registration")

	// The first message fills the buffer; the second cannot be queued.
	h.Broadcast(NewBinaryMessage([]byte{1}))
	h.Broadcast(NewBinaryMessage([]byte{2}))

	waitFor(t, func() bool { return h.ClientCount() == 0 }, "slow client drop")
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := New("events")
	go h.Run()
	defer h.Stop()

	c := testClient(h, 1)
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registration")

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 }, "client unregistration")

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("send channel should be closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	h := New("events")
	go h.Run()

	c := testClient(h, 1)
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registration")

	h.Stop()
	h.Stop() // Idempotent

	waitFor(t, func() bool { return !h.IsRunning() }, "hub shutdown")
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount after Stop = %d, want 0", h.ClientCount())
	}
}
