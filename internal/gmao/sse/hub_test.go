package sse

import (
	"strings"
	"testing"
)

func TestHubPublish(t *testing.T) {
	h := NewHub(nil)
	c := &Client{ID: "c1", UserID: "u1", Events: make(chan Event, 1)}
	h.Register(c)

	if err := h.Publish("counter_advanced", map[string]string{"machine_id": "m1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ev := <-c.Events
	if ev.EventType != "counter_advanced" || !strings.Contains(ev.Data, `"machine_id":"m1"`) {
		t.Errorf("unexpected event: %+v", ev)
	}

	// buffer full: must not block
	h.Publish("a", 1)
	h.Publish("b", 2)

	h.Unregister("c1")
	if h.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", h.ClientCount())
	}
}
