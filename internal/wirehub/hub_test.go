package wirehub

import (
	"context"
	"testing"
)

func TestHubAssignsUniqueIdentities(t *testing.T) {
	h := NewHub()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := h.Register(nil)
		if id == "" || seen[id] {
			t.Fatalf("expected unique non-empty identity, got %q", id)
		}
		seen[id] = true
	}
	if h.Count() != 50 {
		t.Fatalf("expected 50 registered connections, got %d", h.Count())
	}
	for id := range seen {
		h.Unregister(id)
	}
	if h.Count() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Count())
	}
}

func TestHubSendToUnknownConnectionFails(t *testing.T) {
	h := NewHub()
	if err := h.Send(context.Background(), "missing", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unregistered connection")
	}
}
