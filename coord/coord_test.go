package coord

import (
	"testing"
	"time"

	"github.com/vinayprograms/coordkit/balancer"
	"github.com/vinayprograms/coordkit/bus"
	"github.com/vinayprograms/coordkit/registry"
	"github.com/vinayprograms/coordkit/state"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LogLevel = "ERROR"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// --- Unit Tests ---

func TestNewWiresComponents(t *testing.T) {
	c := newTestCoordinator(t)

	if c.Bus() == nil || c.Registry() == nil || c.Balancer() == nil ||
		c.Handoffs() == nil || c.Memory() == nil {
		t.Fatal("expected all components to be constructed")
	}
	if c.Balancer().Strategy() != balancer.LeastLoad {
		t.Errorf("Strategy = %q, want default least-load", c.Balancer().Strategy())
	}
}

func TestNewRejectsBadStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "fastest"
	if _, err := New(cfg); err != balancer.ErrUnknownStrategy {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestEndToEndDispatch(t *testing.T) {
	c := newTestCoordinator(t)

	c.Registry().Register(registry.AgentInfo{
		ID:           "worker-1",
		Capabilities: []registry.Capability{{Name: "build"}},
		Status:       registry.StatusIdle,
		Load:         10,
	})

	var got *bus.Message
	c.Bus().Subscribe("worker-1", func(m *bus.Message) { got = m })

	pick, err := c.Balancer().Select("build")
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	c.Bus().Send(bus.Message{From: "planner", To: []string{pick.ID}, Type: bus.TypeRequest})

	if got == nil {
		t.Fatal("selected worker did not receive the request")
	}
}

func TestHandoffUsesSharedBus(t *testing.T) {
	c := newTestCoordinator(t)

	var announced bool
	c.Bus().Subscribe("B", func(m *bus.Message) {
		if m.Type == bus.TypeHandoff {
			announced = true
		}
	})

	if _, err := c.Handoffs().Initiate("t1", "A", "B", nil, nil); err != nil {
		t.Fatalf("Initiate error: %v", err)
	}
	if !announced {
		t.Error("handoff announcement did not flow through the facade bus")
	}
}

func TestStatus(t *testing.T) {
	c := newTestCoordinator(t)

	c.Registry().Register(registry.AgentInfo{ID: "a"})
	c.Registry().Register(registry.AgentInfo{ID: "b"})
	c.Memory().Set("k", []byte("v"), "a", state.Options{})
	for i := 0; i < 15; i++ {
		c.Bus().Send(bus.Message{From: "a", To: []string{"b"}})
	}

	status := c.Status()
	if status.Agents != 2 {
		t.Errorf("Agents = %d, want 2", status.Agents)
	}
	if status.Strategy != balancer.LeastLoad {
		t.Errorf("Strategy = %q, want least-load", status.Strategy)
	}
	if len(status.RecentMessages) != statusHistoryLimit {
		t.Errorf("RecentMessages = %d, want %d", len(status.RecentMessages), statusHistoryLimit)
	}
	if status.Memory.Entries != 1 {
		t.Errorf("Memory.Entries = %d, want 1", status.Memory.Entries)
	}
}

func TestEventsForwarded(t *testing.T) {
	c := newTestCoordinator(t)

	events := c.Events()
	c.Registry().Register(registry.AgentInfo{ID: "a"})
	c.Memory().Set("k", []byte("v"), "a", state.Options{})

	seen := make(map[EventSource]bool)
	deadline := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event stream closed early")
			}
			switch ev.Source {
			case SourceRegistry:
				if ev.Registry == nil || ev.Registry.Agent.ID != "a" {
					t.Errorf("registry event = %+v", ev.Registry)
				}
			case SourceMemory:
				if ev.Memory == nil || ev.Memory.Key != "k" {
					t.Errorf("memory event = %+v", ev.Memory)
				}
			}
			seen[ev.Source] = true
		case <-deadline:
			t.Fatalf("timeout; saw sources %v", seen)
		}
	}
}

func TestCloseShutsDownComponents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "ERROR"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	events := c.Events()
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	// Idempotent
	if err := c.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}

	if _, err := c.Bus().Send(bus.Message{From: "a", To: []string{"b"}}); err != bus.ErrClosed {
		t.Errorf("bus after close: expected ErrClosed, got %v", err)
	}
	if err := c.Registry().Register(registry.AgentInfo{ID: "a"}); err != registry.ErrClosed {
		t.Errorf("registry after close: expected ErrClosed, got %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected event stream to close")
		}
	case <-time.After(time.Second):
		t.Error("event stream did not close")
	}
}

func TestCapabilitySearchThroughFacade(t *testing.T) {
	c := newTestCoordinator(t)

	c.Registry().Register(registry.AgentInfo{
		ID: "reviewer",
		Capabilities: []registry.Capability{
			{Name: "code-review", Description: "reviews pull request diffs"},
		},
	})

	matches, err := c.Registry().SearchCapabilities("diffs", 5)
	if err != nil {
		t.Fatalf("SearchCapabilities error: %v", err)
	}
	if len(matches) != 1 || matches[0].AgentID != "reviewer" {
		t.Errorf("matches = %v, want reviewer", matches)
	}
}
