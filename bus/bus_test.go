package bus

import (
	"fmt"
	"testing"
)

// --- Unit Tests ---

func TestSend_NoRecipients(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	_, err := b.Send(Message{From: "a1"})
	if err != ErrNoRecipients {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}

func TestSend_InvalidType(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	_, err := b.Send(Message{From: "a1", To: []string{"a2"}, Type: "bogus"})
	if err != ErrInvalidType {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestSend_AssignsIDAndTimestamp(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	id, err := b.Send(Message{From: "a1", To: []string{"a2"}, Type: TypeEvent})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if id == "" {
		t.Error("expected non-empty message ID")
	}

	history := b.History("a2", 0)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].ID != id {
		t.Errorf("history ID = %q, want %q", history[0].ID, id)
	}
	if history[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestSubscribe_Invalid(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	if _, err := b.Subscribe("", func(*Message) {}); err != ErrInvalidAgent {
		t.Errorf("expected ErrInvalidAgent, got %v", err)
	}
	if _, err := b.Subscribe("a1", nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
}

func TestClosedBus(t *testing.T) {
	b := New(DefaultConfig())
	b.Close()

	if _, err := b.Send(Message{From: "a1", To: []string{"a2"}}); err != ErrClosed {
		t.Errorf("Send after close: expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe("a1", func(*Message) {}); err != ErrClosed {
		t.Errorf("Subscribe after close: expected ErrClosed, got %v", err)
	}
}

// --- Delivery ---

func TestDeliveryOrder(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	var got []string
	sub, err := b.Subscribe("a1", func(m *Message) {
		got = append(got, string(m.Payload))
	})
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	for _, p := range []string{"M1", "M2", "M3"} {
		if _, err := b.Send(Message{From: "x", To: []string{"a1"}, Payload: []byte(p)}); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}

	want := []string{"M1", "M2", "M3"}
	if len(got) != len(want) {
		t.Fatalf("received %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBroadcastDelivery(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	received := make(map[string]int)
	for _, id := range []string{"a1", "a2", "a3"} {
		agentID := id
		b.Subscribe(agentID, func(*Message) { received[agentID]++ })
	}

	b.Send(Message{From: "x", To: []string{"a1", "a2", "a3"}, Type: TypeEvent})

	for _, id := range []string{"a1", "a2", "a3"} {
		if received[id] != 1 {
			t.Errorf("agent %s received %d messages, want 1", id, received[id])
		}
	}
}

func TestMultipleHandlersPerAgent(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	var count int
	b.Subscribe("a1", func(*Message) { count++ })
	b.Subscribe("a1", func(*Message) { count++ })

	b.Send(Message{From: "x", To: []string{"a1"}})

	if count != 2 {
		t.Errorf("handler invocations = %d, want 2", count)
	}
}

func TestPanickingHandlerIsolated(t *testing.T) {
	cfg := DefaultConfig()
	b := New(cfg)
	defer b.Close()
	b.log.SetOutput(discard{})

	var delivered []string
	b.Subscribe("a1", func(*Message) { panic("boom") })
	b.Subscribe("a1", func(*Message) { delivered = append(delivered, "a1") })
	b.Subscribe("a2", func(*Message) { delivered = append(delivered, "a2") })

	if _, err := b.Send(Message{From: "x", To: []string{"a1", "a2"}}); err != nil {
		t.Fatalf("Send should not propagate handler panic: %v", err)
	}

	if len(delivered) != 2 {
		t.Errorf("deliveries after panic = %v, want both remaining handlers", delivered)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestUnsubscribe(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	var count int
	sub, _ := b.Subscribe("a1", func(*Message) { count++ })

	b.Send(Message{From: "x", To: []string{"a1"}})
	sub.Unsubscribe()
	b.Send(Message{From: "x", To: []string{"a1"}})

	if count != 1 {
		t.Errorf("invocations = %d, want 1", count)
	}

	// Double unsubscribe is safe
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("second Unsubscribe error: %v", err)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	var count int
	b.Subscribe("a1", func(*Message) { count++ })
	b.Subscribe("a1", func(*Message) { count++ })

	if removed := b.UnsubscribeAll("a1"); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	b.Send(Message{From: "x", To: []string{"a1"}})
	if count != 0 {
		t.Errorf("invocations after UnsubscribeAll = %d, want 0", count)
	}
}

func TestHandlerMayCallBackIntoBus(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	var gotReply bool
	b.Subscribe("responder", func(m *Message) {
		b.Send(Message{From: "responder", To: []string{m.ReplyTo}, Type: TypeResponse, CorrelationID: m.CorrelationID})
	})
	b.Subscribe("requester", func(m *Message) {
		if m.Type == TypeResponse {
			gotReply = true
		}
	})

	b.Send(Message{
		From:          "requester",
		To:            []string{"responder"},
		Type:          TypeRequest,
		ReplyTo:       "requester",
		CorrelationID: "c1",
	})

	if !gotReply {
		t.Error("reentrant send did not deliver response")
	}
	if chain := b.Correlated("c1"); len(chain) != 2 {
		t.Errorf("correlated chain length = %d, want 2", len(chain))
	}
}

// --- History ---

func TestHistoryFIFOBound(t *testing.T) {
	b := New(Config{HistoryCapacity: 1000})
	defer b.Close()

	var firstID, secondID string
	for i := 0; i < 1001; i++ {
		id, err := b.Send(Message{From: "s", To: []string{"a1"}, Payload: []byte(fmt.Sprintf("m%d", i))})
		if err != nil {
			t.Fatalf("Send %d error: %v", i, err)
		}
		switch i {
		case 0:
			firstID = id
		case 1:
			secondID = id
		}
	}

	if b.Len() != 1000 {
		t.Fatalf("history length = %d, want 1000", b.Len())
	}

	all := b.History("a1", 2000)
	if len(all) != 1000 {
		t.Fatalf("matched history length = %d, want 1000", len(all))
	}
	if all[0].ID == firstID {
		t.Error("oldest message should have been evicted")
	}
	if all[0].ID != secondID {
		t.Errorf("oldest retained = %q, want second sent %q", all[0].ID, secondID)
	}
}

func TestHistoryFiltersByParticipant(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	b.Send(Message{From: "a1", To: []string{"a2"}})
	b.Send(Message{From: "a3", To: []string{"a4"}})
	b.Send(Message{From: "a5", To: []string{"a6", "a1"}}) // broadcast including a1

	history := b.History("a1", 0)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (sender match + broadcast match)", len(history))
	}
	if history[0].From != "a1" || history[1].From != "a5" {
		t.Errorf("unexpected history order: %q then %q", history[0].From, history[1].From)
	}
}

func TestHistoryLimit(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Send(Message{From: "x", To: []string{"a1"}, Payload: []byte(fmt.Sprintf("m%d", i))})
	}

	history := b.History("a1", 2)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	// The last two, chronological
	if string(history[0].Payload) != "m3" || string(history[1].Payload) != "m4" {
		t.Errorf("limited history = %q, %q; want m3, m4", history[0].Payload, history[1].Payload)
	}
}

func TestCorrelated(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	b.Send(Message{From: "a1", To: []string{"a2"}, CorrelationID: "c1", Payload: []byte("first")})
	b.Send(Message{From: "a2", To: []string{"a3"}, CorrelationID: "c2"})
	b.Send(Message{From: "a2", To: []string{"a1"}, CorrelationID: "c1", Payload: []byte("second")})

	chain := b.Correlated("c1")
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if string(chain[0].Payload) != "first" || string(chain[1].Payload) != "second" {
		t.Error("correlated messages out of order")
	}

	if got := b.Correlated(""); got != nil {
		t.Errorf("empty correlation ID should return nil, got %v", got)
	}
}

func TestRecent(t *testing.T) {
	b := New(DefaultConfig())
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Send(Message{From: "x", To: []string{"a1"}, Payload: []byte(fmt.Sprintf("m%d", i))})
	}

	recent := b.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("recent length = %d, want 3", len(recent))
	}
	if string(recent[2].Payload) != "m4" {
		t.Errorf("newest = %q, want m4", recent[2].Payload)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	m := &Message{
		ID:            "m1",
		From:          "a1",
		To:            []string{"a2", "a3"},
		Type:          TypeHandoff,
		Payload:       []byte(`{"k":"v"}`),
		CorrelationID: "c1",
	}

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	got, err := UnmarshalMessage(data)
	if err != nil {
		t.Fatalf("UnmarshalMessage error: %v", err)
	}
	if got.ID != m.ID || got.Type != m.Type || len(got.To) != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
