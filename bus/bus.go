package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/coordkit/logging"
)

// Common errors.
var (
	ErrClosed       = errors.New("bus closed")
	ErrNoRecipients = errors.New("message has no recipients")
	ErrInvalidAgent = errors.New("invalid agent ID")
	ErrNilHandler   = errors.New("nil handler")
	ErrInvalidType  = errors.New("invalid message type")
)

// DefaultHistoryCapacity bounds the retained message history.
const DefaultHistoryCapacity = 1000

// DefaultHistoryLimit is the number of messages History returns when the
// caller does not specify a limit.
const DefaultHistoryLimit = 100

// Handler receives messages addressed to the agent it was subscribed for.
// Handlers run synchronously on the sender's goroutine; a panicking handler
// is recovered, logged, and never affects other recipients or the sender.
type Handler func(*Message)

// Config holds bus configuration.
type Config struct {
	// HistoryCapacity bounds the message history.
	// Default: 1000
	HistoryCapacity int

	// Logger for delivery failures. Default: a new logger.
	Logger *logging.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: DefaultHistoryCapacity,
	}
}

// Bus delivers messages between in-process agents and retains a bounded
// FIFO history for lookups by participant or correlation ID.
type Bus struct {
	config Config
	log    *logging.Logger

	mu      sync.RWMutex
	subs    map[string][]*Subscription
	history []*Message
	closed  atomic.Bool
}

// Subscription represents one registered handler for an agent ID.
type Subscription struct {
	agentID string
	handler Handler
	bus     *Bus
	closed  atomic.Bool
}

// New creates a new in-process message bus.
func New(cfg Config) *Bus {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	return &Bus{
		config:  cfg,
		log:     cfg.Logger.WithComponent("bus"),
		subs:    make(map[string][]*Subscription),
		history: make([]*Message, 0, cfg.HistoryCapacity),
	}
}

// Send assigns an ID and timestamp to the message, appends it to history
// (evicting the oldest entry at capacity), and delivers it synchronously to
// every handler subscribed for a recipient in To. Returns the assigned ID.
//
// Delivery happens on the caller's goroutine after internal locks are
// released, so handlers may call back into the bus.
func (b *Bus) Send(msg Message) (string, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}
	if msg.Type != "" && !msg.Type.Valid() {
		return "", ErrInvalidType
	}

	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now()
	stored := msg

	type delivery struct {
		recipient string
		handler   Handler
	}
	var deliveries []delivery

	b.mu.Lock()
	if len(b.history) >= b.config.HistoryCapacity {
		// Strict FIFO eviction: drop the oldest.
		n := copy(b.history, b.history[1:])
		b.history = b.history[:n]
	}
	b.history = append(b.history, &stored)

	for _, recipient := range msg.To {
		for _, sub := range b.subs[recipient] {
			if !sub.closed.Load() {
				deliveries = append(deliveries, delivery{recipient, sub.handler})
			}
		}
	}
	b.mu.Unlock()

	for _, d := range deliveries {
		b.dispatch(&stored, d.recipient, d.handler)
	}

	return stored.ID, nil
}

// dispatch invokes one handler with panic isolation.
func (b *Bus) dispatch(msg *Message, recipient string, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.DeliveryError(msg.ID, recipient, r)
		}
	}()
	h(msg)
}

// Subscribe registers a handler for messages addressed to agentID.
// Multiple handlers per agent are allowed; each matching message invokes
// all of them in subscription order.
func (b *Bus) Subscribe(agentID string, h Handler) (*Subscription, error) {
	if agentID == "" {
		return nil, ErrInvalidAgent
	}
	if h == nil {
		return nil, ErrNilHandler
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &Subscription{
		agentID: agentID,
		handler: h,
		bus:     b,
	}

	b.mu.Lock()
	b.subs[agentID] = append(b.subs[agentID], sub)
	b.mu.Unlock()

	return sub, nil
}

// Unsubscribe cancels this subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.removeSub(s.agentID, s)
	return nil
}

// AgentID returns the agent this subscription delivers to.
func (s *Subscription) AgentID() string {
	return s.agentID
}

// UnsubscribeAll removes every handler registered for agentID and returns
// how many were removed.
func (b *Bus) UnsubscribeAll(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[agentID]
	for _, sub := range subs {
		sub.closed.Store(true)
	}
	delete(b.subs, agentID)
	return len(subs)
}

// removeSub removes a subscription. Must be called with lock held.
func (b *Bus) removeSub(agentID string, target *Subscription) {
	subs := b.subs[agentID]
	for i, sub := range subs {
		if sub == target {
			b.subs[agentID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[agentID]) == 0 {
		delete(b.subs, agentID)
	}
}

// History returns the last limit messages involving agentID as sender or
// recipient, in original chronological order. A non-positive limit means
// DefaultHistoryLimit.
func (b *Bus) History(agentID string, limit int) []Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Message
	for _, msg := range b.history {
		if msg.Involves(agentID) {
			matched = append(matched, *msg)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Correlated returns all retained messages sharing the correlation ID, in
// original chronological order.
func (b *Bus) Correlated(correlationID string) []Message {
	if correlationID == "" {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Message
	for _, msg := range b.history {
		if msg.CorrelationID == correlationID {
			matched = append(matched, *msg)
		}
	}
	return matched
}

// Recent returns the newest limit messages regardless of participant, in
// chronological order. Used for observability snapshots.
func (b *Bus) Recent(limit int) []Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if len(b.history) > limit {
		start = len(b.history) - limit
	}
	out := make([]Message, 0, len(b.history)-start)
	for _, msg := range b.history[start:] {
		out = append(out, *msg)
	}
	return out
}

// Len returns the number of retained messages.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history)
}

// Close shuts down the bus. Subsequent sends and subscribes fail with
// ErrClosed; history remains readable.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.closed.Store(true)
		}
	}
	b.subs = make(map[string][]*Subscription)

	return nil
}
