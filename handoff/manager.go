package handoff

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/coordkit/bus"
	"github.com/vinayprograms/coordkit/logging"
)

// Manager orchestrates task transfers between agents. Each transfer is a
// record moving through pending -> accepted -> completed, or
// pending -> rejected. Invalid transition requests leave the record
// untouched and are reported via sentinel errors.
type Manager struct {
	bus    *bus.Bus
	log    *logging.Logger
	mu     sync.RWMutex
	closed atomic.Bool

	handoffs map[string]*Handoff
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for audit records.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = logger.WithComponent("handoff")
	}
}

// NewManager creates a handoff manager that announces transfers on the
// given bus.
func NewManager(b *bus.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:      b,
		log:      logging.New().WithComponent("handoff"),
		handoffs: make(map[string]*Handoff),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initiate records a pending handoff and announces it on the bus with a
// handoff-typed message from fromAgent to toAgent. The task ID doubles as
// the message correlation ID so the whole exchange is traceable.
// Returns ErrDuplicateTask if a non-terminal handoff exists for the task;
// a terminal record may be superseded by a fresh transfer.
func (m *Manager) Initiate(taskID, fromAgent, toAgent string, state, context json.RawMessage) (string, error) {
	if m.closed.Load() {
		return "", ErrClosed
	}
	if taskID == "" || fromAgent == "" || toAgent == "" {
		return "", ErrInvalidHandoff
	}

	h := &Handoff{
		TaskID:    taskID,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		State:     state,
		Context:   context,
		Timestamp: time.Now(),
		Status:    StatusPending,
	}

	m.mu.Lock()
	if existing, ok := m.handoffs[taskID]; ok && !existing.Status.IsTerminal() {
		m.mu.Unlock()
		return "", ErrDuplicateTask
	}
	m.handoffs[taskID] = h
	m.mu.Unlock()

	payload, err := (&Announcement{
		TaskID:    taskID,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		State:     state,
		Context:   context,
	}).Marshal()
	if err != nil {
		// Opaque state/context were caller-supplied raw JSON; this only
		// fails on invalid raw messages.
		m.removeRecord(taskID)
		return "", err
	}

	if _, err := m.bus.Send(bus.Message{
		From:          fromAgent,
		To:            []string{toAgent},
		Type:          bus.TypeHandoff,
		Payload:       payload,
		CorrelationID: taskID,
	}); err != nil {
		m.removeRecord(taskID)
		return "", err
	}

	m.log.Debug("handoff_initiated", map[string]interface{}{
		"task": taskID,
		"from": fromAgent,
		"to":   toAgent,
	})

	return taskID, nil
}

// removeRecord drops a record created by a failed Initiate.
func (m *Manager) removeRecord(taskID string) {
	m.mu.Lock()
	delete(m.handoffs, taskID)
	m.mu.Unlock()
}

// Accept transitions a pending handoff to accepted and returns the record.
// Only the designated recipient may accept; anyone else gets ErrWrongAgent
// and the record stays pending.
func (m *Manager) Accept(taskID, agentID string) (*Handoff, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handoffs[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	if h.ToAgent != agentID {
		m.log.HandoffDenied(taskID, agentID, "wrong recipient")
		return nil, ErrWrongAgent
	}
	if h.Status != StatusPending {
		m.log.HandoffDenied(taskID, agentID, "not pending")
		return nil, ErrInvalidTransition
	}

	h.Status = StatusAccepted
	m.log.Info("handoff_accepted", map[string]interface{}{
		"task":  taskID,
		"agent": agentID,
	})
	return h.Clone(), nil
}

// Reject transitions a pending handoff to rejected. Same identity rule as
// Accept. The reason is retained on the record and logged.
func (m *Manager) Reject(taskID, agentID, reason string) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handoffs[taskID]
	if !ok {
		return ErrNotFound
	}
	if h.ToAgent != agentID {
		m.log.HandoffDenied(taskID, agentID, "wrong recipient")
		return ErrWrongAgent
	}
	if h.Status != StatusPending {
		m.log.HandoffDenied(taskID, agentID, "not pending")
		return ErrInvalidTransition
	}

	h.Status = StatusRejected
	h.Reason = reason
	m.log.Info("handoff_rejected", map[string]interface{}{
		"task":   taskID,
		"agent":  agentID,
		"reason": reason,
	})
	return nil
}

// Complete transitions an accepted handoff to completed. There is no
// identity check; any caller may mark completion. Records not in the
// accepted state are left untouched.
func (m *Manager) Complete(taskID string) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handoffs[taskID]
	if !ok {
		return ErrNotFound
	}
	if h.Status != StatusAccepted {
		return ErrInvalidTransition
	}

	h.Status = StatusCompleted
	m.log.Info("handoff_completed", map[string]interface{}{"task": taskID})
	return nil
}

// Get retrieves a handoff record by task ID.
func (m *Manager) Get(taskID string) (*Handoff, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.handoffs[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

// List returns all handoffs matching the given status filter, oldest
// first. An empty status returns all records.
func (m *Manager) List(status Status) []*Handoff {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Handoff
	for _, h := range m.handoffs {
		if status == "" || h.Status == status {
			result = append(result, h.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].TaskID < result[j].TaskID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// Close shuts down the manager. Records are dropped with it.
func (m *Manager) Close() error {
	m.closed.Swap(true)
	return nil
}
