package handoff

import (
	"encoding/json"
	"errors"
	"time"
)

// Common errors.
var (
	// ErrNotFound indicates no handoff exists for the task ID.
	ErrNotFound = errors.New("handoff not found")

	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("handoff manager closed")

	// ErrInvalidHandoff indicates required fields are missing.
	ErrInvalidHandoff = errors.New("invalid handoff")

	// ErrDuplicateTask indicates an active handoff already exists for the task.
	ErrDuplicateTask = errors.New("handoff already active for task")

	// ErrWrongAgent indicates the operation was attempted by an agent other
	// than the designated recipient.
	ErrWrongAgent = errors.New("handoff addressed to different agent")

	// ErrInvalidTransition indicates the record is not in a state that
	// permits the requested transition. The record is left untouched.
	ErrInvalidTransition = errors.New("invalid handoff transition")
)

// Status represents the state of a handoff.
type Status string

const (
	// StatusPending indicates the transfer is announced but not yet answered.
	StatusPending Status = "pending"

	// StatusAccepted indicates the recipient took the work.
	StatusAccepted Status = "accepted"

	// StatusRejected indicates the recipient declined. Terminal.
	StatusRejected Status = "rejected"

	// StatusCompleted indicates the transferred work finished. Terminal.
	StatusCompleted Status = "completed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Handoff records one transfer of in-flight work between two agents.
// Records are retained after reaching a terminal state so status stays
// queryable; callers needing cleanup track task IDs externally.
type Handoff struct {
	// TaskID identifies the unit of work. Caller-supplied; unique per
	// active handoff.
	TaskID string `json:"task_id"`

	// FromAgent is the agent giving up the work.
	FromAgent string `json:"from_agent"`

	// ToAgent is the designated recipient. Only it may accept or reject.
	ToAgent string `json:"to_agent"`

	// State is the opaque snapshot of the work so far.
	State json.RawMessage `json:"state,omitempty"`

	// Context is opaque supporting data for the recipient.
	Context json.RawMessage `json:"context,omitempty"`

	// Timestamp is when the handoff was initiated.
	Timestamp time.Time `json:"timestamp"`

	// Status is the current state-machine position.
	Status Status `json:"status"`

	// Reason carries the rejection reason, if any.
	Reason string `json:"reason,omitempty"`
}

// Clone creates a deep copy of the handoff.
func (h *Handoff) Clone() *Handoff {
	clone := *h
	if h.State != nil {
		clone.State = make(json.RawMessage, len(h.State))
		copy(clone.State, h.State)
	}
	if h.Context != nil {
		clone.Context = make(json.RawMessage, len(h.Context))
		copy(clone.Context, h.Context)
	}
	return &clone
}

// Announcement is the bus payload announcing a handoff to the recipient.
type Announcement struct {
	TaskID    string          `json:"task_id"`
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"`
	State     json.RawMessage `json:"state,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// Marshal serializes the announcement to JSON.
func (a *Announcement) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalAnnouncement deserializes an announcement from JSON.
func UnmarshalAnnouncement(data []byte) (*Announcement, error) {
	var a Announcement
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
