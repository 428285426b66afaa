package bus

import (
	"encoding/json"
	"time"
)

// MessageType classifies a message for routing and auditing.
type MessageType string

const (
	// TypeRequest asks a peer to do something.
	TypeRequest MessageType = "request"

	// TypeResponse answers an earlier request.
	TypeResponse MessageType = "response"

	// TypeEvent announces something that happened.
	TypeEvent MessageType = "event"

	// TypeHandoff carries a task transfer between agents.
	TypeHandoff MessageType = "handoff"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case TypeRequest, TypeResponse, TypeEvent, TypeHandoff:
		return true
	default:
		return false
	}
}

// Message is the envelope delivered between agents.
//
// ID and Timestamp are assigned by Send. A message is immutable once sent;
// the same value is handed to every matching handler and must not be
// modified by them.
type Message struct {
	// ID uniquely identifies the message. Assigned by Send.
	ID string `json:"id"`

	// From is the sending agent ID.
	From string `json:"from"`

	// To lists the recipient agent IDs. A single element for point-to-point,
	// multiple for broadcast.
	To []string `json:"to"`

	// Type classifies the message.
	Type MessageType `json:"type"`

	// Payload is the opaque message body. Interpretation is up to the
	// sender and recipients; Type acts as the schema tag.
	Payload []byte `json:"payload,omitempty"`

	// Timestamp is when the message was accepted by the bus.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID links a request/response/event chain.
	CorrelationID string `json:"correlation_id,omitempty"`

	// ReplyTo names the agent a response should be addressed to.
	ReplyTo string `json:"reply_to,omitempty"`
}

// Addressed reports whether the message targets the given agent.
func (m *Message) Addressed(agentID string) bool {
	for _, to := range m.To {
		if to == agentID {
			return true
		}
	}
	return false
}

// Involves reports whether the agent is the sender or a recipient.
func (m *Message) Involves(agentID string) bool {
	return m.From == agentID || m.Addressed(agentID)
}

// Marshal serializes the message to JSON.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMessage deserializes a message from JSON.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
