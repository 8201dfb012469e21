package core

import "time"

// MessageType categorizes inter-agent messages on the bus.
type MessageType string

const (
	// MessageTypeRequest asks a receiver to perform work.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse answers a request, reusing its correlation id.
	MessageTypeResponse MessageType = "response"
	// MessageTypeNotification is a one-way informational message.
	MessageTypeNotification MessageType = "notification"
	// MessageTypeError reports a failure out of band.
	MessageTypeError MessageType = "error"
)

// Message is the standardized A2A (agent-to-agent) message format. A
// response reuses the CorrelationID of the request it answers, enabling a
// consumer to join the pair by id. After emission a message should be
// treated as immutable.
type Message struct {
	ID            string         `json:"id"`
	SenderID      string         `json:"sender_id"`
	ReceiverID    string         `json:"receiver_id"`
	Type          MessageType    `json:"message_type"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewMessage constructs a message, generating a correlation id when none is
// supplied.
func NewMessage(sender, receiver string, mt MessageType, payload map[string]any, correlationID string) Message {
	if correlationID == "" {
		correlationID = NewID()
	}
	return Message{
		ID:            NewID(),
		SenderID:      sender,
		ReceiverID:    receiver,
		Type:          mt,
		Payload:       payload,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
}
