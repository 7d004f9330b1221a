package chat

import (
	"time"

	"github.com/google/uuid"
)

// Log is an append-only, insertion-ordered message sequence. It is not safe
// for concurrent use; its owner serialises access.
type Log struct {
	messages []Message
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{messages: make([]Message, 0, 16)}
}

// Append stores message at the end of the log and returns the stored copy.
// The log always assigns a fresh time-ordered ID; Kind defaults to text and
// Timestamp to the current time.
func (l *Log) Append(message Message) Message {
	message.ID = NewMessageID()
	message.Kind = message.Kind.Normalize()
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	l.messages = append(l.messages, message)
	return message
}

// All returns a snapshot of the log in insertion order.
func (l *Log) All() []Message {
	copied := make([]Message, len(l.messages))
	copy(copied, l.messages)
	return copied
}

// Len reports the number of stored messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// NewMessageID returns a UUIDv7 string, which sorts by creation time.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
