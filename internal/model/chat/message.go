package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Kind describes how a message was produced.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// Normalize maps unknown or empty kinds to KindText.
func (k Kind) Normalize() Kind {
	switch k {
	case KindText, KindVoice, KindImage, KindFile:
		return k
	default:
		return KindText
	}
}

// Message is a single entry of a chat panel conversation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
}
