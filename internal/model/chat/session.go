package chat

import "time"

// Session captures one open chat panel bound to an assistant profile.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
