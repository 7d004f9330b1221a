package speech

import "time"

// Transcript is the result of simulated speech recognition.
type Transcript struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Duration   int64     `json:"duration"` // milliseconds of captured audio
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"createdAt"`
}
