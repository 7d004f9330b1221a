package speech

import "time"

// CaptureRequest describes a finished voice capture awaiting transcription.
// The captured audio itself is never decoded.
type CaptureRequest struct {
	SessionID string        `json:"sessionId"`
	Duration  time.Duration `json:"duration"`
	Language  string        `json:"language"` // en-US, hi-IN, etc.
}
