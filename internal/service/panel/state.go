package panel

import (
	"time"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// Phase is the voice capture state of a panel.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhaseProcessing Phase = "processing"
)

// InteractionState is the panel's transient input state. Recording and
// Processing are never both true.
type InteractionState struct {
	Draft      string `json:"draft"`
	Recording  bool   `json:"recording"`
	Processing bool   `json:"processing"`
}

// Phase derives the capture phase from the flags.
func (s InteractionState) Phase() Phase {
	switch {
	case s.Recording:
		return PhaseRecording
	case s.Processing:
		return PhaseProcessing
	default:
		return PhaseIdle
	}
}

// Notice is a transient alert raised by the panel.
type Notice struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// Snapshot is a read-only view of a panel. Version increases with every
// mutation, so consumers can discard out-of-order snapshots.
type Snapshot struct {
	SessionID string           `json:"sessionId"`
	Version   uint64           `json:"version"`
	Phase     Phase            `json:"phase"`
	State     InteractionState `json:"state"`
	Messages  []chat.Message   `json:"messages"`
	Closed    bool             `json:"closed"`
}

// Update is delivered to subscribers after every mutation or alert.
type Update struct {
	Snapshot Snapshot `json:"snapshot"`
	Notice   *Notice  `json:"notice,omitempty"`
}
