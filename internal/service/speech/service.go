package speech

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/speech"
)

// ErrEmptyTranscript is returned when a profile has no canned transcript.
var ErrEmptyTranscript = errors.New("no transcript configured")

// Service simulates speech recognition by returning a canned transcript for
// every capture. Audio is never decoded.
type Service struct {
	transcript string
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a simulated recogniser answering with transcript.
func NewService(transcript string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{transcript: transcript, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Transcribe converts a finished capture into text.
func (s *Service) Transcribe(ctx context.Context, req speech.CaptureRequest) (*speech.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.transcript == "" {
		return nil, ErrEmptyTranscript
	}

	s.logger.Debug("transcribed capture",
		zap.String("session", req.SessionID),
		zap.Duration("captured", req.Duration),
		zap.String("language", req.Language),
	)

	return &speech.Transcript{
		SessionID:  req.SessionID,
		Text:       s.transcript,
		Confidence: 1,
		Duration:   req.Duration.Milliseconds(),
		Language:   req.Language,
		CreatedAt:  s.now(),
	}, nil
}
