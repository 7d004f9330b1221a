package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/speech"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// PanelFactory builds the controller for a freshly opened session.
type PanelFactory func(ctx context.Context, session chat.Session, profile persona.Persona) *panel.Controller

// Options configures the default PanelFactory.
type Options struct {
	Panel     panel.Config
	Greeting  bool
	Scheduler clock.Scheduler
	Notifier  panel.Notifier
	Logger    *zap.Logger
}

// NewPanelFactory returns a factory wiring each panel to its profile's canned
// responder and transcriber.
func NewPanelFactory(opts Options) PanelFactory {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, session chat.Session, profile persona.Persona) *panel.Controller {
		profile = profile.WithDefaults()
		cfg := opts.Panel
		if opts.Greeting {
			cfg.Greeting = profile.OpeningLine
		}

		panelOpts := []panel.Option{
			panel.WithSessionID(session.ID),
			panel.WithLogger(logger.Named("panel")),
			panel.WithResponder(ai.NewCannedService(profile, logger.Named("ai"))),
			panel.WithTranscriber(speech.NewService(profile.VoiceTranscript, logger.Named("speech"))),
		}
		if opts.Scheduler != nil {
			panelOpts = append(panelOpts, panel.WithScheduler(opts.Scheduler))
		}
		if opts.Notifier != nil {
			panelOpts = append(panelOpts, panel.WithNotifier(opts.Notifier))
		}
		return panel.New(ctx, cfg, panelOpts...)
	}
}

type entry struct {
	session chat.Session
	panel   *panel.Controller
}

// Service keeps the open chat panels. A panel's state lives only as long as
// its session.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]entry
	personas persona.Store
	newPanel PanelFactory
	logger   *zap.Logger
}

// NewService creates an in-memory panel registry.
func NewService(personas persona.Store, factory PanelFactory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = NewPanelFactory(Options{Logger: logger})
	}
	return &Service{
		sessions: make(map[string]entry),
		personas: personas,
		newPanel: factory,
		logger:   logger,
	}
}

// CreateSession opens a chat panel bound to an assistant profile.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}
	profile, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: time.Now().UTC(),
	}
	// Panels outlive the opening request, so they get their own context.
	controller := s.newPanel(context.Background(), session, profile)

	s.mu.Lock()
	s.sessions[session.ID] = entry{session: session, panel: controller}
	s.mu.Unlock()

	s.logger.Info("panel opened", zap.String("session", session.ID), zap.String("persona", personaID))
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Panel returns the controller of an open session.
func (s *Service) Panel(_ context.Context, sessionID string) (*panel.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.panel, nil
}

// LoadTranscript returns the session's messages in log order.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	p, err := s.Panel(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return p.Messages(), nil
}

// CloseSession closes the panel and forgets the session.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.panel.Close()
	s.logger.Info("panel closed", zap.String("session", sessionID))
	return nil
}

// CloseAll closes every open panel.
func (s *Service) CloseAll() {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]entry)
	s.mu.Unlock()

	for _, e := range open {
		e.panel.Close()
	}
	if len(open) > 0 {
		s.logger.Info("closed open panels", zap.Int("count", len(open)))
	}
}

// Count reports how many panels are open.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
