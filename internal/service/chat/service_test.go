package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	chat "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

func newService(greeting bool) (*chat.Service, *clock.Manual) {
	sched := clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	factory := chat.NewPanelFactory(chat.Options{
		Panel:     panel.DefaultConfig(),
		Greeting:  greeting,
		Scheduler: sched,
	})
	return chat.NewService(persona.NewMemoryStore(persona.Seed()), factory, nil), sched
}

func TestServiceGetSession(t *testing.T) {
	svc, _ := newService(false)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.PersonaID != persona.DefaultID {
		t.Fatalf("unexpected persona ID: got %s", got.PersonaID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc, _ := newService(false)
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionValidation(t *testing.T) {
	svc, _ := newService(false)
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, ""); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "ghost"); !errors.Is(err, chat.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestServiceGreetingSeedsTranscript(t *testing.T) {
	svc, _ := newService(true)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 1 || transcript[0].Text != persona.Seed()[0].OpeningLine {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestServiceCloseSessionDiscardsPanel(t *testing.T) {
	svc, sched := newService(false)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, persona.DefaultID)
	p, err := svc.Panel(ctx, session.ID)
	if err != nil {
		t.Fatalf("Panel err: %v", err)
	}
	p.Submit("close before reply")

	if err := svc.CloseSession(ctx, session.ID); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if !p.Closed() {
		t.Fatal("expected panel to be closed")
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", sched.Pending())
	}
	if _, err := svc.LoadTranscript(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := svc.CloseSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double close, got %v", err)
	}
}

func TestServiceCloseAll(t *testing.T) {
	svc, sched := newService(false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		session, _ := svc.CreateSession(ctx, persona.DefaultID)
		p, _ := svc.Panel(ctx, session.ID)
		p.ToggleCapture()
	}
	if svc.Count() != 3 {
		t.Fatalf("expected 3 panels, got %d", svc.Count())
	}

	svc.CloseAll()
	if svc.Count() != 0 {
		t.Fatalf("expected no panels, got %d", svc.Count())
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", sched.Pending())
	}
}
