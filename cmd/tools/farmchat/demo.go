package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/notification"
	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

const (
	demoQuestion    = "How can I improve my crop yield?"
	demoStepTimeout = 30 * time.Second
)

func newDemoCmd(opts *rootOptions) *cobra.Command {
	var speed float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted conversation and print the transcript",
		Long: `demo drives one panel through a typed question, a full voice capture,
a camera request and a file attachment, printing messages and alerts as
they happen. Use --speed to shorten the simulated delays.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if speed <= 0 {
				return fmt.Errorf("--speed must be positive, got %v", speed)
			}
			out := &lockedWriter{w: cmd.OutOrStdout()}
			alerts := notification.Func(func(title, description string) {
				fmt.Fprintf(out, "  ! %s: %s\n", title, description)
			})

			env, err := opts.setup(alerts, func(cfg *panel.Config) {
				cfg.CaptureDelay = scale(cfg.CaptureDelay, speed)
				cfg.TranscribeDelay = scale(cfg.TranscribeDelay, speed)
				cfg.VoiceReplyDelay = scale(cfg.VoiceReplyDelay, speed)
				cfg.TextReplyDelay = scale(cfg.TextReplyDelay, speed)
			})
			if err != nil {
				return err
			}
			defer env.Close()

			return runDemo(cmd.Context(), out, env.chatSvc, env.assistant.ID)
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "divide every simulated delay by this factor")
	return cmd
}

func scale(d time.Duration, speed float64) time.Duration {
	scaled := time.Duration(float64(d) / speed)
	if scaled < time.Millisecond {
		return time.Millisecond
	}
	return scaled
}

// runDemo scripts one conversation on a fresh panel.
func runDemo(ctx context.Context, out io.Writer, svc *chatservice.Service, assistantID string) error {
	session, err := svc.CreateSession(ctx, assistantID)
	if err != nil {
		return err
	}
	defer func() { _ = svc.CloseSession(ctx, session.ID) }()

	p, err := svc.Panel(ctx, session.ID)
	if err != nil {
		return err
	}

	printer := &transcriptPrinter{out: out}
	printer.flush(p.Messages())

	fmt.Fprintf(out, "> typing %q\n", demoQuestion)
	p.SetDraft(demoQuestion)
	want := len(p.Messages()) + 2
	p.SendText()
	if err := waitFor(ctx, p, func(s panel.Snapshot) bool { return len(s.Messages) >= want }); err != nil {
		return fmt.Errorf("waiting for text reply: %w", err)
	}
	printer.flush(p.Messages())

	fmt.Fprintln(out, "> recording a voice message")
	want = len(p.Messages()) + 2
	p.ToggleCapture()
	if err := waitFor(ctx, p, func(s panel.Snapshot) bool {
		return s.Phase == panel.PhaseIdle && len(s.Messages) >= want
	}); err != nil {
		return fmt.Errorf("waiting for voice reply: %w", err)
	}
	printer.flush(p.Messages())

	fmt.Fprintln(out, "> opening the camera")
	p.CaptureImage()

	fmt.Fprintln(out, "> attaching soil-report.pdf")
	p.AttachFile(&panel.FileHandle{Name: "soil-report.pdf", Size: 2048, ContentType: "application/pdf"})
	printer.flush(p.Messages())

	return nil
}

// waitFor blocks until cond holds for the panel's snapshot.
func waitFor(ctx context.Context, p *panel.Controller, cond func(panel.Snapshot) bool) error {
	ctx, cancel := context.WithTimeout(ctx, demoStepTimeout)
	defer cancel()

	ready := make(chan struct{}, 1)
	unsubscribe := p.Subscribe(func(u panel.Update) {
		if cond(u.Snapshot) {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if cond(p.Snapshot()) {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type transcriptPrinter struct {
	out     io.Writer
	printed int
}

func (t *transcriptPrinter) flush(msgs []chat.Message) {
	for _, msg := range msgs[t.printed:] {
		who := "Assistant"
		if msg.Sender == chat.SenderUser {
			who = "You"
		}
		fmt.Fprintf(t.out, "%s [%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.Kind, who, msg.Text)
	}
	t.printed = len(msgs)
}

// lockedWriter serialises writes from timer callbacks and the script.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
