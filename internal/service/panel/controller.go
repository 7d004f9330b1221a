// Package panel implements the chat panel's interaction controller: the
// draft/send flow, the record → transcribe → respond state machine and
// attachment intake, all driven by a clock.Scheduler.
package panel

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/speech"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/ai"
	speechservice "github.com/zhouzirui/farm-assistant/backend/internal/service/speech"
)

// Notifier receives fire-and-forget alerts.
type Notifier interface {
	Notify(title, description string)
}

// Responder produces the assistant's reply to a user message.
type Responder interface {
	Reply(ctx context.Context, req ai.ReplyRequest) (string, error)
}

// Transcriber turns a finished voice capture into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req speech.CaptureRequest) (*speech.Transcript, error)
}

// Config holds the simulated delays and canned texts of a panel.
type Config struct {
	CaptureDelay    time.Duration
	TranscribeDelay time.Duration
	VoiceReplyDelay time.Duration
	TextReplyDelay  time.Duration
	Language        string
	// Greeting, when set, is appended as an assistant message on open.
	Greeting string
	// FallbackReply is used when the responder fails.
	FallbackReply string
}

// DefaultConfig returns the standard simulation timings.
func DefaultConfig() Config {
	return Config{
		CaptureDelay:    3 * time.Second,
		TranscribeDelay: 2 * time.Second,
		VoiceReplyDelay: 1500 * time.Millisecond,
		TextReplyDelay:  time.Second,
		Language:        "en-US",
		FallbackReply:   "Sorry, I could not prepare an answer right now. Please try again.",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CaptureDelay <= 0 {
		c.CaptureDelay = def.CaptureDelay
	}
	if c.TranscribeDelay <= 0 {
		c.TranscribeDelay = def.TranscribeDelay
	}
	if c.VoiceReplyDelay <= 0 {
		c.VoiceReplyDelay = def.VoiceReplyDelay
	}
	if c.TextReplyDelay <= 0 {
		c.TextReplyDelay = def.TextReplyDelay
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.FallbackReply == "" {
		c.FallbackReply = def.FallbackReply
	}
	return c
}

// Option customises a Controller.
type Option func(*Controller)

// WithSessionID tags the controller's snapshots and logs.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s clock.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithNotifier sets the alert sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithResponder sets the assistant reply source.
func WithResponder(r Responder) Option {
	return func(c *Controller) { c.responder = r }
}

// WithTranscriber sets the voice capture recogniser.
func WithTranscriber(t Transcriber) Option {
	return func(c *Controller) { c.transcriber = t }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns one open panel's state and message log. Every mutation,
// whether from a caller or a timer callback, is serialised through mu.
// Alerts and subscriber updates are dispatched after mu is released.
type Controller struct {
	cfg         Config
	sessionID   string
	sched       clock.Scheduler
	notifier    Notifier
	responder   Responder
	transcriber Transcriber
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	log     *chat.Log
	state   InteractionState
	version uint64
	closed  bool

	// captureGen invalidates capture and transcription callbacks armed
	// before the latest start, stop or close.
	captureGen   uint64
	captureToken clock.Token
	captureStart time.Time

	nextReply uint64
	replies   map[uint64]clock.Token

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(Update)
}

// New opens a panel. ctx bounds the responder and transcriber calls made
// from timer callbacks; Close cancels it.
func New(ctx context.Context, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		log:     chat.NewLog(),
		replies: make(map[uint64]clock.Token),
		subs:    make(map[int]func(Update)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("session", c.sessionID))
	if c.sched == nil {
		c.sched = clock.NewReal()
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.responder == nil || c.transcriber == nil {
		profile := persona.Seed()[0]
		if c.responder == nil {
			c.responder = ai.NewCannedService(profile, c.logger)
		}
		if c.transcriber == nil {
			c.transcriber = speechservice.NewService(profile.VoiceTranscript, c.logger)
		}
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	if c.cfg.Greeting != "" {
		c.log.Append(chat.Message{
			Text:      c.cfg.Greeting,
			Sender:    chat.SenderAssistant,
			Kind:      chat.KindText,
			Timestamp: c.sched.Now(),
		})
	}
	return c
}

// SessionID returns the session the panel belongs to.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Messages returns a snapshot of the message log.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.All()
}

// State returns a copy of the interaction state.
func (c *Controller) State() InteractionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the full read-only view of the panel.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: c.sessionID,
		Version:   c.version,
		Phase:     c.state.Phase(),
		State:     c.state,
		Messages:  c.log.All(),
		Closed:    c.closed,
	}
}

// Subscribe registers fn for every Update. fn runs synchronously on the
// goroutine that performed the mutation and must not block. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(Update)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// SetDraft replaces the uncommitted input text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	if c.closed || c.state.Draft == text {
		c.mu.Unlock()
		return
	}
	c.state.Draft = text
	c.version++
	c.mu.Unlock()

	c.publish(nil)
}

// SendText commits the current draft. A blank draft is ignored and reported
// as false.
func (c *Controller) SendText() bool {
	c.mu.Lock()
	sent := c.sendLocked(c.state.Draft)
	c.mu.Unlock()

	if sent {
		c.publish(nil)
	}
	return sent
}

// Submit sets the draft to text and sends it in one step. Blank text
// leaves the panel untouched.
func (c *Controller) Submit(text string) bool {
	c.mu.Lock()
	sent := c.sendLocked(text)
	c.mu.Unlock()

	if sent {
		c.publish(nil)
	}
	return sent
}

func (c *Controller) sendLocked(text string) bool {
	if c.closed || strings.TrimSpace(text) == "" {
		return false
	}

	c.log.Append(chat.Message{
		Text:      text,
		Sender:    chat.SenderUser,
		Kind:      chat.KindText,
		Timestamp: c.sched.Now(),
	})
	c.state.Draft = ""
	c.version++
	c.armReplyLocked(ai.ReplyRequest{SessionID: c.sessionID, Kind: chat.KindText, Text: text}, c.cfg.TextReplyDelay)
	return true
}

// ToggleCapture starts a voice capture when idle and cancels it when
// recording. It is ignored while a capture is being transcribed. The
// resulting phase is returned.
func (c *Controller) ToggleCapture() Phase {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return PhaseIdle
	}

	var notice *Notice
	switch c.state.Phase() {
	case PhaseIdle:
		c.startCaptureLocked()
		notice = c.noticeLocked("Voice Recording Started", "Speak now, tap the mic again to stop")
	case PhaseRecording:
		c.stopCaptureLocked()
		notice = c.noticeLocked("Recording Stopped", "Voice capture discarded")
	case PhaseProcessing:
		c.mu.Unlock()
		c.logger.Debug("capture toggle ignored while processing")
		return PhaseProcessing
	}
	phase := c.state.Phase()
	c.mu.Unlock()

	c.publish(notice)
	return phase
}

func (c *Controller) startCaptureLocked() {
	c.captureGen++
	gen := c.captureGen
	c.state.Recording = true
	c.captureStart = c.sched.Now()
	c.captureToken = c.sched.After(c.cfg.CaptureDelay, func() { c.completeCapture(gen) })
	c.version++
	c.logger.Debug("capture started", zap.Uint64("gen", gen))
}

func (c *Controller) stopCaptureLocked() {
	c.sched.Cancel(c.captureToken)
	c.captureToken = 0
	c.captureGen++
	c.state.Recording = false
	c.version++
	c.logger.Debug("capture cancelled")
}

// completeCapture moves a capture that ran its full length to processing.
func (c *Controller) completeCapture(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.captureGen || !c.state.Recording {
		c.mu.Unlock()
		c.logger.Debug("stale capture timer suppressed", zap.Uint64("gen", gen))
		return
	}
	c.state.Recording = false
	c.state.Processing = true
	c.captureToken = c.sched.After(c.cfg.TranscribeDelay, func() { c.completeTranscription(gen) })
	c.version++
	c.mu.Unlock()

	c.publish(nil)
}

// completeTranscription appends the voice message and arms its reply.
func (c *Controller) completeTranscription(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.captureGen || !c.state.Processing {
		c.mu.Unlock()
		c.logger.Debug("stale transcription timer suppressed", zap.Uint64("gen", gen))
		return
	}
	req := speech.CaptureRequest{
		SessionID: c.sessionID,
		Duration:  c.cfg.CaptureDelay,
		Language:  c.cfg.Language,
	}
	ctx := c.ctx
	c.mu.Unlock()

	transcript, err := c.transcriber.Transcribe(ctx, req)

	c.mu.Lock()
	if c.closed || gen != c.captureGen {
		c.mu.Unlock()
		return
	}
	c.state.Processing = false
	c.captureToken = 0
	c.version++
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("transcription failed, capture dropped", zap.Error(err))
		c.publish(nil)
		return
	}
	c.log.Append(chat.Message{
		Text:      transcript.Text,
		Sender:    chat.SenderUser,
		Kind:      chat.KindVoice,
		Timestamp: c.sched.Now(),
	})
	c.armReplyLocked(ai.ReplyRequest{SessionID: c.sessionID, Kind: chat.KindVoice, Text: transcript.Text}, c.cfg.VoiceReplyDelay)
	c.mu.Unlock()

	c.publish(nil)
}

func (c *Controller) armReplyLocked(req ai.ReplyRequest, delay time.Duration) {
	c.nextReply++
	id := c.nextReply
	c.replies[id] = c.sched.After(delay, func() { c.deliverReply(id, req) })
}

// deliverReply appends the assistant's answer for an armed reply.
func (c *Controller) deliverReply(id uint64, req ai.ReplyRequest) {
	c.mu.Lock()
	if _, armed := c.replies[id]; !armed || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.replies, id)
	ctx := c.ctx
	c.mu.Unlock()

	text, err := c.responder.Reply(ctx, req)
	if err != nil {
		c.logger.Warn("assistant reply failed, using fallback", zap.String("kind", string(req.Kind)), zap.Error(err))
		text = c.cfg.FallbackReply
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.log.Append(chat.Message{
		Text:      text,
		Sender:    chat.SenderAssistant,
		Kind:      chat.KindText,
		Timestamp: c.sched.Now(),
	})
	c.version++
	c.mu.Unlock()

	c.publish(nil)
}

// Close discards the panel: pending timers are cancelled, later callbacks
// become no-ops and subscribers receive a final closed snapshot.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.captureGen++
	c.sched.Cancel(c.captureToken)
	c.captureToken = 0
	for id, token := range c.replies {
		c.sched.Cancel(token)
		delete(c.replies, id)
	}
	c.state = InteractionState{}
	c.version++
	c.cancel()
	c.mu.Unlock()

	c.publish(nil)

	c.subMu.Lock()
	c.subs = make(map[int]func(Update))
	c.subMu.Unlock()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) noticeLocked(title, description string) *Notice {
	return &Notice{Title: title, Description: description, At: c.sched.Now()}
}

// notify raises an alert without changing state.
func (c *Controller) notify(title, description string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	notice := c.noticeLocked(title, description)
	c.mu.Unlock()

	c.publish(notice)
}

// publish forwards notice to the notifier and a fresh snapshot to
// subscribers. It must be called without mu held.
func (c *Controller) publish(notice *Notice) {
	if notice != nil {
		c.notifier.Notify(notice.Title, notice.Description)
	}

	update := Update{Snapshot: c.Snapshot(), Notice: notice}

	c.subMu.Lock()
	subs := make([]func(Update), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(update)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}
