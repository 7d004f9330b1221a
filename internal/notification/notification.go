// Package notification provides sinks for the chat panel's transient
// user-facing alerts. Desktop notifications use the beeep library.
package notification

import (
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier receives fire-and-forget alerts.
type Notifier interface {
	Notify(title, description string)
}

// Mode selects a Notifier implementation.
type Mode string

const (
	ModeLog     Mode = "log"
	ModeDesktop Mode = "desktop"
	ModeNone    Mode = "none"
)

// ParseMode validates a configured mode.
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeLog, nil
	case ModeLog, ModeDesktop, ModeNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown notify mode %q", raw)
	}
}

// FromMode builds the Notifier for mode. Desktop alerts are also logged.
func FromMode(mode Mode, logger *zap.Logger) Notifier {
	switch mode {
	case ModeNone:
		return Nop{}
	case ModeDesktop:
		return Multi{NewLog(logger), NewDesktop(logger)}
	default:
		return NewLog(logger)
	}
}

// Nop discards alerts.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string) {}

// Log writes alerts to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a logging Notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notify")}
}

// Notify logs the alert at info level.
func (l *Log) Notify(title, description string) {
	l.logger.Info(title, zap.String("description", description))
}

// Multi fans an alert out to several notifiers in order.
type Multi []Notifier

// Notify forwards the alert to every notifier.
func (m Multi) Notify(title, description string) {
	for _, n := range m {
		if n != nil {
			n.Notify(title, description)
		}
	}
}

// Func adapts a function to Notifier.
type Func func(title, description string)

// Notify calls f.
func (f Func) Notify(title, description string) { f(title, description) }

// notifyFunc is the desktop sender, replaceable in tests.
var notifyFunc = beeep.Notify

// Desktop shows alerts as OS notifications.
type Desktop struct {
	logger *zap.Logger
}

// NewDesktop returns a desktop Notifier.
func NewDesktop(logger *zap.Logger) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Desktop{logger: logger.Named("desktop")}
}

// Notify sends the alert; failures are logged and otherwise ignored.
func (d *Desktop) Notify(title, description string) {
	// Empty icon lets beeep pick the platform default.
	if err := notifyFunc(title, description, ""); err != nil {
		d.logger.Warn("desktop notification failed", zap.String("title", title), zap.Error(err))
	}
}
