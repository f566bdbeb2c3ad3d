// Package alert shows desktop dialogs and notifications and plays the
// hazard chime.
package alert

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/ncruces/zenity"
)

const appName = "Guide"

// Permission dialog text.
const (
	PermissionTitle   = "Permissions required"
	PermissionMessage = "Please grant camera and microphone permissions"
)

// Config selects which alert channels are active.
type Config struct {
	Dialogs       bool `yaml:"dialogs" json:"dialogs"`
	Chime         bool `yaml:"chime" json:"chime"`
	Notifications bool `yaml:"notifications" json:"notifications"`
}

// DefaultConfig enables dialogs and notifications. The chime is opt-in.
func DefaultConfig() Config {
	return Config{Dialogs: true, Notifications: true}
}

// Alerter delivers user-facing alerts outside the speech channel.
type Alerter struct {
	cfg    Config
	logger *slog.Logger

	dialog func(title, message string) error
	beep   func() error
	notify func(title, message string) error

	permissionOnce sync.Once
}

// Option configures an Alerter.
type Option func(*Alerter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Alerter) {
		a.logger = l
	}
}

// WithDialog replaces the blocking dialog implementation.
func WithDialog(fn func(title, message string) error) Option {
	return func(a *Alerter) {
		a.dialog = fn
	}
}

// WithBeep replaces the chime implementation.
func WithBeep(fn func() error) Option {
	return func(a *Alerter) {
		a.beep = fn
	}
}

// WithNotify replaces the notification implementation.
func WithNotify(fn func(title, message string) error) Option {
	return func(a *Alerter) {
		a.notify = fn
	}
}

// New creates an Alerter backed by zenity and beeep.
func New(cfg Config, opts ...Option) *Alerter {
	a := &Alerter{
		cfg:    cfg,
		logger: slog.Default(),
		dialog: func(title, message string) error {
			return zenity.Error(message, zenity.Title(title))
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		notify: func(title, message string) error {
			return beeep.Notify(appName+": "+title, message, "")
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "alert")
	return a
}

// PermissionDenied tells the user which devices could not be opened. The
// dialog blocks until dismissed and is shown at most once per Alerter.
func (a *Alerter) PermissionDenied(missing []string) {
	a.permissionOnce.Do(func() {
		a.logger.Warn("permissions missing", "devices", missing)
		if !a.cfg.Dialogs {
			return
		}
		msg := PermissionMessage
		if len(missing) > 0 {
			msg += " (missing: " + strings.Join(missing, ", ") + ")"
		}
		if err := a.dialog(PermissionTitle, msg); err != nil && !errors.Is(err, zenity.ErrCanceled) {
			a.logger.Warn("permission dialog failed", "error", err)
		}
	})
}

// Chime plays a short beep if enabled.
func (a *Alerter) Chime() {
	if !a.cfg.Chime {
		return
	}
	if err := a.beep(); err != nil {
		a.logger.Debug("chime failed", "error", err)
	}
}

// Notify posts a desktop notification if enabled. Failures are not fatal.
func (a *Alerter) Notify(title, message string) {
	if !a.cfg.Notifications {
		return
	}
	if err := a.notify(title, message); err != nil {
		a.logger.Debug("notification failed", "error", err)
	}
}
