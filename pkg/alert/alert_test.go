package alert

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

type recorder struct {
	mu      sync.Mutex
	dialogs []string
	beeps   int
	notes   []string
}

func (r *recorder) opts(err error) []Option {
	return []Option{
		WithDialog(func(title, message string) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.dialogs = append(r.dialogs, title+"|"+message)
			return err
		}),
		WithBeep(func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.beeps++
			return err
		}),
		WithNotify(func(title, message string) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.notes = append(r.notes, title+"|"+message)
			return err
		}),
	}
}

func TestPermissionDeniedShownOnce(t *testing.T) {
	rec := &recorder{}
	a := New(DefaultConfig(), rec.opts(nil)...)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.PermissionDenied([]string{"camera", "microphone"})
		}()
	}
	wg.Wait()

	if len(rec.dialogs) != 1 {
		t.Fatalf("dialogs = %d, want 1", len(rec.dialogs))
	}
	d := rec.dialogs[0]
	if !strings.HasPrefix(d, PermissionTitle+"|"+PermissionMessage) {
		t.Errorf("dialog = %q", d)
	}
	if !strings.Contains(d, "camera, microphone") {
		t.Errorf("dialog does not list devices: %q", d)
	}
}

func TestAlertChannelsRespectConfig(t *testing.T) {
	tests := []struct {
		name                  string
		cfg                   Config
		dialogs, beeps, notes int
	}{
		{"defaults", DefaultConfig(), 1, 0, 1},
		{"all on", Config{Dialogs: true, Chime: true, Notifications: true}, 1, 1, 1},
		{"all off", Config{}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			a := New(tt.cfg, rec.opts(nil)...)
			a.PermissionDenied(nil)
			a.Chime()
			a.Notify("Guidance", "active")

			if len(rec.dialogs) != tt.dialogs || rec.beeps != tt.beeps || len(rec.notes) != tt.notes {
				t.Errorf("dialogs=%d beeps=%d notes=%d, want %d %d %d",
					len(rec.dialogs), rec.beeps, len(rec.notes), tt.dialogs, tt.beeps, tt.notes)
			}
		})
	}
}

func TestAlertFailuresAreSwallowed(t *testing.T) {
	rec := &recorder{}
	a := New(Config{Dialogs: true, Chime: true, Notifications: true}, rec.opts(errors.New("no display"))...)

	a.PermissionDenied([]string{"camera"})
	a.Chime()
	a.Notify("x", "y")

	if len(rec.dialogs) != 1 || rec.beeps != 1 || len(rec.notes) != 1 {
		t.Error("expected every channel to be attempted once")
	}
}
