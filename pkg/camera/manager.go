package camera

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceFixed is returned when an update tries to switch devices.
var ErrDeviceFixed = errors.New("camera: device cannot be changed at runtime")

// Manager owns the live camera settings.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange applies a validated config, typically Device.Reconfigure.
	// An error is returned to the caller but the new config is kept.
	OnConfigChange func(cfg Config) error
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Settings is GetConfig for the dashboard.
func (m *Manager) Settings() any {
	return m.GetConfig()
}

// SetConfig validates and stores cfg, then runs OnConfigChange.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	apply := m.OnConfigChange
	m.mu.Unlock()

	if apply == nil {
		return nil
	}
	if err := apply(cfg); err != nil {
		return fmt.Errorf("camera: apply settings: %w", err)
	}
	return nil
}

// UpdateConfig merges a partial update keyed by the JSON field names of
// Config. A "preset" key selects the base before the other fields apply.
// Unknown fields are rejected, as is any change of device.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()
	device := cfg.Device

	fields := make(map[string]any, len(params))
	for k, v := range params {
		fields[k] = v
	}

	if v, ok := fields["preset"]; ok {
		name, _ := v.(string)
		preset, ok := Preset(name)
		if !ok {
			return fmt.Errorf("camera: unknown preset %q", name)
		}
		cfg = preset
		delete(fields, "preset")
	}

	if d, ok := fields["device"]; ok && d != device {
		return ErrDeviceFixed
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	cfg.Device = device
	return m.SetConfig(cfg)
}
