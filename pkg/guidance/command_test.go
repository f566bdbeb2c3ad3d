package guidance

import "testing"

func TestCommandSetClassify(t *testing.T) {
	c := DefaultCommands()

	tests := []struct {
		name   string
		text   string
		active bool
		want   Intent
	}{
		{"activate while idle", "guide me", false, IntentActivate},
		{"activate mixed case", "Hey, GUIDE ME please", false, IntentActivate},
		{"activate while active is consumed", "guide me", true, IntentNone},
		{"stop while active", "stop", true, IntentDeactivate},
		{"exit while active", "please exit now", true, IntentDeactivate},
		{"stop inside a question", "where is the bus stop", true, IntentDeactivate},
		{"stop while idle is ignored", "stop", false, IntentNone},
		{"question while active", "what is in front of me", true, IntentQuery},
		{"question while idle", "what is in front of me", false, IntentNone},
		{"empty", "   ", true, IntentNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.text, tt.active); got != tt.want {
				t.Errorf("Classify(%q, %v) = %v, want %v", tt.text, tt.active, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.DetectionInterval = 0 }},
		{"confidence out of range", func(c *Config) { c.MinConfidence = 1.5 }},
		{"hazard threshold out of range", func(c *Config) { c.Hazard.Threshold = -0.1 }},
		{"inverted buckets", func(c *Config) { c.Buckets = DirectionBuckets{Left: 0.7, Right: 0.3} }},
		{"no activation phrase", func(c *Config) { c.Commands.Activate = nil }},
		{"no stop phrase", func(c *Config) { c.Commands.Deactivate = nil }},
		{"negative delay", func(c *Config) { c.RestartDelay = -1 }},
		{"negative scene cap", func(c *Config) { c.MaxSceneObjects = -1 }},
		{"empty fallback", func(c *Config) { c.Phrases.Fallback = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
