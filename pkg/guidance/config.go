package guidance

import (
	"errors"
	"fmt"
	"time"
)

// Status texts shown while idle, scanning, answering, or waiting on devices.
const (
	StatusIdle       = `Say "Guide me" to start`
	StatusScanning   = "Guidance Active - Scanning..."
	StatusLoading    = "Loading camera..."
	statusProcessing = `Processing: "%s"`
)

// Phrases holds the fixed spoken responses.
type Phrases struct {
	Activated   string `yaml:"activated" json:"activated"`
	Deactivated string `yaml:"deactivated" json:"deactivated"`
	Fallback    string `yaml:"fallback" json:"fallback"`
}

// DefaultPhrases returns the stock English responses.
func DefaultPhrases() Phrases {
	return Phrases{
		Activated:   "Guidance activated. I am watching and ready to help.",
		Deactivated: "Guidance stopped",
		Fallback:    "Sorry, I could not process that",
	}
}

// Config holds coordinator settings.
type Config struct {
	// DetectionInterval is the detection timer period.
	DetectionInterval time.Duration `yaml:"detection_interval" json:"detection_interval"`

	// MinConfidence drops detections at or below this score before they
	// reach the session.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	Hazard   HazardRule       `yaml:"hazard" json:"hazard"`
	Buckets  DirectionBuckets `yaml:"buckets" json:"buckets"`
	Commands CommandSet       `yaml:"commands" json:"commands"`
	Phrases  Phrases          `yaml:"phrases" json:"phrases"`

	// RestartDelay is the pause between finishing a spoken answer and
	// restarting speech input.
	RestartDelay time.Duration `yaml:"restart_delay" json:"restart_delay"`

	// MaxSceneObjects caps the scene context sent with a query. 0 = no cap.
	MaxSceneObjects int `yaml:"max_scene_objects" json:"max_scene_objects"`

	// Locale is passed to SpeechInput.Start.
	Locale string `yaml:"locale" json:"locale"`

	// WakeListening keeps speech input running while idle so the
	// activation phrase can be heard.
	WakeListening bool `yaml:"wake_listening" json:"wake_listening"`

	DetectTimeout time.Duration `yaml:"detect_timeout" json:"detect_timeout"`
	QueryTimeout  time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// DefaultConfig returns the stock coordinator configuration.
func DefaultConfig() Config {
	return Config{
		DetectionInterval: time.Second,
		MinConfidence:     0.5,
		Hazard:            DefaultHazardRule(),
		Buckets:           DefaultBuckets(),
		Commands:          DefaultCommands(),
		Phrases:           DefaultPhrases(),
		RestartDelay:      500 * time.Millisecond,
		Locale:            "en-IN",
		WakeListening:     true,
		DetectTimeout:     5 * time.Second,
		QueryTimeout:      30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.DetectionInterval <= 0 {
		errs = append(errs, fmt.Errorf("detection_interval must be positive, got %v", c.DetectionInterval))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence))
	}
	if c.Hazard.Threshold < 0 || c.Hazard.Threshold > 1 {
		errs = append(errs, fmt.Errorf("hazard.threshold must be in [0,1], got %v", c.Hazard.Threshold))
	}
	if c.Buckets.Left < 0 || c.Buckets.Right > 1 || c.Buckets.Left > c.Buckets.Right {
		errs = append(errs, fmt.Errorf("buckets must satisfy 0 <= left <= right <= 1, got %v/%v", c.Buckets.Left, c.Buckets.Right))
	}
	if len(c.Commands.Activate) == 0 {
		errs = append(errs, errors.New("commands.activate must not be empty"))
	}
	if len(c.Commands.Deactivate) == 0 {
		errs = append(errs, errors.New("commands.deactivate must not be empty"))
	}
	if c.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("restart_delay must not be negative, got %v", c.RestartDelay))
	}
	if c.MaxSceneObjects < 0 {
		errs = append(errs, fmt.Errorf("max_scene_objects must not be negative, got %d", c.MaxSceneObjects))
	}
	if c.Phrases.Fallback == "" {
		errs = append(errs, errors.New("phrases.fallback must not be empty"))
	}
	return errors.Join(errs...)
}
