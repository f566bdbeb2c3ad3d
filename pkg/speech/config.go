package speech

import (
	"errors"
	"fmt"
	"time"
)

// Default VAD thresholds in dBFS. The gap between on and off gives the
// detector hysteresis so that breath noise does not toggle it.
const (
	DefaultVADOnDB  = -35.0
	DefaultVADOffDB = -45.0
)

// Config controls utterance segmentation and listener behaviour.
type Config struct {
	VADOnDB  float64 `yaml:"vad_on_db" json:"vad_on_db"`
	VADOffDB float64 `yaml:"vad_off_db" json:"vad_off_db"`

	// Attack is how long the level must stay above VADOnDB to open an
	// utterance.
	Attack time.Duration `yaml:"attack" json:"attack"`

	// Release is the trailing silence that closes an utterance.
	Release time.Duration `yaml:"release" json:"release"`

	// Preroll is audio kept from before the attack so the first syllable
	// is not clipped.
	Preroll time.Duration `yaml:"preroll" json:"preroll"`

	// MinSpeech discards utterances with less voiced audio than this.
	MinSpeech time.Duration `yaml:"min_speech" json:"min_speech"`

	// MaxUtterance forces a cut during continuous speech.
	MaxUtterance time.Duration `yaml:"max_utterance" json:"max_utterance"`

	// Continuous keeps listening after a final result. When false the
	// listener stops itself after every result and must be restarted.
	Continuous bool `yaml:"continuous" json:"continuous"`

	TranscribeTimeout time.Duration `yaml:"transcribe_timeout" json:"transcribe_timeout"`
}

// DefaultConfig returns settings tuned for short spoken commands.
func DefaultConfig() Config {
	return Config{
		VADOnDB:           DefaultVADOnDB,
		VADOffDB:          DefaultVADOffDB,
		Attack:            40 * time.Millisecond,
		Release:           700 * time.Millisecond,
		Preroll:           200 * time.Millisecond,
		MinSpeech:         200 * time.Millisecond,
		MaxUtterance:      10 * time.Second,
		TranscribeTimeout: 15 * time.Second,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.VADOffDB > c.VADOnDB {
		errs = append(errs, fmt.Errorf("vad_off_db (%.1f) must not exceed vad_on_db (%.1f)", c.VADOffDB, c.VADOnDB))
	}
	if c.VADOnDB > 0 {
		errs = append(errs, fmt.Errorf("vad_on_db must be <= 0 dBFS, got %.1f", c.VADOnDB))
	}
	if c.Attack <= 0 || c.Release <= 0 {
		errs = append(errs, errors.New("attack and release must be positive"))
	}
	if c.Preroll < 0 || c.MinSpeech < 0 {
		errs = append(errs, errors.New("preroll and min_speech must not be negative"))
	}
	if c.MaxUtterance <= c.MinSpeech {
		errs = append(errs, fmt.Errorf("max_utterance (%s) must exceed min_speech (%s)", c.MaxUtterance, c.MinSpeech))
	}
	if c.TranscribeTimeout <= 0 {
		errs = append(errs, errors.New("transcribe_timeout must be positive"))
	}
	return errors.Join(errs...)
}
