// Package config loads the go-guide YAML configuration file.
//
// Every section starts from its package defaults; the file only needs the
// values that differ. Secrets are normally left out of the file and
// supplied through the environment (see [Config.ApplyEnv]).
package config

import (
	"time"

	"github.com/teslashibe/go-guide/pkg/alert"
	"github.com/teslashibe/go-guide/pkg/assistant"
	"github.com/teslashibe/go-guide/pkg/audioio"
	"github.com/teslashibe/go-guide/pkg/camera"
	"github.com/teslashibe/go-guide/pkg/detection"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/speech"
	"github.com/teslashibe/go-guide/pkg/web"
)

// LogLevel is the minimum level written by the process logger.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Provider names accepted in the providers lists.
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderCompatible = "compatible" // any OpenAI-compatible endpoint (Ollama, vLLM, Groq)
	ProviderElevenLabs = "elevenlabs"
	ProviderWhisper    = "whisper"
	ProviderDeepgram   = "deepgram"
	ProviderMock       = "mock"
)

// ValidProviderNames lists known provider names per kind.
var ValidProviderNames = map[string][]string{
	"llm": {ProviderOpenAI, ProviderGemini, ProviderCompatible, ProviderMock},
	"tts": {ProviderOpenAI, ProviderElevenLabs, ProviderMock},
	"stt": {ProviderWhisper, ProviderDeepgram, ProviderMock},
}

// Config is the root of the configuration file.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Guidance  guidance.Config  `yaml:"guidance"`
	Camera    camera.Config    `yaml:"camera"`
	Detector  detection.Config `yaml:"detector"`
	Speech    SpeechConfig     `yaml:"speech"`
	TTS       TTSConfig        `yaml:"tts"`
	Inference InferenceConfig  `yaml:"inference"`
	Assistant assistant.Config `yaml:"assistant"`
	Audio     AudioConfig      `yaml:"audio"`
	Web       web.Config       `yaml:"web"`
	Alert     alert.Config     `yaml:"alert"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  LogLevel `yaml:"level"`
	Format string   `yaml:"format"` // "text" or "json"
}

// ProviderEntry selects one provider implementation and its credentials.
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Voice is the TTS voice (OpenAI voice name or ElevenLabs voice ID).
	Voice string `yaml:"voice"`
}

// SpeechConfig configures recognition.
type SpeechConfig struct {
	// Provider transcribes utterances segmented by the listener.
	Provider ProviderEntry `yaml:"provider"`

	// Keyterms boost recognition of the command phrases (Deepgram).
	Keyterms []string `yaml:"keyterms"`

	Listener speech.Config `yaml:"listener"`
}

// TTSConfig configures speech synthesis. Providers are tried in order.
type TTSConfig struct {
	Providers    []ProviderEntry `yaml:"providers"`
	Speed        float64         `yaml:"speed"`
	Instructions string          `yaml:"instructions"`
	Timeout      time.Duration   `yaml:"timeout"`

	// Queue, when positive, makes Speak fire-and-forget with this many
	// pending utterances.
	Queue int `yaml:"queue"`
}

// InferenceConfig configures the language model. Providers are tried in
// order.
type InferenceConfig struct {
	Providers   []ProviderEntry `yaml:"providers"`
	VisionModel string          `yaml:"vision_model"`
	Timeout     time.Duration   `yaml:"timeout"`
	MaxRetries  int             `yaml:"max_retries"`
}

// AudioConfig configures the microphone and speaker.
type AudioConfig struct {
	Input  audioio.Config `yaml:"input"`
	Output audioio.Config `yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics provider.
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a configuration that runs with only OPENAI_API_KEY set.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: LogInfo, Format: "text"},
		Guidance:  guidance.DefaultConfig(),
		Camera:    camera.DefaultConfig(),
		Detector:  detection.DefaultConfig(),
		Assistant: assistant.DefaultConfig(),
		Speech: SpeechConfig{
			Provider: ProviderEntry{Name: ProviderWhisper},
			Keyterms: []string{"guide me", "stop", "exit"},
			Listener: speech.DefaultConfig(),
		},
		TTS: TTSConfig{
			Providers: []ProviderEntry{{Name: ProviderOpenAI}},
			Speed:     0.85,
			Timeout:   30 * time.Second,
		},
		Inference: InferenceConfig{
			Providers:  []ProviderEntry{{Name: ProviderOpenAI}},
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Audio: AudioConfig{
			Input:  audioio.DefaultInputConfig(),
			Output: audioio.DefaultConfig(),
		},
		Web:     web.DefaultConfig(),
		Alert:   alert.DefaultConfig(),
		Metrics: MetricsConfig{Enabled: true, ServiceName: "go-guide"},
	}
}
