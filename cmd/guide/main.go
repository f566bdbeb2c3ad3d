// Guide - voice and camera guidance for visually impaired users.
//
// Say "guide me" to start. The camera is scanned every second and hazards
// such as stairs are announced with their direction. Ask anything about
// the scene while guidance is active; say "stop" or "exit" to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-guide/internal/config"
	"github.com/teslashibe/go-guide/pkg/guide"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	app, err := guide.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		app.Shutdown()
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	fmt.Println("🦯 Guide is running. Say \"guide me\" to start (Ctrl+C to exit)")
	if err := app.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// loadConfig reads the config file, if any, then applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := flag.String("config", "", "Path to a YAML config file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	addr := flag.String("addr", "", "Dashboard listen address (e.g. :8080)")
	noWeb := flag.Bool("no-web", false, "Disable the web dashboard")
	device := flag.String("camera", "", "Camera index or path (overrides GUIDE_CAMERA)")
	ttsName := flag.String("tts", "", "TTS provider: openai, elevenlabs, mock")
	llmName := flag.String("llm", "", "LLM provider: openai, gemini, compatible, mock")
	sttName := flag.String("stt", "", "Speech provider: whisper, deepgram, mock")
	locale := flag.String("locale", "", "Recognition locale (e.g. en-IN, hi-IN)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *path != "" {
		cfg, err = config.Load(*path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if *debug {
		cfg.Log.Level = config.LogDebug
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *locale != "" {
		cfg.Guidance.Locale = *locale
	}
	if *ttsName != "" {
		cfg.TTS.Providers = []config.ProviderEntry{{Name: *ttsName}}
	}
	if *llmName != "" {
		cfg.Inference.Providers = []config.ProviderEntry{{Name: *llmName, BaseURL: os.Getenv("GUIDE_LLM_BASE_URL")}}
	}
	if *sttName != "" {
		cfg.Speech.Provider = config.ProviderEntry{Name: *sttName}
	}

	// Flags may have replaced provider entries; fill their keys again.
	cfg.ApplyEnv()
	return cfg, config.Validate(cfg)
}
