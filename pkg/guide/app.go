// Package guide wires the guidance coordinator to real devices and
// providers: camera, detector, microphone, speaker, LLM, dashboard and
// desktop alerts.
package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-guide/internal/config"
	glog "github.com/teslashibe/go-guide/internal/log"
	"github.com/teslashibe/go-guide/internal/observe"
	"github.com/teslashibe/go-guide/pkg/alert"
	"github.com/teslashibe/go-guide/pkg/assistant"
	"github.com/teslashibe/go-guide/pkg/audioio"
	"github.com/teslashibe/go-guide/pkg/camera"
	"github.com/teslashibe/go-guide/pkg/detection"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/inference"
	"github.com/teslashibe/go-guide/pkg/speech"
	"github.com/teslashibe/go-guide/pkg/tts"
	"github.com/teslashibe/go-guide/pkg/web"
)

// Version is reported in the metrics resource.
var Version = "dev"

const notifyTitle = "Guide"

// App owns every component and their lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metricsProvider *observe.Provider
	metrics         *observe.Metrics
	alerter         *alert.Alerter

	camera    *camera.Device
	cameraMgr *camera.Manager
	detector  *detection.Adapter
	llm       inference.Provider
	assistant *assistant.Assistant
	voice     tts.Provider
	speaker   *speech.Speaker
	listener  *speech.Listener

	coordinator *guidance.Coordinator
	web         atomic.Pointer[web.Server]

	missing    []string
	wasActive  atomic.Bool
	closeOnce  sync.Once
	notifyFunc func(title, message string)
}

// New validates cfg and initializes logging.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("guide: invalid config: %w", err)
	}
	glog.Init(string(cfg.Log.Level), cfg.Log.Format)
	return &App{cfg: cfg}, nil
}

// Init builds all components. Missing camera or microphone access is not
// fatal: the user is alerted once and the app runs degraded.
func (a *App) Init(ctx context.Context) error {
	glog.AddHook(a.forwardLog)
	a.logger = glog.Component("guide")

	if err := a.initMetrics(); err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}
	a.alerter = alert.New(a.cfg.Alert, alert.WithLogger(glog.L()))
	a.notifyFunc = a.alerter.Notify

	a.initCamera()
	if err := a.initDetector(); err != nil {
		return fmt.Errorf("detector init: %w", err)
	}
	if err := a.initAssistant(ctx); err != nil {
		return fmt.Errorf("assistant init: %w", err)
	}
	if err := a.initSpeaker(ctx); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	a.initListener()

	if len(a.missing) > 0 {
		a.alerter.PermissionDenied(a.missing)
	}

	if err := a.initCoordinator(); err != nil {
		return fmt.Errorf("coordinator init: %w", err)
	}
	if err := a.initWeb(); err != nil {
		return fmt.Errorf("web init: %w", err)
	}

	a.logger.Info("initialized",
		"camera", a.camera != nil,
		"microphone", a.listener != nil,
		"detector", a.cfg.Detector.Model,
		"dashboard", a.cfg.Web.Enabled,
	)
	return nil
}

// Run starts the coordinator and the dashboard. It blocks until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a.coordinator == nil {
		return errors.New("guide: Run called before Init")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.coordinator.Run(ctx)
	})
	if srv := a.web.Load(); srv != nil {
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	a.logger.Info(`guide ready, say "guide me" to start`)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases devices and providers. Safe to call more than once.
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		if a.listener != nil {
			a.listener.Stop()
		}
		if a.speaker != nil {
			a.speaker.Close()
		}
		if a.voice != nil {
			a.voice.Close()
		}
		if a.llm != nil {
			a.llm.Close()
		}
		if a.detector != nil {
			a.detector.Close()
		}
		if a.camera != nil {
			a.camera.Close()
		}
		if a.metricsProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			a.metricsProvider.Shutdown(ctx)
		}
		if a.logger != nil {
			a.logger.Info("shutdown complete")
		}
	})
}

// Coordinator returns the coordinator built by Init.
func (a *App) Coordinator() *guidance.Coordinator { return a.coordinator }

func (a *App) initMetrics() error {
	if !a.cfg.Metrics.Enabled {
		a.metrics = observe.Default()
		return nil
	}
	p, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    a.cfg.Metrics.ServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return err
	}
	m, err := observe.NewMetrics(p.MeterProvider)
	if err != nil {
		return err
	}
	a.metricsProvider, a.metrics = p, m
	return nil
}

func (a *App) initCamera() {
	a.cameraMgr = camera.NewManager(a.cfg.Camera)

	dev, err := camera.Open(a.cfg.Camera, glog.L())
	if err != nil {
		a.logger.Warn("camera unavailable, running without detection", "device", a.cfg.Camera.Device, "error", err)
		a.missing = append(a.missing, "camera")
		return
	}
	a.camera = dev
	a.cameraMgr.OnConfigChange = dev.Reconfigure
}

func (a *App) initDetector() error {
	backend, err := detection.Open(a.cfg.Detector)
	if err != nil {
		return err
	}
	a.detector = detection.NewAdapter(backend, a.cfg.Guidance.MinConfidence, glog.L())
	return nil
}

func (a *App) initAssistant(ctx context.Context) error {
	llm, err := buildInference(ctx, a.cfg.Inference, glog.L())
	if err != nil {
		return err
	}
	asst, err := assistant.New(llm, a.cfg.Assistant, assistant.WithLogger(glog.L()))
	if err != nil {
		llm.Close()
		return err
	}
	a.llm, a.assistant = llm, asst
	return nil
}

func (a *App) initSpeaker(ctx context.Context) error {
	voice, err := buildTTS(a.cfg.TTS, glog.L())
	if err != nil {
		return err
	}
	sink, err := audioio.NewSink(a.cfg.Audio.Output, glog.L())
	if err != nil {
		voice.Close()
		return err
	}

	opts := []speech.SpeakerOption{
		speech.WithSpeakerLogger(glog.L()),
		speech.WithBefore(a.beforeSpeak),
	}
	if a.cfg.TTS.Queue > 0 {
		opts = append(opts, speech.WithQueue(a.cfg.TTS.Queue))
	}
	spk, err := speech.NewSpeaker(voice, sink, opts...)
	if err != nil {
		voice.Close()
		return err
	}
	if err := spk.Start(ctx); err != nil {
		voice.Close()
		return err
	}
	a.voice, a.speaker = voice, spk
	return nil
}

// initListener sets up speech input. Without a microphone or transcriber
// the app still answers questions sent from the dashboard.
func (a *App) initListener() {
	transcriber, err := buildTranscriber(a.cfg.Speech)
	if err != nil {
		a.logger.Warn("speech recognition unavailable", "provider", a.cfg.Speech.Provider.Name, "error", err)
		return
	}
	source, err := audioio.NewSource(a.cfg.Audio.Input, glog.L())
	if err != nil {
		a.logger.Warn("microphone unavailable", "error", err)
		a.missing = append(a.missing, "microphone")
		return
	}
	l, err := speech.NewListener(source, transcriber, a.cfg.Speech.Listener, speech.WithLogger(glog.L()))
	if err != nil {
		a.logger.Warn("speech listener unavailable", "error", err)
		return
	}
	a.logger.Info("speech recognition ready", "provider", transcriber.Name())
	a.listener = l
}

func (a *App) initCoordinator() error {
	opts := []guidance.Option{
		guidance.WithLogger(glog.L()),
		guidance.WithMetrics(a.metrics),
		guidance.WithOnChange(a.onChange),
	}
	if a.camera != nil {
		opts = append(opts, guidance.WithCamera(a.camera))
	} else {
		opts = append(opts, guidance.WithInitialStatus(guidance.StatusLoading))
	}

	var input guidance.SpeechInput
	if a.listener != nil {
		input = a.listener
	}
	c, err := guidance.New(a.cfg.Guidance, input, a.speaker, a.detector, a.assistant, opts...)
	if err != nil {
		return err
	}
	a.coordinator = c
	return nil
}

func (a *App) initWeb() error {
	if !a.cfg.Web.Enabled {
		return nil
	}
	opts := []web.Option{
		web.WithLogger(glog.L()),
		web.WithBuckets(a.cfg.Guidance.Buckets),
		web.WithDescriber(a.assistant),
		web.WithCameraControl(a.cameraMgr),
	}
	if a.camera != nil {
		opts = append(opts, web.WithCamera(a.camera))
	}
	if a.metricsProvider != nil {
		opts = append(opts, web.WithMetrics(a.metricsProvider.Handler()))
	}
	srv, err := web.New(a.cfg.Web, a.coordinator, opts...)
	if err != nil {
		return err
	}
	a.web.Store(srv)
	return nil
}

// onChange runs on the coordinator goroutine and must not block.
func (a *App) onChange(snap guidance.Snapshot) {
	if srv := a.web.Load(); srv != nil {
		srv.PublishStatus(snap)
	}
	if a.wasActive.Swap(snap.Active) == snap.Active || a.notifyFunc == nil {
		return
	}
	msg := "Guidance stopped"
	if snap.Active {
		msg = "Guidance active"
	}
	go a.notifyFunc(notifyTitle, msg)
}

// beforeSpeak chimes ahead of hazard warnings.
func (a *App) beforeSpeak(ctx context.Context, text string) {
	if a.alerter != nil && guidance.IsWarning(text) {
		a.alerter.Chime()
	}
}

func (a *App) forwardLog(e glog.Entry) {
	if srv := a.web.Load(); srv != nil {
		srv.AddLog(e)
	}
}
