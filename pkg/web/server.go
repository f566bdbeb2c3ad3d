// Package web serves the guidance dashboard: a JSON API mirroring the
// on-screen status, manual controls, Prometheus metrics and websocket
// streams for status, camera preview and logs.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	glog "github.com/teslashibe/go-guide/internal/log"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/hub"
)

const maxLogs = 200

// Config configures the dashboard server.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`

	// PreviewInterval is how often the latest camera frame is pushed to
	// /ws/camera clients. Zero disables the preview.
	PreviewInterval time.Duration `yaml:"preview_interval" json:"preview_interval"`

	// MaxObjects caps the objects listed in the status, like the overlay.
	MaxObjects int `yaml:"max_objects" json:"max_objects"`
}

// DefaultConfig serves on :8080 with a 2 fps preview.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Addr:            ":8080",
		PreviewInterval: 500 * time.Millisecond,
		MaxObjects:      5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Enabled && c.Addr == "" {
		return errors.New("web: addr required when enabled")
	}
	if c.PreviewInterval < 0 || c.MaxObjects < 0 {
		return errors.New("web: preview_interval and max_objects must not be negative")
	}
	return nil
}

// Controller is the coordinator surface the dashboard drives.
type Controller interface {
	Snapshot() guidance.Snapshot
	Toggle(ctx context.Context) (bool, error)
	Ask(ctx context.Context, text string) (bool, error)
}

// Describer describes a camera frame in words.
type Describer interface {
	Describe(ctx context.Context, frame guidance.Frame) (string, error)
}

// Previewer exposes the most recently captured JPEG.
type Previewer interface {
	Latest() ([]byte, time.Time)
}

// CameraControl reads and updates runtime camera settings.
type CameraControl interface {
	Settings() any
	UpdateConfig(params map[string]any) error
}

// Server is the web dashboard server.
type Server struct {
	cfg     Config
	app     *fiber.App
	ctrl    Controller
	buckets guidance.DirectionBuckets
	logger  *slog.Logger

	camera    guidance.CaptureDevice
	previewer Previewer
	cameraCtl CameraControl
	describer Describer
	metrics   http.Handler

	statusHub *hub.Hub
	cameraHub *hub.Hub
	logHub    *hub.Hub

	logsMu sync.RWMutex
	logs   []glog.Entry
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithBuckets sets the direction buckets used to render objects.
func WithBuckets(b guidance.DirectionBuckets) Option {
	return func(s *Server) {
		s.buckets = b
	}
}

// WithCamera enables /api/describe and, if dev also implements
// Previewer, the camera preview stream.
func WithCamera(dev guidance.CaptureDevice) Option {
	return func(s *Server) {
		s.camera = dev
		if p, ok := dev.(Previewer); ok {
			s.previewer = p
		}
	}
}

// WithCameraControl enables GET and PUT /api/camera.
func WithCameraControl(c CameraControl) Option {
	return func(s *Server) {
		s.cameraCtl = c
	}
}

// WithDescriber sets the scene describer used by /api/describe.
func WithDescriber(d Describer) Option {
	return func(s *Server) {
		s.describer = d
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates the dashboard server.
func New(cfg Config, ctrl Controller, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctrl == nil {
		return nil, errors.New("web: controller is required")
	}

	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		buckets: guidance.DefaultBuckets(),
		logger:  slog.Default(),
		logs:    make([]glog.Entry, 0, maxLogs),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.statusHub = hub.New("status", hub.WithLogger(s.logger), hub.WithRetainLast())
	s.cameraHub = hub.New("camera", hub.WithLogger(s.logger), hub.WithRetainLast())
	// Log entries arrive from the log hook; the hub must not log back into it.
	s.logHub = hub.New("logs", hub.WithLogger(glog.Discard()))

	app := fiber.New(fiber.Config{
		AppName:               "Guide Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/toggle", s.handleToggle)
	api.Post("/ask", s.handleAsk)
	api.Post("/describe", s.handleDescribe)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/logs", s.handleGetLogs)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Run starts the hubs, the preview loop and the listener. It returns when
// ctx ends or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.logHub.Run(ctx)
	if s.previewer != nil && s.cfg.PreviewInterval > 0 {
		go s.previewLoop(ctx)
	}

	s.PublishStatus(s.ctrl.Snapshot())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// PublishStatus pushes a coordinator snapshot to /ws/status clients.
func (s *Server) PublishStatus(snap guidance.Snapshot) {
	if err := s.statusHub.BroadcastJSON(s.status(snap)); err != nil {
		s.logger.Warn("encode status failed", "error", err)
	}
}

// AddLog records a log entry and streams it to /ws/logs clients. It is
// meant to be installed with log.AddHook and must not log itself.
func (s *Server) AddLog(e glog.Entry) {
	s.logsMu.Lock()
	if len(s.logs) == maxLogs {
		copy(s.logs, s.logs[1:])
		s.logs = s.logs[:maxLogs-1]
	}
	s.logs = append(s.logs, e)
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(e)
}

// SendCameraFrame pushes a JPEG to /ws/camera clients.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

func (s *Server) previewLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PreviewInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.cameraHub.ClientCount() == 0 {
				continue
			}
			frame, at := s.previewer.Latest()
			if len(frame) == 0 || !at.After(last) {
				continue
			}
			last = at
			s.SendCameraFrame(frame)
		}
	}
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}

// handleLogsWS replays recent logs directly, then joins the log hub.
func (s *Server) handleLogsWS(conn *websocket.Conn) {
	s.logsMu.RLock()
	backlog := make([]glog.Entry, len(s.logs))
	copy(backlog, s.logs)
	s.logsMu.RUnlock()

	for _, e := range backlog {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
	hub.NewClient(s.logHub, conn).Run()
}
