package guidance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/internal/observe"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics records loop activity on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCamera sets the capture device. Without one every tick is skipped.
func WithCamera(cam CaptureDevice) Option {
	return func(c *Coordinator) { c.camera = cam }
}

// WithOnChange registers a callback invoked from the loop goroutine after
// every state change. It must not block or call back into the Coordinator.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithInitialStatus overrides the idle status shown before the first
// activation, e.g. StatusLoading when a device is missing.
func WithInitialStatus(s string) Option {
	return func(c *Coordinator) { c.session.StatusText = s }
}

// Coordinator owns a guidance Session and drives it from speech
// recognitions, detection ticks and query results. All session state is
// touched only by the goroutine running Run.
type Coordinator struct {
	cfg      Config
	input    SpeechInput
	output   SpeechOutput
	detector Detector
	backend  QueryBackend
	camera   CaptureDevice
	logger   *slog.Logger
	metrics  *observe.Metrics
	onChange func(Snapshot)

	// loop-owned
	session   Session
	gen       uint64
	runCtx    context.Context
	actCtx    context.Context
	actCancel context.CancelFunc
	ticker    *time.Ticker
	detecting bool

	events  chan any
	cmds    chan command
	done    chan struct{}
	started atomic.Bool
	snap    atomic.Pointer[Snapshot]
}

type commandKind int

const (
	cmdActivate commandKind = iota
	cmdDeactivate
	cmdToggle
	cmdAsk
)

type command struct {
	kind  commandKind
	text  string
	reply chan bool
}

type detectionDone struct {
	gen     uint64
	objects []DetectedObject
	err     error
	took    time.Duration
}

type queryDone struct {
	gen       uint64
	utterance string
	response  string
	err       error
	took      time.Duration
}

type listenDue struct {
	gen            uint64
	conversational bool
}

// New creates a Coordinator. input may be nil when utterances only arrive
// through Ask and the command methods.
func New(cfg Config, input SpeechInput, output SpeechOutput, detector Detector, backend QueryBackend, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("guidance: invalid config: %w", err)
	}
	if output == nil {
		return nil, errors.New("guidance: speech output is required")
	}
	if detector == nil {
		return nil, errors.New("guidance: detector is required")
	}
	if backend == nil {
		return nil, errors.New("guidance: query backend is required")
	}

	c := &Coordinator{
		cfg:      cfg,
		input:    input,
		output:   output,
		detector: detector,
		backend:  backend,
		logger:   slog.Default(),
		session:  Session{StatusText: StatusIdle},
		runCtx:   context.Background(),
		events:   make(chan any, 16),
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "guidance.coordinator")
	snap := c.session.snapshot()
	c.snap.Store(&snap)
	return c, nil
}

// Snapshot returns the most recently published session state. Safe for
// concurrent use.
func (c *Coordinator) Snapshot() Snapshot {
	return *c.snap.Load()
}

// Config returns the coordinator configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Activate starts guidance. It reports false when already active.
func (c *Coordinator) Activate(ctx context.Context) (bool, error) {
	return c.send(ctx, command{kind: cmdActivate})
}

// Deactivate stops guidance. It reports false when already idle.
func (c *Coordinator) Deactivate(ctx context.Context) (bool, error) {
	return c.send(ctx, command{kind: cmdDeactivate})
}

// Toggle activates when idle and deactivates when active. It reports the
// resulting Active state.
func (c *Coordinator) Toggle(ctx context.Context) (bool, error) {
	return c.send(ctx, command{kind: cmdToggle})
}

// Ask dispatches text as a question, as if it had been heard. It reports
// false when guidance is not active.
func (c *Coordinator) Ask(ctx context.Context, text string) (bool, error) {
	return c.send(ctx, command{kind: cmdAsk, text: text})
}

func (c *Coordinator) send(ctx context.Context, cmd command) (bool, error) {
	cmd.reply = make(chan bool, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return false, ErrNotRunning
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-cmd.reply:
		return ok, nil
	case <-c.done:
		return false, ErrNotRunning
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Run drives the coordinator until ctx is cancelled. It may be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("guidance: coordinator already running")
	}
	defer close(c.done)
	defer c.teardown()

	c.runCtx = ctx
	c.logger.Info("coordinator started",
		"interval", c.cfg.DetectionInterval,
		"locale", c.cfg.Locale,
		"camera", c.camera != nil,
		"wake_listening", c.cfg.WakeListening)

	var results <-chan Recognition
	if c.input != nil {
		results = c.input.Results()
		if c.cfg.WakeListening {
			c.startInput()
		}
	}

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C
		}

		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping")
			return nil

		case r, ok := <-results:
			if !ok {
				c.logger.Warn("speech input closed")
				results = nil
				continue
			}
			c.handleRecognition(r)

		case <-tick:
			c.tick()

		case cmd := <-c.cmds:
			cmd.reply <- c.handleCommand(cmd)

		case ev := <-c.events:
			switch ev := ev.(type) {
			case detectionDone:
				c.handleDetection(ev)
			case queryDone:
				c.handleQuery(ev)
			case listenDue:
				c.handleListen(ev)
			}
		}
	}
}

func (c *Coordinator) teardown() {
	c.stopTicker()
	if c.actCancel != nil {
		c.actCancel()
	}
	if c.session.Active {
		c.metrics.RecordTransition(context.Background(), false)
	}
	c.stopInput()
}

func (c *Coordinator) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdActivate:
		return c.activate()
	case cmdDeactivate:
		return c.deactivate()
	case cmdToggle:
		if c.session.Active {
			c.deactivate()
		} else {
			c.activate()
		}
		return c.session.Active
	case cmdAsk:
		text := strings.TrimSpace(cmd.text)
		if !c.session.Active || text == "" {
			return false
		}
		c.query(text)
		return true
	}
	return false
}

func (c *Coordinator) handleRecognition(r Recognition) {
	if r.Err != nil {
		c.logger.Warn("speech recognition error", "error", r.Err)
		c.metrics.RecordRecognition(c.runCtx, "error")
		return
	}

	text := strings.ToLower(strings.TrimSpace(r.Utterance()))
	intent := c.cfg.Commands.Classify(text, c.session.Active)
	c.logger.Info("heard", "text", text, "intent", intent.String(), "active", c.session.Active)
	c.metrics.RecordRecognition(c.runCtx, intent.String())

	switch intent {
	case IntentActivate:
		c.activate()
	case IntentDeactivate:
		c.deactivate()
	case IntentQuery:
		c.query(text)
	default:
		// Recognizers may stop after delivering a result; re-arm.
		if c.session.Active {
			c.setListening(false)
			go c.listenAfter(c.actCtx, c.gen, true, c.cfg.RestartDelay)
		} else if c.cfg.WakeListening {
			go c.listenAfter(c.runCtx, c.gen, false, c.cfg.RestartDelay)
		}
	}
}

func (c *Coordinator) activate() bool {
	if c.session.Active {
		return false
	}

	c.gen++
	c.actCtx, c.actCancel = context.WithCancel(c.runCtx)
	c.detecting = false
	c.session = Session{
		ID:          uuid.NewString(),
		Active:      true,
		StatusText:  c.restingStatus(true),
		ActivatedAt: time.Now(),
	}
	c.stopInput()
	c.ticker = time.NewTicker(c.cfg.DetectionInterval)

	c.logger.Info("guidance activated", "session", c.session.ID)
	c.metrics.RecordTransition(c.runCtx, true)
	c.publish()

	gen, ctx := c.gen, c.actCtx
	c.say(ctx, c.cfg.Phrases.Activated, "ack", func() {
		c.listenAfter(ctx, gen, true, 0)
	})
	return true
}

func (c *Coordinator) deactivate() bool {
	if !c.session.Active {
		return false
	}

	c.stopTicker()
	c.actCancel()
	c.gen++
	c.detecting = false
	c.stopInput()

	id := c.session.ID
	c.session.Active = false
	c.session.Listening = false
	c.session.StatusText = c.restingStatus(false)

	c.logger.Info("guidance stopped", "session", id)
	c.metrics.RecordTransition(c.runCtx, false)
	c.publish()

	gen, ctx := c.gen, c.runCtx
	c.say(ctx, c.cfg.Phrases.Deactivated, "ack", func() {
		if c.cfg.WakeListening {
			c.listenAfter(ctx, gen, false, 0)
		}
	})
	return true
}

// restingStatus is the status text between answers. Without a camera it
// stays StatusLoading since no scan can run.
func (c *Coordinator) restingStatus(active bool) string {
	switch {
	case c.camera == nil:
		return StatusLoading
	case active:
		return StatusScanning
	}
	return StatusIdle
}

func (c *Coordinator) tick() {
	if !c.session.Active {
		return
	}
	if c.detecting {
		c.logger.Debug("detection still in flight, skipping tick")
		c.metrics.RecordTick(c.actCtx, observe.TickInFlight)
		return
	}
	if c.camera == nil || !c.camera.Available() {
		c.metrics.RecordTick(c.actCtx, observe.TickNoCamera)
		return
	}

	c.detecting = true
	go c.detect(c.actCtx, c.gen)
}

func (c *Coordinator) detect(ctx context.Context, gen uint64) {
	start := time.Now()
	frame, err := c.camera.Capture(ctx)
	if err != nil {
		c.post(detectionDone{gen: gen, err: fmt.Errorf("%w: %w", ErrCapture, err), took: time.Since(start)})
		return
	}
	if err := ctx.Err(); err != nil {
		c.post(detectionDone{gen: gen, err: err, took: time.Since(start)})
		return
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DetectTimeout)
	objects, err := c.detector.Detect(dctx, frame)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDetection, err)
	}
	c.post(detectionDone{gen: gen, objects: objects, err: err, took: time.Since(start)})
}

func (c *Coordinator) handleDetection(ev detectionDone) {
	if ev.gen != c.gen || !c.session.Active {
		c.logger.Debug("discarding stale detection", "gen", ev.gen)
		c.metrics.RecordTick(c.runCtx, observe.TickStale)
		return
	}
	c.detecting = false

	if ev.err != nil {
		outcome := observe.TickDetectErr
		if errors.Is(ev.err, ErrCapture) {
			outcome = observe.TickCaptureErr
		}
		c.logger.Warn("detection cycle failed", "error", ev.err)
		c.metrics.RecordTick(c.actCtx, outcome)
		return
	}

	objects := FilterConfidence(ev.objects, c.cfg.MinConfidence)
	c.session.LastObjects = objects
	c.metrics.RecordTick(c.actCtx, observe.TickDetected)
	c.metrics.RecordDetection(c.actCtx, ev.took, len(objects))
	c.logger.Debug("detection cycle", "objects", len(objects), "took", ev.took)

	if hazard, ok := c.cfg.Hazard.First(objects); ok {
		warning := Warning(hazard, c.cfg.Buckets)
		c.logger.Info("hazard", "label", hazard.Label, "confidence", hazard.Confidence, "warning", warning)
		c.metrics.RecordHazard(c.actCtx, hazard.Label)
		c.say(c.actCtx, warning, "hazard", nil)
	}
	c.publish()
}

func (c *Coordinator) query(text string) {
	c.stopInput()
	c.session.Listening = false
	c.session.StatusText = fmt.Sprintf(statusProcessing, text)
	scene := SceneContext(c.session.LastObjects, c.cfg.Buckets, c.cfg.MaxSceneObjects)
	c.publish()

	c.logger.Info("query", "text", text, "scene", scene)
	gen, ctx := c.gen, c.actCtx
	go func() {
		qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
		start := time.Now()
		resp, err := c.backend.Query(qctx, text, scene)
		c.post(queryDone{gen: gen, utterance: text, response: resp, err: err, took: time.Since(start)})
	}()
}

func (c *Coordinator) handleQuery(ev queryDone) {
	if ev.gen != c.gen || !c.session.Active {
		c.logger.Debug("discarding stale query result", "text", ev.utterance)
		c.metrics.RecordQuery(c.runCtx, ev.took, "stale")
		return
	}

	reply := strings.TrimSpace(ev.response)
	if ev.err != nil || reply == "" {
		c.logger.Warn("query failed", "text", ev.utterance, "error", ev.err)
		c.metrics.RecordQuery(c.actCtx, ev.took, "error")
		reply = c.cfg.Phrases.Fallback
	} else {
		c.metrics.RecordQuery(c.actCtx, ev.took, "ok")
		c.session.StatusText = reply
		c.publish()
	}

	gen, ctx := c.gen, c.actCtx
	c.say(ctx, reply, "answer", func() {
		c.listenAfter(ctx, gen, true, c.cfg.RestartDelay)
	})
}

func (c *Coordinator) handleListen(ev listenDue) {
	if ev.gen != c.gen {
		return
	}
	if ev.conversational {
		if !c.session.Active {
			return
		}
		c.setListening(c.startInput())
		return
	}
	if !c.session.Active && c.cfg.WakeListening {
		c.startInput()
	}
}

func (c *Coordinator) setListening(v bool) {
	v = v && c.session.Active
	if c.session.Listening == v {
		return
	}
	c.session.Listening = v
	c.publish()
}

// say speaks text on a worker goroutine and then runs then, if set.
func (c *Coordinator) say(ctx context.Context, text, kind string, then func()) {
	go func() {
		start := time.Now()
		if err := c.output.Speak(ctx, text); err != nil && ctx.Err() == nil {
			c.logger.Warn("speak failed", "kind", kind, "error", err)
		}
		c.metrics.RecordSpeech(context.Background(), time.Since(start), kind)
		if then != nil {
			then()
		}
	}()
}

// listenAfter posts a listen request after delay unless ctx ends first.
func (c *Coordinator) listenAfter(ctx context.Context, gen uint64, conversational bool, delay time.Duration) {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	c.post(listenDue{gen: gen, conversational: conversational})
}

func (c *Coordinator) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) startInput() bool {
	if c.input == nil {
		return false
	}
	if err := c.input.Start(c.runCtx, c.cfg.Locale); err != nil {
		c.logger.Warn("speech input start failed", "error", err)
		return false
	}
	return true
}

func (c *Coordinator) stopInput() {
	if c.input == nil {
		return
	}
	if err := c.input.Stop(); err != nil {
		c.logger.Warn("speech input stop failed", "error", err)
	}
}

func (c *Coordinator) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Coordinator) publish() {
	snap := c.session.snapshot()
	c.snap.Store(&snap)
	if c.onChange != nil {
		c.onChange(snap)
	}
}
