// Package app wires camera capture, pose detection, retargeting and presentation into the
// running tracker.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/capture"
	"github.com/ayusman/minime/internal/config"
	"github.com/ayusman/minime/internal/detector"
	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/metrics"
	"github.com/ayusman/minime/internal/pose"
	"github.com/ayusman/minime/internal/present"
	"github.com/ayusman/minime/internal/store"
	"github.com/ayusman/minime/internal/tracking"
)

// IdleFPS is the camera frame rate while the motion gate is closed.
const IdleFPS = 5

// WindowTitle is the title of the overlay window.
const WindowTitle = "minime"

// Options wires the application. Nil collaborators are built from Config.
type Options struct {
	Config   config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Solver   *pose.Solver
	Metrics  *metrics.Metrics

	// Renderers are presented after the overlay and before the websocket broadcaster.
	Renderers []present.Renderer
}

// Status is a snapshot of the tracker state.
type Status struct {
	Running      bool                 `json:"running"`
	Uptime       string               `json:"uptime,omitempty"`
	Tracking     bool                 `json:"tracking"`
	ShowCamera   bool                 `json:"show_camera"`
	BlurCamera   bool                 `json:"blur_camera"`
	MotionActive bool                 `json:"motion_active"`
	Recording    string               `json:"recording,omitempty"`
	Skeleton     string               `json:"skeleton"`
	Ticks        uint64               `json:"ticks"`
	Clients      int                  `json:"clients"`
	Buffer       tracking.Stats       `json:"buffer"`
	Solver       pose.Stats           `json:"solver"`
	Detector     detector.RunnerStats `json:"detector"`
}

// App is the tracker: a capture loop feeds the detector runner, the runner publishes into
// the landmark buffer, and a render loop reads the buffer once per tick, solves the avatar
// pose and hands both to the renderers.
type App struct {
	cfg     config.Config
	store   *store.Store
	camera  capture.Camera
	gate    *capture.MotionGate
	runner  *detector.Runner
	buffer  *tracking.Buffer
	overlay *present.Overlay
	hub     *present.Broadcaster
	metrics *metrics.Metrics
	rec     *recorder

	mu         sync.RWMutex
	solver     *pose.Solver
	renderers  present.Multi
	tracking   bool
	showCamera bool
	blurCamera bool
	cancel     context.CancelFunc
	started    time.Time
	stopped    bool

	wg       sync.WaitGroup
	failOnce sync.Once
	failed   chan struct{}
	err      error

	imgMu sync.Mutex
	image gocv.Mat

	ticks atomic.Uint64
}

// New builds the application. It fails if the avatar cannot be bound to its retargeting map.
func New(opts Options) (*App, error) {
	cfg := opts.Config

	solver := opts.Solver
	if solver == nil {
		s, err := LoadSolver(cfg.Avatar, opts.Store)
		if err != nil {
			return nil, err
		}
		solver = s
	}

	cam := opts.Camera
	if cam == nil {
		cam = capture.NewCamera(cfg.Camera)
	}

	det := opts.Detector
	if det == nil {
		d, err := detector.New(cfg.Detector)
		if err != nil {
			logger.Log().Warn("pose detector not available, tracking nobody",
				zap.String("backend", cfg.Detector.Backend), zap.Error(err))
			d = detector.NewMockDetector()
		}
		det = d
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	a := &App{
		cfg:        cfg,
		store:      opts.Store,
		camera:     cam,
		buffer:     tracking.NewBuffer(),
		overlay:    present.NewOverlay(cfg.Render.Width, cfg.Render.Height),
		hub:        present.NewBroadcaster(),
		metrics:    m,
		solver:     solver,
		tracking:   true,
		showCamera: cfg.Render.ShowCamera,
		blurCamera: cfg.Render.BlurCamera,
		failed:     make(chan struct{}),
		image:      gocv.NewMat(),
	}
	if cfg.Motion.Enabled {
		a.gate = capture.NewMotionGate(cfg.Motion.Threshold, cfg.Motion.Hold)
	}
	if opts.Store != nil {
		a.rec = newRecorder(opts.Store.Recordings())
		settings := opts.Store.Settings()
		a.showCamera = settings.Bool(store.SettingShowCamera, a.showCamera)
		a.blurCamera = settings.Bool(store.SettingBlurCamera, a.blurCamera)
	} else {
		a.rec = newRecorder(nil)
	}
	a.runner = detector.NewRunner(det, a.onDetection)

	if cfg.Render.Window {
		a.renderers = append(a.renderers, present.NewWindow(WindowTitle, a.overlay, a.HandleKey))
	} else {
		a.renderers = append(a.renderers, a.overlay)
	}
	a.renderers = append(a.renderers, opts.Renderers...)

	m.WatchBuffer(a.buffer)
	m.WatchRunner(a.runner)
	m.WatchSolver(func() pose.Stats { return a.Solver().Stats() })

	return a, nil
}

// Start opens the camera, launches the avatar renderer process when one is configured and
// starts the capture and render loops.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.stopped {
		return errors.New("app already stopped")
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.cfg.Camera.FPS)

	if a.cfg.Render.Renderer.Path != "" {
		proc, err := present.StartProcess(a.cfg.Render.Renderer)
		if err != nil {
			a.camera.Close()
			return err
		}
		a.renderers = append(a.renderers, proc)
	}
	a.renderers = append(a.renderers, a.hub)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.started = time.Now()

	a.wg.Add(2)
	go a.captureLoop(ctx)
	go a.renderLoop(ctx)

	logger.Log().Info("tracker started",
		zap.String("skeleton", a.solver.Skeleton().ID()),
		zap.Int("tick_rate", a.cfg.Render.TickRate))
	return nil
}

// Stop halts both loops and releases every resource. Stop is idempotent; the app cannot be
// restarted.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	if err := a.runner.Close(); err != nil {
		logger.Log().Warn("error closing detector", zap.Error(err))
	}
	a.buffer.Close()
	if err := a.camera.Close(); err != nil {
		logger.Log().Warn("error closing camera", zap.Error(err))
	}
	if a.gate != nil {
		a.gate.Close()
	}
	if _, err := a.rec.stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		logger.Log().Warn("error finishing recording", zap.Error(err))
	}

	a.mu.RLock()
	renderers := a.renderers
	a.mu.RUnlock()
	if err := renderers.Close(); err != nil {
		logger.Log().Warn("error closing renderer", zap.Error(err))
	}
	a.overlay.Close()

	a.imgMu.Lock()
	a.image.Close()
	a.imgMu.Unlock()

	logger.Log().Info("tracker stopped", zap.Uint64("ticks", a.ticks.Load()))
}

// Run starts the app and blocks until ctx is done or a renderer goes away. It returns
// present.ErrRendererGone in the latter case.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-a.failed:
	}
	a.Stop()
	return a.Err()
}

// Done is closed when the render loop ends on its own because a renderer failed.
func (a *App) Done() <-chan struct{} {
	return a.failed
}

// Err returns the error that ended the render loop, if any.
func (a *App) Err() error {
	select {
	case <-a.failed:
		return a.err
	default:
		return nil
	}
}

func (a *App) fail(err error) {
	a.failOnce.Do(func() {
		a.err = err
		close(a.failed)
	})
}

// onDetection runs on the detector runner goroutine. The first pose is published; an empty
// result tells the buffer nobody is in view.
func (a *App) onDetection(frames []*landmark.Frame, ts time.Duration) {
	var f *landmark.Frame
	if len(frames) > 0 {
		f = frames[0]
	}
	if err := a.buffer.Publish(f); err != nil {
		logger.Log().Warn("detector frame rejected", zap.Duration("ts", ts), zap.Error(err))
		return
	}
	a.rec.add(f)
}

// Rebind reloads the skeleton and retargeting map, picking up rigs changed in the store.
// On failure the current solver stays in place.
func (a *App) Rebind() error {
	solver, err := LoadSolver(a.cfg.Avatar, a.store)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.solver = solver
	a.mu.Unlock()
	return nil
}

// HandleKey applies the overlay keyboard shortcuts: c shows the camera, b blurs it.
func (a *App) HandleKey(key rune) {
	switch key {
	case 'c':
		a.SetShowCamera(!a.ShowCamera())
	case 'b':
		a.SetBlurCamera(!a.BlurCamera())
	}
}

// SetTracking pauses or resumes detection. The avatar holds its last pose while paused.
func (a *App) SetTracking(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracking = enabled
}

// Tracking reports whether detection is running.
func (a *App) Tracking() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tracking
}

// SetShowCamera toggles the camera image behind the overlay.
func (a *App) SetShowCamera(show bool) {
	a.mu.Lock()
	a.showCamera = show
	a.mu.Unlock()
	a.saveSetting(store.SettingShowCamera, show)
}

// ShowCamera reports whether the camera image is drawn.
func (a *App) ShowCamera() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.showCamera
}

// SetBlurCamera toggles blurring of the camera image.
func (a *App) SetBlurCamera(blur bool) {
	a.mu.Lock()
	a.blurCamera = blur
	a.mu.Unlock()
	a.saveSetting(store.SettingBlurCamera, blur)
}

// BlurCamera reports whether the camera image is blurred.
func (a *App) BlurCamera() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.blurCamera
}

func (a *App) saveSetting(key string, value bool) {
	if a.store == nil {
		return
	}
	if err := a.store.Settings().SetBool(key, value); err != nil {
		logger.Log().Warn("failed to save setting", zap.String("key", key), zap.Error(err))
	}
}

// StartRecording begins writing detected frames to a new recording.
func (a *App) StartRecording(name string) (*store.Recording, error) {
	return a.rec.start(name, a.Solver().Skeleton().ID())
}

// StopRecording finishes the recording in progress.
func (a *App) StopRecording() (*store.Recording, error) {
	return a.rec.stop()
}

// Status returns a snapshot of the tracker state.
func (a *App) Status() Status {
	a.mu.RLock()
	s := Status{
		Running:    a.cancel != nil,
		Tracking:   a.tracking,
		ShowCamera: a.showCamera,
		BlurCamera: a.blurCamera,
		Skeleton:   a.solver.Skeleton().ID(),
		Solver:     a.solver.Stats(),
	}
	if s.Running {
		s.Uptime = time.Since(a.started).Round(time.Second).String()
	}
	a.mu.RUnlock()

	s.MotionActive = a.gate == nil || a.gate.Active()
	s.Recording = a.rec.active()
	s.Ticks = a.ticks.Load()
	s.Clients = a.hub.Clients()
	s.Buffer = a.buffer.Stats()
	s.Detector = a.runner.Stats()
	return s
}

// Solver returns the pose solver currently in use.
func (a *App) Solver() *pose.Solver {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.solver
}

// Buffer returns the landmark buffer.
func (a *App) Buffer() *tracking.Buffer {
	return a.buffer
}

// Overlay returns the overlay canvas, also served as the MJPEG stream.
func (a *App) Overlay() *present.Overlay {
	return a.overlay
}

// Broadcaster returns the hub that streams pose messages to websocket clients.
func (a *App) Broadcaster() *present.Broadcaster {
	return a.hub
}

// Metrics returns the metrics set.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}
