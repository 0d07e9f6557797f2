package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/present"
)

// captureLoop reads camera frames and submits them to the detector runner. It never waits
// for detection: the runner drops frames while it is busy.
//
// Pipeline logic:
// 1. Read at the configured camera rate
// 2. Keep the latest image for the overlay while the camera view is on
// 3. Feed the motion gate; a closed gate skips detection and the avatar holds its pose
// 4. Drop the camera to IdleFPS while the gate is closed, restore on motion
func (a *App) captureLoop(ctx context.Context) {
	defer a.wg.Done()

	activeFPS := a.camera.FPS()
	idle := false

	ticker := time.NewTicker(time.Second / time.Duration(activeFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.Tracking() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			logger.Log().Debug("camera read failed", zap.Error(err))
			continue
		}

		if a.ShowCamera() {
			a.keepImage(frame)
		}

		now := time.Now()
		active := true
		if a.gate != nil {
			active, _ = a.gate.Observe(frame, now)
			if active {
				a.metrics.MotionActive.Set(1)
			} else {
				a.metrics.MotionActive.Set(0)
			}

			if active == idle {
				idle = !active
				rate := activeFPS
				if idle {
					rate = IdleFPS
				}
				a.camera.SetFPS(rate)
				ticker.Reset(time.Second / time.Duration(rate))
				logger.Log().Debug("motion gate changed", zap.Bool("active", active), zap.Int("fps", rate))
			}
		}

		if active {
			a.runner.Submit(frame, now.Sub(a.started))
		}
		frame.Close()
	}
}

// renderLoop runs Tick at the configured rate until ctx is done or a renderer is gone.
func (a *App) renderLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := a.Tick(ctx)
		switch {
		case err == nil:
		case errors.Is(err, present.ErrRendererGone):
			logger.Log().Info("renderer gone, stopping", zap.Error(err))
			a.fail(err)
			return
		case ctx.Err() != nil:
			return
		default:
			a.metrics.RenderErrors.Inc()
			logger.Log().Warn("render tick failed", zap.Error(err))
		}
	}
}

// Tick reads the landmark buffer once, solves the avatar pose and presents both. The
// overlay and the avatar always see the same frame.
func (a *App) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		a.ticks.Add(1)
		a.metrics.Ticks.Inc()
		a.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	frame, _ := a.buffer.Read()
	pf, err := a.Solver().Solve(frame)
	if err != nil {
		return err
	}

	a.mu.RLock()
	scene := present.Scene{
		Frame:      frame,
		Pose:       pf,
		ShowCamera: a.showCamera,
		BlurCamera: a.blurCamera,
	}
	renderers := a.renderers
	a.mu.RUnlock()

	if scene.ShowCamera {
		img := a.cameraImage()
		defer img.Close()
		scene.Image = &img
	}

	return renderers.Render(ctx, scene)
}

// keepImage replaces the stored camera image with a copy of frame.
func (a *App) keepImage(frame *gocv.Mat) {
	a.imgMu.Lock()
	defer a.imgMu.Unlock()
	frame.CopyTo(&a.image)
}

// cameraImage returns a copy of the latest camera image. It may be empty.
func (a *App) cameraImage() gocv.Mat {
	a.imgMu.Lock()
	defer a.imgMu.Unlock()
	return a.image.Clone()
}
