package detector

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/logger"
)

// ResultFunc receives the poses detected in the frame submitted at ts. It runs on the
// runner's goroutine. An empty slice means nobody was found.
type ResultFunc func(frames []*landmark.Frame, ts time.Duration)

// RunnerStats counts runner activity since creation.
type RunnerStats struct {
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Detected  uint64 `json:"detected"`
	Failed    uint64 `json:"failed"`
}

type job struct {
	frame gocv.Mat
	ts    time.Duration
}

// Runner detects asynchronously. Submit never blocks: at most one frame waits while the
// detector is busy and any further frame is dropped. Results are delivered through a
// callback on the runner's own goroutine.
type Runner struct {
	det    Detector
	onDone ResultFunc

	mu     sync.Mutex
	slot   chan job
	closed atomic.Bool
	wg     sync.WaitGroup

	submitted atomic.Uint64
	dropped   atomic.Uint64
	detected  atomic.Uint64
	failed    atomic.Uint64
}

// NewRunner starts a runner around det.
func NewRunner(det Detector, onDone ResultFunc) *Runner {
	r := &Runner{
		det:    det,
		onDone: onDone,
		slot:   make(chan job, 1),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Submit queues a copy of frame for detection. It reports false if the frame was dropped
// because the runner is busy or closed.
func (r *Runner) Submit(frame *gocv.Mat, ts time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return false
	}
	r.submitted.Add(1)

	j := job{frame: frame.Clone(), ts: ts}
	select {
	case r.slot <- j:
		return true
	default:
		j.frame.Close()
		r.dropped.Add(1)
		return false
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()

	for j := range r.slot {
		if r.closed.Load() {
			j.frame.Close()
			continue
		}

		frames, err := r.det.Detect(&j.frame)
		j.frame.Close()

		if err != nil {
			r.failed.Add(1)
			logger.Log().Warn("pose detection failed", zap.Duration("ts", j.ts), zap.Error(err))
			continue
		}
		r.detected.Add(1)

		if r.closed.Load() {
			continue
		}
		stamped := make([]*landmark.Frame, len(frames))
		for i, f := range frames {
			c := *f
			c.Timestamp = j.ts
			stamped[i] = &c
		}
		if r.onDone != nil {
			r.onDone(stamped, j.ts)
		}
	}
}

// Close stops accepting frames, waits for the detection in progress and closes the detector.
// Results that arrive after Close are discarded.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	close(r.slot)
	r.mu.Unlock()

	r.wg.Wait()
	return r.det.Close()
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Submitted: r.submitted.Load(),
		Dropped:   r.dropped.Load(),
		Detected:  r.detected.Load(),
		Failed:    r.failed.Load(),
	}
}
