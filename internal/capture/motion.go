package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	motionBlurSize      = 21
	motionDiffThreshold = 25
)

// MotionGate decides whether frames are worth sending to the pose detector. It compares
// each blurred grayscale frame with the previous one; once the changed share of pixels
// stays below the threshold for longer than the hold time, the gate goes idle. A person
// standing still keeps their last detected pose while the detector rests.
type MotionGate struct {
	mu        sync.Mutex
	threshold float64
	hold      time.Duration

	prev       gocv.Mat
	primed     bool
	active     bool
	lastMotion time.Time
}

// NewMotionGate creates a gate. threshold is the percentage of changed pixels that counts as
// motion; hold is how long the gate stays active after the last motion. The gate starts
// active so the first frames are always detected.
func NewMotionGate(threshold float64, hold time.Duration) *MotionGate {
	return &MotionGate{
		threshold: threshold,
		hold:      hold,
		prev:      gocv.NewMat(),
		active:    true,
	}
}

// Observe feeds a frame taken at now and reports whether the gate is active, plus the
// percentage of pixels that changed since the previous frame.
func (g *MotionGate) Observe(frame *gocv.Mat, now time.Time) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return g.active, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(motionBlurSize, motionBlurSize), 0, 0, gocv.BorderDefault)

	if !g.primed || g.prev.Rows() != gray.Rows() || g.prev.Cols() != gray.Cols() {
		gray.CopyTo(&g.prev)
		g.primed = true
		g.lastMotion = now
		return g.active, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)
	gocv.Threshold(diff, &diff, motionDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	gray.CopyTo(&g.prev)

	if changed > g.threshold {
		g.lastMotion = now
		g.active = true
	} else if now.Sub(g.lastMotion) > g.hold {
		g.active = false
	}
	return g.active, changed
}

// Active reports the gate state without feeding a frame.
func (g *MotionGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Reset forgets the previous frame and reopens the gate.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
	g.active = true
}

// Close releases the stored frame. The gate can be fed again afterwards.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.prev = gocv.NewMat()
	g.primed = false
}
