// Package present draws tracked poses and hands solved joint transforms to avatar renderers.
package present

import (
	"context"
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/pose"
)

// ErrRendererGone is returned by a renderer whose output can no longer be delivered, such as
// an avatar process that exited or a window the user closed.
var ErrRendererGone = errors.New("renderer is gone")

// Rect is a destination viewport in pixels.
type Rect struct {
	X, Y, W, H float64
}

// Project maps a normalized point into dest: origin + p*size.
func Project(x, y float64, dest Rect) (float64, float64) {
	return dest.X + x*dest.W, dest.Y + y*dest.H
}

// ProjectLandmark maps a landmark into dest and rounds to the nearest pixel.
func ProjectLandmark(l landmark.Landmark, dest Rect) image.Point {
	x, y := Project(l.X, l.Y, dest)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// Scene is everything a renderer gets for one tick. Frame and Pose come from the same
// buffer read, so the overlay and the avatar always agree. Image may be nil.
type Scene struct {
	Frame *landmark.Frame
	Pose  *pose.PoseFrame
	Image *gocv.Mat

	ShowCamera bool
	BlurCamera bool
}

// Renderer consumes one Scene per tick.
type Renderer interface {
	Render(ctx context.Context, scene Scene) error
	Close() error
}

// Multi renders to each renderer in order. A failing renderer does not starve the ones
// after it.
type Multi []Renderer

// Render implements Renderer. Every renderer sees the scene; the returned error is the first
// ErrRendererGone if any renderer is gone, otherwise the first error.
func (m Multi) Render(ctx context.Context, scene Scene) error {
	var first, gone error
	for _, r := range m {
		err := r.Render(ctx, scene)
		switch {
		case err == nil:
		case errors.Is(err, ErrRendererGone):
			if gone == nil {
				gone = err
			}
		case first == nil:
			first = err
		}
	}
	if gone != nil {
		return gone
	}
	return first
}

// Close closes every renderer and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
