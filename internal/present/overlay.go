package present

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
)

// Overlay look.
var (
	Background      = color.RGBA{R: 18, G: 18, B: 18, A: 255}
	LandmarkColor   = color.RGBA{R: 230, G: 41, B: 55, A: 255}
	ConnectionColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	toggleOn        = color.RGBA{G: 228, B: 48, A: 255}
)

const (
	LandmarkRadius = 5
	LineThickness  = 2

	blurKernel = 31
	textPad    = 10
	textScale  = 0.7
	lineHeight = 29
)

// Overlay draws the 2D skeleton view into a canvas of fixed size. The canvas is reused
// between ticks and guarded so the MJPEG stream can encode it from another goroutine.
type Overlay struct {
	mu     sync.Mutex
	size   image.Point
	canvas gocv.Mat
	scaled gocv.Mat
	frames uint64
}

// NewOverlay creates an overlay canvas of width x height pixels.
func NewOverlay(width, height int) *Overlay {
	return &Overlay{
		size:   image.Pt(width, height),
		canvas: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(18, 18, 18, 255), height, width, gocv.MatTypeCV8UC3),
		scaled: gocv.NewMat(),
	}
}

// Viewport returns the destination rectangle landmarks are projected into.
func (o *Overlay) Viewport() Rect {
	return Rect{W: float64(o.size.X), H: float64(o.size.Y)}
}

// Render implements Renderer.
func (o *Overlay) Render(ctx context.Context, scene Scene) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draw(scene)
	return nil
}

func (o *Overlay) draw(scene Scene) {
	o.canvas.SetTo(gocv.NewScalar(float64(Background.B), float64(Background.G), float64(Background.R), 255))

	if scene.ShowCamera && scene.Image != nil && !scene.Image.Empty() {
		gocv.Resize(*scene.Image, &o.scaled, o.size, 0, 0, gocv.InterpolationLinear)
		if scene.BlurCamera {
			gocv.GaussianBlur(o.scaled, &o.scaled, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)
		}
		o.scaled.CopyTo(&o.canvas)
	}

	if !scene.Frame.Empty() {
		dest := o.Viewport()
		for _, c := range landmark.Connections {
			gocv.Line(&o.canvas,
				ProjectLandmark(scene.Frame.At(c.From), dest),
				ProjectLandmark(scene.Frame.At(c.To), dest),
				ConnectionColor, LineThickness)
		}
		for _, l := range scene.Frame.Points {
			gocv.Circle(&o.canvas, ProjectLandmark(l, dest), LandmarkRadius, LandmarkColor, -1)
		}
	}

	o.drawLegend(scene)
	o.frames++
}

// drawLegend shows the keyboard toggles in the top left corner.
func (o *Overlay) drawLegend(scene Scene) {
	box := image.Rect(0, 0, textPad*2+240, textPad*2+lineHeight*2).Intersect(image.Rect(0, 0, o.size.X, o.size.Y))
	if box.Empty() {
		return
	}
	region := o.canvas.Region(box)
	region.MultiplyFloat(0.5)
	region.Close()

	rows := []struct {
		key, label string
		on         bool
	}{
		{"[C]", "Show Camera", scene.ShowCamera},
		{"[B]", "Blur Camera", scene.BlurCamera},
	}
	for i, r := range rows {
		y := textPad + lineHeight*(i+1) - 8
		c := LandmarkColor
		if r.on {
			c = toggleOn
		}
		gocv.PutText(&o.canvas, r.key, image.Pt(textPad, y), gocv.FontHersheySimplex, textScale, c, 2)
		gocv.PutText(&o.canvas, r.label, image.Pt(textPad+50, y), gocv.FontHersheySimplex, textScale, ConnectionColor, 2)
	}
}

// Snapshot returns a copy of the canvas. The caller must close it.
func (o *Overlay) Snapshot() gocv.Mat {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canvas.Clone()
}

// JPEG encodes the current canvas.
func (o *Overlay) JPEG() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf, err := gocv.IMEncode(".jpg", o.canvas)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Frames returns how many scenes have been drawn.
func (o *Overlay) Frames() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

// Close releases the canvas.
func (o *Overlay) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scaled.Close()
	return o.canvas.Close()
}
