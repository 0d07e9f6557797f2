package present

import (
	"context"

	"gocv.io/x/gocv"
)

const keyEscape = 27

// Window shows an Overlay in a desktop window and reports key presses.
// Closing the window or pressing Esc ends the session with ErrRendererGone.
type Window struct {
	overlay *Overlay
	win     *gocv.Window
	onKey   func(key rune)
}

// NewWindow opens a window sized to the overlay. onKey receives lower-case letters and may
// be nil.
func NewWindow(title string, overlay *Overlay, onKey func(key rune)) *Window {
	win := gocv.NewWindow(title)
	win.ResizeWindow(overlay.size.X, overlay.size.Y)
	return &Window{overlay: overlay, win: win, onKey: onKey}
}

// Render implements Renderer.
func (w *Window) Render(ctx context.Context, scene Scene) error {
	if err := w.overlay.Render(ctx, scene); err != nil {
		return err
	}
	if !w.win.IsOpen() {
		return ErrRendererGone
	}

	frame := w.overlay.Snapshot()
	w.win.IMShow(frame)
	frame.Close()

	key := w.win.WaitKey(1)
	switch {
	case key == keyEscape:
		return ErrRendererGone
	case key >= 'A' && key <= 'Z':
		key += 'a' - 'A'
	}
	if key > 0 && w.onKey != nil {
		w.onKey(rune(key))
	}
	return nil
}

// Close closes the window. The overlay stays usable.
func (w *Window) Close() error {
	return w.win.Close()
}
