// Package tray provides a system tray menu for the minime tracker.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Controller is the part of the tracker the tray menu drives.
type Controller interface {
	Tracking() bool
	SetTracking(enabled bool)
	ShowCamera() bool
	SetShowCamera(show bool)
	BlurCamera() bool
	SetBlurCamera(blur bool)
}

// Tray represents the system tray application.
type Tray struct {
	ctrl   Controller
	onQuit func()
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuTracking *systray.MenuItem
	menuCamera   *systray.MenuItem
	menuBlur     *systray.MenuItem
	menuStatus   *systray.MenuItem
}

// New creates a new Tray driving ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{ctrl: ctrl}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("minime")
	systray.SetTooltip("minime avatar tracking")

	t.mu.Lock()
	t.menuTracking = systray.AddMenuItemCheckbox("Tracking", "Pause or resume pose tracking", t.ctrl.Tracking())
	t.menuCamera = systray.AddMenuItemCheckbox("Show Camera", "Draw the camera image behind the overlay", t.ctrl.ShowCamera())
	t.menuBlur = systray.AddMenuItemCheckbox("Blur Camera", "Blur the camera image", t.ctrl.BlurCamera())
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Status: idle", "Tracker status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit minime")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuTracking.ClickedCh:
				t.handleTracking()
			case <-t.menuCamera.ClickedCh:
				t.handleCamera()
			case <-t.menuBlur.ClickedCh:
				t.handleBlur()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleTracking flips tracking and updates the checkbox.
func (t *Tray) handleTracking() {
	enabled := !t.ctrl.Tracking()
	t.ctrl.SetTracking(enabled)
	t.check(t.menuTracking, enabled)
}

// handleCamera flips the camera view.
func (t *Tray) handleCamera() {
	show := !t.ctrl.ShowCamera()
	t.ctrl.SetShowCamera(show)
	t.check(t.menuCamera, show)
}

// handleBlur flips camera blurring.
func (t *Tray) handleBlur() {
	blur := !t.ctrl.BlurCamera()
	t.ctrl.SetBlurCamera(blur)
	t.check(t.menuBlur, blur)
}

func (t *Tray) check(item *systray.MenuItem, on bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if item == nil {
		return
	}
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the status line in the menu.
func (t *Tray) SetStatus(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		if text == "" {
			t.menuStatus.SetTitle("Status: idle")
		} else {
			t.menuStatus.SetTitle("Status: " + text)
		}
	}
}
