package present

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/logger"
)

// ProcessConfig describes the avatar renderer executable.
type ProcessConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
	Dir  string   `yaml:"dir"`
}

// closeGrace bounds each Close phase: flushing stdin, then waiting for the process to exit.
const closeGrace = 2 * time.Second

// ProcessRenderer streams Messages to an avatar renderer process over its stdin, one JSON
// object per line. Writes happen on a separate goroutine so a renderer that stops reading
// never blocks the caller; while a write is pending only the newest message is kept. Once the
// process exits or its stdin breaks, every Render returns ErrRendererGone.
type ProcessRenderer struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	queue   chan []byte
	written chan struct{}
	broken  chan struct{}
	dropped atomic.Uint64

	mu       sync.Mutex
	exited   chan struct{}
	err      error
	writeErr error
	closed   bool
}

// StartProcess launches the renderer.
func StartProcess(cfg ProcessConfig) (*ProcessRenderer, error) {
	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}

	r := &ProcessRenderer{
		cmd:     cmd,
		stdin:   stdin,
		queue:   make(chan []byte, 1),
		written: make(chan struct{}),
		broken:  make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go r.writeLoop()
	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.exited)
		logger.Log().Info("avatar renderer exited", zap.String("path", cfg.Path), zap.Error(err))
	}()

	logger.Log().Info("avatar renderer started", zap.String("path", cfg.Path), zap.Int("pid", cmd.Process.Pid))
	return r, nil
}

func (r *ProcessRenderer) writeLoop() {
	defer close(r.written)
	for line := range r.queue {
		if _, err := r.stdin.Write(line); err != nil {
			r.mu.Lock()
			r.writeErr = err
			r.mu.Unlock()
			close(r.broken)
			logger.Log().Warn("avatar renderer stdin broken", zap.Error(err))
			for range r.queue {
			}
			return
		}
	}
}

// Exited is closed when the process has exited.
func (r *ProcessRenderer) Exited() <-chan struct{} {
	return r.exited
}

// Err returns the exit error of a process that has exited.
func (r *ProcessRenderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Dropped reports how many messages were replaced by a newer one before the renderer read them.
func (r *ProcessRenderer) Dropped() uint64 {
	return r.dropped.Load()
}

// Render implements Renderer. Scenes without a landmark frame are not sent.
func (r *ProcessRenderer) Render(ctx context.Context, scene Scene) error {
	select {
	case <-r.exited:
		return ErrRendererGone
	case <-r.broken:
		r.mu.Lock()
		err := r.writeErr
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRendererGone, err)
	default:
	}
	if scene.Frame.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(Encode(scene.Frame, scene.Pose))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererGone
	}
	for {
		select {
		case r.queue <- line:
			return nil
		default:
		}
		select {
		case <-r.queue:
			r.dropped.Add(1)
		default:
		}
	}
}

// Close flushes the pending message, closes the renderer's stdin and waits briefly for the
// process to exit before killing it.
func (r *ProcessRenderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.written:
	case <-time.After(closeGrace):
	}
	r.stdin.Close()

	select {
	case <-r.exited:
	case <-time.After(closeGrace):
		if err := r.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill renderer: %w", err)
		}
		<-r.exited
	}
	return nil
}
