package app

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/store"
)

// recorderBatch is how many frames are written per transaction.
const recorderBatch = 30

// ErrNotRecording is returned when stopping a recording that was never started.
var ErrNotRecording = errors.New("not recording")

// ErrNoStore is returned by features that need the database when none is configured.
var ErrNoStore = errors.New("no store configured")

// recorder collects detected frames and writes them to the store in batches.
type recorder struct {
	repo *store.RecordingRepository

	mu      sync.Mutex
	current *store.Recording
	pending []*landmark.Frame
}

func newRecorder(repo *store.RecordingRepository) *recorder {
	return &recorder{repo: repo}
}

// start creates a new recording. A recording in progress is stopped first.
func (r *recorder) start(name, skeletonID string) (*store.Recording, error) {
	if r.repo == nil {
		return nil, ErrNoStore
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		if _, err := r.stopLocked(); err != nil {
			return nil, err
		}
	}

	rec := &store.Recording{ID: uuid.New().String(), Name: name, SkeletonID: skeletonID}
	if rec.Name == "" {
		rec.Name = rec.ID[:8]
	}
	if err := r.repo.Create(rec); err != nil {
		return nil, err
	}
	r.current = rec
	logger.Log().Info("recording started", zap.String("id", rec.ID), zap.String("name", rec.Name))
	return rec, nil
}

// add queues a frame for the active recording. It is a no-op when not recording.
func (r *recorder) add(f *landmark.Frame) {
	if f.Empty() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}

	r.pending = append(r.pending, f)
	if len(r.pending) >= recorderBatch {
		if err := r.flushLocked(); err != nil {
			logger.Log().Warn("recording write failed", zap.String("id", r.current.ID), zap.Error(err))
		}
	}
}

// stop flushes pending frames and ends the recording.
func (r *recorder) stop() (*store.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, ErrNotRecording
	}
	return r.stopLocked()
}

// active returns the ID of the recording in progress, or "".
func (r *recorder) active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return ""
	}
	return r.current.ID
}

func (r *recorder) stopLocked() (*store.Recording, error) {
	err := r.flushLocked()
	id := r.current.ID
	r.current = nil
	r.pending = nil
	if err != nil {
		return nil, err
	}

	rec, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	logger.Log().Info("recording stopped", zap.String("id", rec.ID), zap.Int("frames", rec.Frames))
	return rec, nil
}

func (r *recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	err := r.repo.AppendFrames(r.current.ID, r.pending)
	r.pending = r.pending[:0]
	return err
}
