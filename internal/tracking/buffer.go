// Package tracking holds the latest pose detection for the render loop.
package tracking

import (
	"sync/atomic"

	"github.com/ayusman/minime/internal/landmark"
)

// Stats counts buffer activity since creation.
type Stats struct {
	Published uint64 `json:"published"`
	Empty     uint64 `json:"empty"`
	Discarded uint64 `json:"discarded"`
}

// Buffer is a single-slot, non-blocking exchange between the detector callback and the
// render loop. Published frames are immutable snapshots swapped in atomically, so a reader
// always sees a whole frame.
//
// An empty detection (nobody in view) does not replace the last good frame; the avatar holds
// its pose while tracking is briefly lost instead of snapping back to bind pose.
type Buffer struct {
	latest atomic.Pointer[landmark.Frame]
	closed atomic.Bool

	published atomic.Uint64
	empty     atomic.Uint64
	discarded atomic.Uint64
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish installs frame as the latest detection. It never blocks.
// A nil or empty frame is ignored. A frame that violates the topology is rejected with
// landmark.ErrContractViolation and the previous frame is kept.
// Publishing after Close is a silent no-op.
func (b *Buffer) Publish(frame *landmark.Frame) error {
	if b.closed.Load() {
		b.discarded.Add(1)
		return nil
	}
	if frame.Empty() {
		b.empty.Add(1)
		return nil
	}
	if err := frame.Validate(); err != nil {
		return err
	}

	b.latest.Store(frame)
	b.published.Add(1)
	return nil
}

// Read returns the latest published frame. The second result is false if nothing has been
// published yet.
func (b *Buffer) Read() (*landmark.Frame, bool) {
	f := b.latest.Load()
	return f, f != nil
}

// Close stops accepting frames. The last published frame stays readable.
func (b *Buffer) Close() {
	b.closed.Store(true)
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Empty:     b.empty.Load(),
		Discarded: b.discarded.Load(),
	}
}
