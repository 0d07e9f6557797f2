package app

import (
	"context"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/pose"
	"github.com/ayusman/minime/internal/present"
)

// Replay solves recorded frames in order and presents each one to r. progress, when set,
// is called after every frame. The solver keeps its state between frames exactly as it
// does live, so replaying a recording reproduces the tracked session.
func Replay(ctx context.Context, solver *pose.Solver, frames []*landmark.Frame, r present.Renderer, progress func()) error {
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		pf, err := solver.Solve(frame)
		if err != nil {
			return err
		}
		if err := r.Render(ctx, present.Scene{Frame: frame, Pose: pf}); err != nil {
			return err
		}
		if progress != nil {
			progress()
		}
	}
	return nil
}
