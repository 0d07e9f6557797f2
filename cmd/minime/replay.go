package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/app"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/present"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording-id>",
	Short: "Re-solve a stored recording and write JSON pose frames",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var (
	replayOut   string
	replayQuiet bool
)

func init() {
	replayCmd.Flags().StringVarP(&replayOut, "out", "o", "-", "Output file, - for stdout.")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Hide the progress bar.")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Recordings().GetByID(args[0])
	if err != nil {
		return fmt.Errorf("recording %s: %w", args[0], err)
	}
	frames, err := st.Recordings().Frames(rec.ID)
	if err != nil {
		return err
	}

	solver, err := app.LoadSolver(cfg.Avatar, st)
	if err != nil {
		return err
	}
	if rec.SkeletonID != "" && rec.SkeletonID != solver.Skeleton().ID() {
		logger.Log().Warn("recording was tracked for another avatar",
			zap.String("recorded", rec.SkeletonID),
			zap.String("replaying", solver.Skeleton().ID()))
	}

	var w io.Writer = cmd.OutOrStdout()
	if replayOut != "-" {
		f, err := os.Create(replayOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	renderer := present.NewJSONRenderer(w)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var progress func()
	if !replayQuiet {
		bar := pb.StartNew(len(frames))
		defer bar.Finish()
		progress = func() { bar.Increment() }
	}

	if err := app.Replay(ctx, solver, frames, renderer, progress); err != nil {
		return err
	}
	logger.Log().Info("replay finished", zap.String("recording", rec.ID), zap.Int("frames", len(frames)))
	return nil
}
