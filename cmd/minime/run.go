package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/app"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/server"
	"github.com/ayusman/minime/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track the camera and drive the avatar",
	RunE:  runTracker,
}

var (
	noWindow bool
	noServer bool
	withTray bool
)

func init() {
	runCmd.Flags().BoolVar(&noWindow, "no-window", false, "Do not open the overlay window.")
	runCmd.Flags().BoolVar(&noServer, "no-server", false, "Do not serve the HTTP API.")
	runCmd.Flags().BoolVar(&withTray, "tray", false, "Show the system tray menu.")
	rootCmd.AddCommand(runCmd)
}

func runTracker(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if noWindow {
		cfg.Render.Window = false
	}
	if noServer {
		cfg.Server.Enabled = false
	}
	if withTray {
		cfg.Tray = true
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			StaticDir: cfg.Server.StaticDir,
			Store:     st,
			App:       a,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Log().Error("http server failed", zap.Error(err))
			}
		}()
	}

	if !cfg.Tray {
		return a.Run(ctx)
	}

	// The tray owns the main thread; the tracker runs beside it.
	t := tray.New(a)
	t.OnQuit(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		t.Quit()
	}()
	go trayStatus(ctx, a, t)

	t.Run()
	stop()
	return <-errCh
}

// trayStatus refreshes the tray status line once a second.
func trayStatus(ctx context.Context, a *app.App, t *tray.Tray) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s := a.Status()
		switch {
		case !s.Tracking:
			t.SetStatus("paused")
		case !s.MotionActive:
			t.SetStatus("idle, holding pose")
		default:
			t.SetStatus(fmt.Sprintf("%d frames, %d viewers", s.Buffer.Published, s.Clients))
		}
	}
}
