package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rig and recording API without tracking",
	RunE:  runServe,
}

var (
	serveAddr string
	staticDir string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overriding server.addr.")
	serveCmd.Flags().StringVar(&staticDir, "static", "", "Directory of static files to serve at /.")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if staticDir != "" {
		cfg.Server.StaticDir = staticDir
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{StaticDir: cfg.Server.StaticDir, Store: st})
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
