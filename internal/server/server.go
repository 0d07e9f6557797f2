// Package server provides the HTTP API of the tracker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/app"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/metrics"
	"github.com/ayusman/minime/internal/server/api"
	"github.com/ayusman/minime/internal/store"
)

// Config holds the server configuration. Routes are only mounted for the collaborators
// that are set: without an App the server only exposes the store.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Metrics   *metrics.Metrics
}

// Server represents the HTTP server for the tracker.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Metrics == nil && config.App != nil {
		config.Metrics = config.App.Metrics()
	}

	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.config.App != nil {
			r.Get("/status", s.handleStatus)
			r.Put("/settings", s.handleSettings)
			r.Handle("/pose", NewPoseHandler(s.config.App.Broadcaster(), s.config.Metrics))
			r.Handle("/stream", NewStreamHandler(s.config.App.Overlay()))
		}

		if s.config.Store != nil {
			rigs := api.NewRigHandler(s.config.Store)
			var recorder api.Recorder
			if s.config.App != nil {
				rigs.OnChange = s.config.App.Rebind
				recorder = s.config.App
			}
			rigs.RegisterRoutes(r)
			api.NewRecordingHandler(s.config.Store, recorder).RegisterRoutes(r)
		}
	})

	if s.config.Metrics != nil {
		r.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

type settingsRequest struct {
	Tracking   *bool `json:"tracking"`
	ShowCamera *bool `json:"show_camera"`
	BlurCamera *bool `json:"blur_camera"`
}

// handleSettings handles PUT /api/settings. Only the toggles present in the body change.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	a := s.config.App
	if req.Tracking != nil {
		a.SetTracking(*req.Tracking)
	}
	if req.ShowCamera != nil {
		a.SetShowCamera(*req.ShowCamera)
	}
	if req.BlurCamera != nil {
		a.SetBlurCamera(*req.BlurCamera)
	}
	writeJSON(w, http.StatusOK, a.Status())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log().Warn("failed to encode response", zap.Error(err))
	}
}

// accessLog logs every request through zap.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Log().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
