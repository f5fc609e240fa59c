// Package web serves the browser UI for market runs and a JSON endpoint that
// runs voice commands through the same session as the CLI and MCP hosts.
package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/dispatch"
	"github.com/martruns/martruns/internal/logging"
	"github.com/martruns/martruns/internal/ops"
	"github.com/martruns/martruns/internal/session"
	"github.com/martruns/martruns/internal/voice"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const shutdownTimeout = 5 * time.Second

// NewHandlers wires the voice pipeline and renderer for the web UI.
func NewHandlers(store *ops.Store, cfg *config.Config, logger *zap.Logger, version string) (*Handlers, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger = logging.OrNop(logger)

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}
	renderer := NewRenderer(templateSub, version, cfg.Currency, logger)

	wake := voice.NewWakeDetector(cfg.WakeWords, voice.WithPhonetic(cfg.PhoneticWake))
	sess := session.New(session.Deps{
		Parser:     voice.NewParser(),
		Dispatcher: dispatch.New(store, logger),
		Wake:       wake,
		Runs:       store,
		Logger:     logger,
	}, session.Config{
		Currency:           cfg.Currency,
		MinTranscriptChars: cfg.MinTranscriptChars,
	})

	return &Handlers{
		store:    store,
		cfg:      cfg,
		renderer: renderer,
		session:  sess,
		wake:     wake,
		logger:   logger,
	}, nil
}

// NewServer creates and configures the HTTP server for the web UI.
func NewServer(h *Handlers, bind string, port int) (*http.Server, error) {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           h.Routes(http.FileServerFS(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// Routes returns the UI mux wrapped with security headers. static serves
// /static/ when non-nil.
func (h *Handlers) Routes(static http.Handler) http.Handler {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/runs", http.StatusFound)
	})
	mux.HandleFunc("GET /runs", h.HandleList)
	mux.HandleFunc("GET /runs/current", h.HandleCurrent)
	mux.HandleFunc("GET /runs/{id}", h.HandleDetail)
	mux.HandleFunc("POST /runs/{id}/complete", h.HandleComplete)
	mux.HandleFunc("POST /runs/{id}/duplicate", h.HandleDuplicate)
	mux.HandleFunc("DELETE /runs/{id}", h.HandleDelete)
	mux.HandleFunc("GET /stats", h.HandleStats)
	mux.HandleFunc("POST /api/command", h.HandleCommand)
	mux.HandleFunc("GET /api/suggest", h.HandleSuggest)

	if static != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", static))
	}

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("web UI running", zap.String("url", "http://"+srv.Addr))
		if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
			logger.Warn("server is binding to all interfaces and may be accessible from the network")
		}
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
