// Package dashboard serves the kids' build dashboard: JSON snapshots, a
// datastar update stream, health and metrics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teamstreem/realm/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultPort            = 8080
	DefaultRefreshInterval = 5 * time.Minute
	watchDebounce          = 100 * time.Millisecond
)

// Source is the reconciler surface the dashboard reads from.
type Source interface {
	Snapshot() *reconcile.Snapshot
	Subscribe() <-chan *reconcile.Snapshot
	Unsubscribe(sub <-chan *reconcile.Snapshot)
	LoadKids(ctx context.Context) (*reconcile.Snapshot, error)
	ReapplyOverrides(ctx context.Context) (*reconcile.Snapshot, error)
}

// Config holds configuration for the dashboard server.
type Config struct {
	Source          Source
	Port            int
	RefreshInterval time.Duration
	// Watch reloads local overrides when the state database at StatePath changes.
	Watch     bool
	StatePath string
	Gatherer  prometheus.Gatherer
	Metrics   *Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	source    Source
	port      int
	refresh   time.Duration
	watch     bool
	statePath string
	gatherer  prometheus.Gatherer
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewServer creates a new dashboard server.
func NewServer(cfg Config) *Server {
	s := &Server{
		source:    cfg.Source,
		port:      cfg.Port,
		refresh:   cfg.RefreshInterval,
		watch:     cfg.Watch,
		statePath: cfg.StatePath,
		gatherer:  cfg.Gatherer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.port == 0 {
		s.port = DefaultPort
	}
	if s.refresh <= 0 {
		s.refresh = DefaultRefreshInterval
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Port returns the port Serve listens on.
func (s *Server) Port() int { return s.port }

// Handler returns the router with every dashboard route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.health)
	r.Get("/api/kids", s.kids)
	r.Get("/api/dad", s.dad)
	r.Get("/api/updates", s.updates)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve loads the snapshot, starts the server and background loops, and blocks
// until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.source.LoadKids(ctx); err != nil {
		// Serve anyway; the refresh loop retries.
		s.logger.Warn("initial load failed", "error", err)
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting dashboard", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.refreshLoop(egctx)
	})

	if s.watch && s.statePath != "" {
		eg.Go(func() error {
			return s.watchState(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dashboard...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// refreshLoop reloads the kid-filtered snapshot on every tick.
func (s *Server) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.source.LoadKids(ctx); err != nil {
				s.logger.Warn("refresh failed", "error", err)
			}
		}
	}
}

// watchState re-applies overrides when another process writes the state
// database. SQLite in WAL mode writes the -wal file, so the directory is
// watched and events are matched by prefix.
func (s *Server) watchState(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.statePath)
	base := filepath.Base(s.statePath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch state directory", "dir", dir, "error", err)
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isStateFile(filepath.Base(event.Name), base) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				s.logger.Debug("state changed, re-applying overrides", "file", event.Name)
				if _, err := s.source.ReapplyOverrides(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("re-apply overrides failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// isStateFile matches the database file and its -wal and -shm companions.
func isStateFile(name, base string) bool {
	switch name {
	case base, base + "-wal", base + "-shm":
		return true
	}
	return false
}
