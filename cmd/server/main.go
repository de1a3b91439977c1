package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nvr-timeline/internal/platform/config"
	"nvr-timeline/internal/platform/logger"
	"nvr-timeline/internal/platform/metrics"
	"nvr-timeline/internal/recordings"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	dsn := config.GetEnv("DB_DSN", "")
	camerasFile := config.GetEnv("CAMERAS_FILE", "")
	maxWindow := config.GetEnvDuration("MAX_WINDOW", recordings.DefaultMaxWindow)

	log := logger.New(logLevel, logFormat)

	var locations map[string]*time.Location
	if camerasFile != "" {
		cams, err := config.LoadCameras(camerasFile)
		if err != nil {
			log.Error("load cameras", slog.String("path", camerasFile), slog.Any("error", err))
			os.Exit(1)
		}
		locations = cams.Locations()
	}

	repo, err := openRepository(dsn)
	if err != nil {
		log.Error("open repository", slog.Any("error", err))
		os.Exit(1)
	}

	svc := recordings.NewService(repo, maxWindow, locations)
	met := metrics.New()
	h := recordings.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			n, err := svc.ActiveCameras(r.Context())
			if err != nil {
				log.Warn("count active cameras", slog.Any("error", err))
				return
			}
			met.SetActiveCameras(n)
		}).ServeHTTP(w, r)
	})
	h.Mount(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	storage := "memory"
	if dsn != "" {
		storage = "sqlite"
	}
	log.Info("server starting",
		"port", port,
		"storage", storage,
		"cameras", len(locations),
		"max_window", maxWindow.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// openRepository returns the in-memory repository when dsn is empty and a
// SQLite-backed one otherwise.
func openRepository(dsn string) (recordings.Repository, error) {
	if dsn == "" {
		return recordings.NewInMemoryRepository(), nil
	}
	db, err := recordings.OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	repo, err := recordings.NewGormRepository(db)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
