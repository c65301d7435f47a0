package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"faceemotion/internal/config"
	"faceemotion/internal/logger"
	"faceemotion/internal/repository/sqlite"
	"faceemotion/internal/route"
	"faceemotion/internal/service"
	"faceemotion/internal/service/ai"
	"faceemotion/internal/service/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *ai.Engine
	db      *sqlite.DB
	manager *service.Manager
}

// NewApp loads the configuration and the models. Model loading failures are
// fatal for the caller.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := ai.NewEngine(ai.OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	var (
		db      *sqlite.DB
		journal *storage.Journal
	)
	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		db, err = sqlite.New(cfg.JournalPath)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journal = storage.NewJournal(cfg, log, sqlite.NewInferenceRepository(db))
		log.Info("Inference journal: %s", cfg.JournalPath)
	}

	pipeline := service.NewPipeline(engine, engine, engine, log)

	return &App{
		config:  cfg,
		logger:  log,
		engine:  engine,
		db:      db,
		manager: service.NewManager(pipeline, journal, log),
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Face emotion server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-quit:
		a.logger.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Close flushes the journal and releases the models and the database.
func (a *App) Close() {
	a.manager.Stop()
	a.engine.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close journal database: %v", err)
		}
	}
}
