// Package app assembles the Mudra service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/recognizer"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/store/pgstore"
)

// App owns every long-lived component of the service.
type App struct {
	config     config.Config
	backend    store.Backend
	classifier *classifier.Adapter
	detector   detector.Detector
	hub        *server.Hub
	sessions   *session.Manager
	history    *history.Service
	recognizer *recognizer.Recognizer
}

// Option adjusts how New builds the App.
type Option func(*options)

type options struct {
	model    classifier.Model
	detector detector.Detector
}

// WithModel uses m instead of loading classifier.model_path.
func WithModel(m classifier.Model) Option {
	return func(o *options) { o.model = m }
}

// WithDetector uses d instead of starting the MediaPipe helper.
func WithDetector(d detector.Detector) Option {
	return func(o *options) { o.detector = d }
}

// New opens storage and builds the pipeline. A model that fails to load
// leaves the classifier in degraded mode; a broken database is fatal.
func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := OpenBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, backend: backend}

	model := o.model
	if model == nil && cfg.Classifier.ModelPath != "" {
		m, err := classifier.LoadONNX(cfg.Classifier.ModelPath, cfg.Classifier.InputSize)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Classifier.ModelPath).Msg("model unavailable, running in degraded mode")
		} else {
			model = m
		}
	}
	if model == nil {
		log.Warn().Msg("no gesture model loaded, predictions are degraded")
	}

	a.classifier, err = classifier.New(model, classifier.Options{
		Labels:  cfg.Classifier.Labels,
		Timeout: cfg.Classifier.Timeout,
		Seed:    cfg.Classifier.Seed,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	a.detector = o.detector
	if a.detector == nil && cfg.Detector.Enabled {
		dcfg := detector.DefaultConfig()
		dcfg.ScriptPath = cfg.Detector.Script
		dcfg.PythonPath = cfg.Detector.Python
		dcfg.MaxHands = cfg.Detector.MaxHands
		dcfg.MinConfidence = cfg.Detector.MinConfidence
		if mp, err := detector.NewMediaPipeDetector(dcfg); err == nil {
			a.detector = mp
			log.Info().Msg("using MediaPipe hand detection")
		} else {
			log.Warn().Err(err).Msg("MediaPipe not available, image input disabled")
		}
	}

	a.hub = server.NewHub()
	a.sessions = session.NewManager(backend.Sessions(), session.WithNotifier(a.hub))
	a.history = history.NewService(backend, history.Options{MaxPerPage: cfg.History.MaxPerPage})
	a.recognizer = recognizer.New(a.classifier, a.sessions, backend.Predictions(), recognizer.Options{
		Detector:        a.detector,
		BulkConcurrency: cfg.Recognizer.BulkConcurrency,
	})

	return a, nil
}

// OpenBackend opens the configured storage driver.
func OpenBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		s, err := store.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.Path).Msg("using sqlite storage")
		return s, nil
	case config.DriverPostgres:
		s, err := pgstore.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info().Msg("using postgres storage")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Server builds the HTTP server over the App's components.
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		Backend:      a.backend,
		Recognizer:   a.recognizer,
		Sessions:     a.sessions,
		History:      a.history,
		Model:        a.classifier,
		Hub:          a.hub,
		APIToken:     a.config.Server.APIToken,
		StaticDir:    a.config.Server.StaticDir,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	})
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Server().ListenAndServe(ctx, a.config.Server.Addr)
}

// Backend returns the storage backend.
func (a *App) Backend() store.Backend { return a.backend }

// History returns the history service.
func (a *App) History() *history.Service { return a.history }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Recognizer returns the prediction pipeline.
func (a *App) Recognizer() *recognizer.Recognizer { return a.recognizer }

// ModelLoaded reports whether predictions come from a real model.
func (a *App) ModelLoaded() bool { return a.classifier.Available() }

// Close releases the model, the detector and storage.
func (a *App) Close() error {
	var errs []error
	if err := a.classifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close classifier: %w", err))
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
