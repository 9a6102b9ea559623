package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/clinstream/tlc/pkg/observability"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Application encapsulates the worker application logic
type Application struct {
	config       *Config
	logger       *logrus.Logger
	service      Service
	healthServer *http.Server
	pprofServer  *http.Server
}

// NewApplication creates a new worker application
func NewApplication(cfg *Config, logger *logrus.Logger) *Application {
	return &Application{
		config: cfg,
		logger: logger,
	}
}

// Start initializes and starts the worker application
func (a *Application) Start() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger.Info("Starting TLC worker...")

	observability.StartMetricsServer(a.config.MetricsAddr)
	a.logger.WithField("addr", a.config.MetricsAddr).Info("Started metrics server")

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	redisOpt, err := redis.ParseURL(a.config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	svc, err := NewService(a.logger, a.config, redisOpt)
	if err != nil {
		return err
	}

	if err := svc.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	a.service = svc

	a.logger.Info("Worker started successfully")

	return nil
}

// Stop gracefully shuts down the worker application
func (a *Application) Stop() error {
	a.logger.Info("Shutting down worker...")

	timeout := time.Duration(a.config.ShutdownTimeout) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.healthServer != nil {
		if err := a.healthServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Failed to shutdown health check server")
		}
	}

	if a.pprofServer != nil {
		if err := a.pprofServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Failed to shutdown pprof server")
		}
	}

	if a.service != nil {
		if err := a.service.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping worker")
		}
	}

	return nil
}

func (a *Application) startHealthCheck() {
	a.logger.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if a.service != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("READY"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
		}
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Application) startPProf() {
	a.logger.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Pprof server failed")
		}
	}()
}
