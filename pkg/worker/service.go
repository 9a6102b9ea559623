package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/clinstream/tlc/pkg/catalog"
	r "github.com/clinstream/tlc/pkg/redis"
	"github.com/clinstream/tlc/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

type service struct {
	config *Config
	log    logrus.FieldLogger

	done chan struct{}
	wg   sync.WaitGroup

	redisOpt *redis.Options

	server *asynq.Server
}

// NewService creates a new worker service
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *redis.Options) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		done:     make(chan struct{}),
		redisOpt: redisOpt,
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(_ context.Context) error {
	cat, err := catalog.Load(s.config.Compile.Catalog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	opts, err := s.config.Compile.CompilerOptions()
	if err != nil {
		return err
	}

	executor, err := NewPartitionExecutor(s.log, cat, s.config.Compile.Variables, opts)
	if err != nil {
		return err
	}

	handler := tasks.NewHandler(s.log, executor)

	srv := asynq.NewServer(r.NewAsynqRedisOptions(s.redisOpt), asynq.Config{
		Concurrency: s.config.Concurrency,
		Queues: map[string]int{
			tasks.QueuePartitions: 10,
		},
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if runErr := srv.Run(mux); runErr != nil {
			s.log.WithError(runErr).Error("Worker server stopped with error")
		}
	}()

	s.server = srv

	s.log.WithFields(logrus.Fields{
		"concurrency": s.config.Concurrency,
		"variables":   len(s.config.Compile.Variables),
	}).Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	close(s.done)

	if s.server != nil {
		s.server.Shutdown()
	}

	s.wg.Wait()

	s.log.Info("Worker service stopped successfully")

	return nil
}

var _ Service = (*service)(nil)
