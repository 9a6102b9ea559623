// Package coordinator plans partition work over timeline log files and hands
// it to the worker fleet through the task queue. It holds no compile state:
// all knowledge of records lives in the files themselves, so a sweep can be
// repeated at any time without coordination beyond task uniqueness.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clinstream/tlc/pkg/observability"
	r "github.com/clinstream/tlc/pkg/redis"
	"github.com/clinstream/tlc/pkg/tasks"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrShutdownErrors is returned when errors occur during shutdown
	ErrShutdownErrors = errors.New("errors during shutdown")
	// ErrBadSchedule is returned when the sweep schedule cannot be parsed
	ErrBadSchedule = errors.New("invalid sweep schedule")
)

// Service defines the public interface for the coordinator
type Service interface {
	// Start initializes and starts the coordinator service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the coordinator service
	Stop() error

	// SweepOnce plans and enqueues partitions for every matching file in the
	// ingest directory, regardless of leadership. Used by the sweep schedule
	// on the leader and by one-shot CLI invocations.
	SweepOnce(ctx context.Context) error
}

type service struct {
	log logrus.FieldLogger
	cfg *Config

	done chan struct{}
	wg   sync.WaitGroup

	redisOpt *redis.Options

	queue   *tasks.QueueManager
	elector LeaderElector
	cron    *cron.Cron
}

// NewService creates a new coordinator service
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *redis.Options) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "coordinator"),
		cfg:      cfg,
		done:     make(chan struct{}),
		redisOpt: redisOpt,
	}, nil
}

// Start initializes and starts the coordinator service
func (s *service) Start(ctx context.Context) error {
	s.queue = tasks.NewQueueManager(r.NewAsynqRedisOptions(s.redisOpt))

	s.elector = NewLeaderElector(s.log, s.redisOpt, s.cfg.Redis.PrefixKey(leaderKey))
	if err := s.elector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	s.cron = cron.New()

	// Every instance carries the schedule; the leadership check at fire time
	// keeps sweeps single-writer.
	_, err := s.cron.AddFunc(s.cfg.Ingest.Schedule, func() {
		if !s.elector.IsLeader() {
			return
		}

		if err := s.SweepOnce(context.Background()); err != nil {
			s.log.WithError(err).Error("Scheduled sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadSchedule, s.cfg.Ingest.Schedule, err)
	}

	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"dir":      s.cfg.Ingest.Dir,
		"schedule": s.cfg.Ingest.Schedule,
	}).Info("Coordinator service started successfully")

	return nil
}

// Stop gracefully shuts down the coordinator service
func (s *service) Stop() error {
	var errs []error

	close(s.done)

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.elector != nil {
		if err := s.elector.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop leader elector: %w", err))
		}
	}

	s.wg.Wait()

	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close queue manager: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrShutdownErrors, errs)
	}

	s.log.Info("Coordinator service stopped successfully")

	return nil
}

// SweepOnce plans every matching file and enqueues its partitions under one
// fresh run ID.
func (s *service) SweepOnce(ctx context.Context) error {
	started := time.Now()
	defer func() { observability.SweepDuration.Observe(time.Since(started).Seconds()) }()

	pattern := filepath.Join(s.cfg.Ingest.Dir, s.cfg.Ingest.Pattern)

	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("bad ingest pattern %q: %w", pattern, err)
	}

	if len(files) == 0 {
		s.log.WithField("pattern", pattern).Debug("Sweep found no files")

		return nil
	}

	runID := uuid.New().String()

	s.log.WithFields(logrus.Fields{
		"files":  len(files),
		"run_id": runID,
	}).Info("Sweeping ingest directory")

	for _, file := range files {
		if err := s.sweepFile(ctx, file, runID); err != nil {
			// One unreadable file must not starve the rest of the sweep.
			s.log.WithError(err).WithField("file", file).Error("Failed to sweep file")
			observability.RecordError("coordinator", "sweep_file_error")
		}
	}

	return nil
}

func (s *service) sweepFile(ctx context.Context, file, runID string) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}

	partitions, err := PlanFile(ctx, s.log, file, s.cfg.Ingest.Partitions)
	if err != nil {
		return err
	}

	observability.PartitionsPlanned.WithLabelValues(filepath.Base(file)).Set(float64(len(partitions)))

	enqueued := 0

	for _, p := range partitions {
		payload := tasks.Payload{
			File:       file,
			Start:      p.Start,
			Stop:       p.Stop,
			RunID:      runID,
			EnqueuedAt: time.Now(),
		}

		pending, err := s.queue.IsTaskPendingOrRunning(payload)
		if err != nil {
			s.log.WithError(err).WithField("task_id", payload.UniqueID()).Error("Failed to check task status")
			observability.RecordError("coordinator", "task_status_check_error")

			continue
		}

		if pending {
			continue
		}

		if s.cfg.Ingest.RecheckWindow > 0 {
			completed, err := s.queue.WasRecentlyCompleted(payload, s.cfg.Ingest.RecheckWindow)
			if err == nil && completed {
				continue
			}
		}

		if err := s.queue.EnqueuePartition(payload); err != nil {
			s.log.WithError(err).WithField("task_id", payload.UniqueID()).Error("Failed to enqueue partition")
			observability.RecordError("coordinator", "enqueue_error")

			continue
		}

		enqueued++
	}

	s.log.WithFields(logrus.Fields{
		"file":       file,
		"partitions": len(partitions),
		"enqueued":   enqueued,
	}).Info("Planned file partitions")

	return nil
}

var _ Service = (*service)(nil)
