package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	leaderKey     = "coordinator:leader"
	leaseTTL      = 10 * time.Second
	renewInterval = 3 * time.Second
)

// ErrElectorStopped is returned when the elector is stopped while waiting for leadership
var ErrElectorStopped = errors.New("elector stopped while waiting for leadership")

// LeaderElector manages distributed leader election using Redis. Multiple
// coordinators may run for availability; only the leader sweeps and
// enqueues, so a partition is planned once per run.
type LeaderElector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	WaitForLeadership(ctx context.Context) error
}

type elector struct {
	log        logrus.FieldLogger
	redis      *redis.Client
	instanceID string
	key        string

	isLeader bool
	mu       sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	promoted chan struct{}
	demoted  chan struct{}
}

// NewLeaderElector creates a new leader elector instance. The key carries
// the deployment's Redis prefix so independent deployments sharing one Redis
// never contest each other's lease.
func NewLeaderElector(log logrus.FieldLogger, redisOpt *redis.Options, key string) LeaderElector {
	return &elector{
		log:        log.WithField("component", "election"),
		redis:      redis.NewClient(redisOpt),
		instanceID: uuid.New().String(),
		key:        key,
		done:       make(chan struct{}),
		promoted:   make(chan struct{}, 1),
		demoted:    make(chan struct{}, 1),
	}
}

func (e *elector) Start(ctx context.Context) error {
	e.log.WithField("instance_id", e.instanceID).Info("Starting leader election")

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

func (e *elector) Stop() error {
	close(e.done)

	e.relinquish(context.Background())

	e.wg.Wait()

	if err := e.redis.Close(); err != nil {
		e.log.WithError(err).Warn("Failed to close Redis client")
	}

	e.log.Info("Leader election stopped")

	return nil
}

func (e *elector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			wasLeader := e.IsLeader()
			acquired := e.tryAcquire(ctx)

			if acquired && !wasLeader {
				e.setLeader(true)
				e.log.WithField("instance_id", e.instanceID).Info("Promoted to leader")

				select {
				case e.promoted <- struct{}{}:
				default:
				}
			} else if !acquired && wasLeader {
				e.setLeader(false)
				e.log.WithField("instance_id", e.instanceID).Info("Demoted from leader")

				select {
				case e.demoted <- struct{}{}:
				default:
				}
			}
		}
	}
}

// tryAcquire takes the lease if free, or renews it if this instance already
// holds it.
func (e *elector) tryAcquire(ctx context.Context) bool {
	ok, err := e.redis.SetNX(ctx, e.key, e.instanceID, leaseTTL).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lock")

		return false
	}

	if ok {
		return true
	}

	owner, err := e.redis.Get(ctx, e.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.log.WithError(err).Debug("Failed to check lock owner")
		}

		return false
	}

	if owner != e.instanceID {
		return false
	}

	if err := e.redis.Expire(ctx, e.key, leaseTTL).Err(); err != nil {
		e.log.WithError(err).Warn("Failed to renew leader lease")

		return false
	}

	return true
}

// relinquish deletes the lease on shutdown so a follower takes over without
// waiting out the TTL.
func (e *elector) relinquish(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	owner, err := e.redis.Get(ctx, e.key).Result()
	if err == nil && owner == e.instanceID {
		if err := e.redis.Del(ctx, e.key).Err(); err != nil {
			e.log.WithError(err).Warn("Failed to delete leader lock")
		}
	}

	e.setLeader(false)
}

func (e *elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = isLeader
}

func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

func (e *elector) WaitForLeadership(ctx context.Context) error {
	if e.IsLeader() {
		return nil
	}

	select {
	case <-e.promoted:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for leadership: %w", ctx.Err())
	case <-e.done:
		return ErrElectorStopped
	}
}

var _ LeaderElector = (*elector)(nil)
