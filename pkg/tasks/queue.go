package tasks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// QueueManager manages partition task queuing
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewQueueManager creates a new queue manager
func NewQueueManager(redisOpt *asynq.RedisClientOpt) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
	}
}

// EnqueuePartition enqueues one partition compile task. The task ID is
// derived from the byte range, so re-planning the same file within the
// retention window does not double-enqueue a partition.
func (q *QueueManager) EnqueuePartition(payload Payload, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypePartitionCompile, data)

	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(payload.QueueName()),
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Minute),
	}

	allOpts := defaultOpts
	allOpts = append(allOpts, opts...)

	_, err = q.client.Enqueue(task, allOpts...)

	return err
}

// IsTaskPendingOrRunning checks if a partition task is pending or running
func (q *QueueManager) IsTaskPendingOrRunning(payload Payload) (bool, error) {
	info, err := q.inspector.GetTaskInfo(payload.QueueName(), payload.UniqueID())
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// WasRecentlyCompleted checks if a partition task completed within the window
func (q *QueueManager) WasRecentlyCompleted(payload Payload, within time.Duration) (bool, error) {
	info, err := q.inspector.GetTaskInfo(payload.QueueName(), payload.UniqueID())
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}

	if info.State != asynq.TaskStateCompleted {
		return false, nil
	}

	return time.Since(info.CompletedAt) <= within, nil
}

// GetQueueStats returns queue statistics
func (q *QueueManager) GetQueueStats(queueName string) (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(queueName)
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	return q.client.Close()
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "NOT FOUND") ||
		strings.Contains(err.Error(), "queue not found") ||
		strings.Contains(err.Error(), "task not found")
}
