package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinstream/tlc/pkg/observability"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Executor compiles one partition. The worker owns the implementation; the
// handler only decodes payloads and records outcome metrics.
type Executor interface {
	Execute(ctx context.Context, payload Payload) (*Result, error)
}

// Handler routes partition tasks to an executor
type Handler struct {
	log      logrus.FieldLogger
	executor Executor
}

// NewHandler creates a new partition task handler
func NewHandler(log logrus.FieldLogger, executor Executor) *Handler {
	return &Handler{
		log:      log.WithField("component", "task-handler"),
		executor: executor,
	}
}

// HandlePartition handles one partition compile task
func (h *Handler) HandlePartition(ctx context.Context, t *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		observability.RecordError("task-handler", "unmarshal_error")

		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	h.log.WithFields(logrus.Fields{
		"file":   payload.File,
		"start":  payload.Start,
		"stop":   payload.Stop,
		"run_id": payload.RunID,
	}).Info("Starting partition compile")

	startTime := time.Now()

	result, err := h.executor.Execute(ctx, payload)
	if err != nil {
		observability.RecordTaskComplete(payload.RunID, "failed", time.Since(startTime).Seconds())
		observability.RecordError("task-handler", "execution_error")

		return fmt.Errorf("partition execution error: %w", err)
	}

	observability.RecordTaskComplete(payload.RunID, "success", time.Since(startTime).Seconds())

	h.log.WithFields(logrus.Fields{
		"file":       payload.File,
		"records":    result.Records,
		"compiled":   result.Compiled,
		"unreadable": result.Unreadable,
		"duration":   time.Since(startTime),
	}).Info("Partition compiled successfully")

	return nil
}

// Routes returns the task handler routes for Asynq
func (h *Handler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypePartitionCompile: h.HandlePartition,
	}
}
