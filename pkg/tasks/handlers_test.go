package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/clinstream/tlc/internal/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errExecutorBoom = errors.New("partition scan failed")

type stubExecutor struct {
	executed []Payload
	err      error
}

func (s *stubExecutor) Execute(_ context.Context, payload Payload) (*Result, error) {
	s.executed = append(s.executed, payload)

	if s.err != nil {
		return nil, s.err
	}

	return &Result{
		RunID:       payload.RunID,
		Records:     3,
		Compiled:    2,
		Unreadable:  1,
		Duration:    time.Millisecond,
		CompletedAt: time.Now(),
	}, nil
}

func TestHandlePartition(t *testing.T) {
	exec := &stubExecutor{}
	handler := NewHandler(testutil.QuietLogger(), exec)

	payload := Payload{File: "/data/subjects.tl", Start: 0, Stop: 4096, RunID: "run-1"}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	err = handler.HandlePartition(context.Background(), asynq.NewTask(TypePartitionCompile, data))
	require.NoError(t, err)

	require.Len(t, exec.executed, 1)
	assert.Equal(t, payload, exec.executed[0])
}

func TestHandlePartitionBadPayload(t *testing.T) {
	handler := NewHandler(testutil.QuietLogger(), &stubExecutor{})

	err := handler.HandlePartition(context.Background(), asynq.NewTask(TypePartitionCompile, []byte("not json")))
	assert.Error(t, err)
}

func TestHandlePartitionExecutorError(t *testing.T) {
	exec := &stubExecutor{err: errExecutorBoom}
	handler := NewHandler(testutil.QuietLogger(), exec)

	payload := Payload{File: "/data/subjects.tl", Start: 0, Stop: 4096}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	err = handler.HandlePartition(context.Background(), asynq.NewTask(TypePartitionCompile, data))
	assert.ErrorIs(t, err, errExecutorBoom)
}

func TestRoutes(t *testing.T) {
	handler := NewHandler(testutil.QuietLogger(), &stubExecutor{})

	routes := handler.Routes()
	require.Contains(t, routes, TypePartitionCompile)
}
