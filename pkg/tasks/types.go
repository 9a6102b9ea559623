// Package tasks provides partition task queuing using Asynq
package tasks

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	// TypePartitionCompile is the task type for compiling one file partition
	TypePartitionCompile = "partition:compile"

	// QueuePartitions is the queue partition tasks are enqueued on
	QueuePartitions = "partitions"
)

// Payload describes one unit of work: a byte range of a source file to scan
// and compile. Ranges within a run are disjoint; a record whose opening tag
// falls inside [Start, Stop) belongs to this partition even when its body
// extends past Stop.
type Payload struct {
	File       string    `json:"file"`
	Start      int64     `json:"start"`
	Stop       int64     `json:"stop"`
	RunID      string    `json:"run_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// UniqueID returns a unique identifier for this task
func (p Payload) UniqueID() string {
	return fmt.Sprintf("%s:%d:%d", filepath.Base(p.File), p.Start, p.Stop)
}

// QueueName returns the queue name for this task payload
func (p Payload) QueueName() string {
	return QueuePartitions
}

// Result contains the outcome of one partition compile
type Result struct {
	RunID       string        `json:"run_id"`
	Records     int           `json:"records"`
	Compiled    int           `json:"compiled"`
	Unreadable  int           `json:"unreadable"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}
