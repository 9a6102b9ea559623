// Package worker serves partition compile tasks from the queue. Each task
// gets its own scanner and compiler; workers share nothing but the resolved
// variable set, so concurrency is bounded only by the asynq server setting.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/clinstream/tlc/pkg/compiler"
	"github.com/clinstream/tlc/pkg/observability"
	"github.com/clinstream/tlc/pkg/resolver"
	"github.com/clinstream/tlc/pkg/scanner"
	"github.com/clinstream/tlc/pkg/tasks"
	"github.com/sirupsen/logrus"
)

// PartitionExecutor compiles every record of one file partition.
type PartitionExecutor struct {
	log   logrus.FieldLogger
	cat   *catalog.Catalog
	specs []resolver.Spec
	opts  compiler.Options
}

// NewPartitionExecutor resolves the variable references once; the resolved
// set is immutable and shared by every task.
func NewPartitionExecutor(log logrus.FieldLogger, cat *catalog.Catalog, refs []string, opts compiler.Options) (*PartitionExecutor, error) {
	specs, err := resolver.New(log, cat).Resolve(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve variables: %w", err)
	}

	return &PartitionExecutor{
		log:   log.WithField("component", "executor"),
		cat:   cat,
		specs: specs,
		opts:  opts,
	}, nil
}

// Execute scans the payload's byte range and compiles each record found. An
// unreadable record is counted and skipped; only scan-level failures (bad
// file, I/O error) fail the task.
func (e *PartitionExecutor) Execute(ctx context.Context, payload tasks.Payload) (*tasks.Result, error) {
	started := time.Now()

	// A compiler is single-threaded, so each task builds its own.
	comp, err := compiler.New(e.log, e.cat, e.specs, e.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}

	result := &tasks.Result{RunID: payload.RunID}

	s := scanner.New(e.log, payload.File, payload.Start, payload.Stop)

	err = s.Scan(ctx, func(rec *scanner.Record) error {
		result.Records++
		observability.RecordsScanned.Inc()

		tl, err := comp.Compile(rec.Text)
		if err != nil {
			result.Unreadable++
			observability.RecordTimeline("unreadable", 0)

			e.log.WithError(err).WithFields(logrus.Fields{
				"file":  payload.File,
				"start": rec.Start,
			}).Warn("Skipping unreadable record")

			return nil
		}

		result.Compiled++
		observability.RecordTimeline("compiled", tl.Len())

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("partition scan failed: %w", err)
	}

	result.Duration = time.Since(started)
	result.CompletedAt = time.Now()

	return result, nil
}

var _ tasks.Executor = (*PartitionExecutor)(nil)
