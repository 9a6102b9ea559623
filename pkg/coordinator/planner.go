package coordinator

import (
	"context"

	"github.com/clinstream/tlc/pkg/scanner"
	"github.com/sirupsen/logrus"
)

// Plan packs record spans into at most parts contiguous byte ranges of
// roughly equal size. Every boundary lands on a record's opening-tag offset,
// so each record's opening tag falls inside exactly one partition and no
// record is ever claimed twice. Records larger than the target chunk get a
// partition of their own.
func Plan(spans []scanner.Span, parts int) []scanner.Span {
	if len(spans) == 0 {
		return nil
	}

	first := spans[0].Start
	end := spans[len(spans)-1].Stop

	if parts <= 1 {
		return []scanner.Span{{Start: first, Stop: end}}
	}

	total := end - first
	target := total / int64(parts)
	if total%int64(parts) != 0 {
		target++
	}

	out := make([]scanner.Span, 0, parts)
	cur := scanner.Span{Start: first}

	for _, span := range spans[1:] {
		if span.Start-cur.Start < target {
			continue
		}

		cur.Stop = span.Start
		out = append(out, cur)
		cur = scanner.Span{Start: span.Start}

		if len(out) == parts-1 {
			break
		}
	}

	cur.Stop = end
	out = append(out, cur)

	return out
}

// PlanFile scans a file's record offsets and partitions them. The cheap
// offsets-only scan keeps planning off the compile path.
func PlanFile(ctx context.Context, log logrus.FieldLogger, path string, parts int) ([]scanner.Span, error) {
	spans, err := scanner.New(log, path, 0, 0).Spans(ctx)
	if err != nil {
		return nil, err
	}

	return Plan(spans, parts), nil
}
