package query

import (
	"math"

	"github.com/clinstream/tlc/pkg/compiler"
	"github.com/clinstream/tlc/pkg/resolver"
)

// Missing marks an absent value inside a retained batch row. Rows only carry
// it when the caller opted into keeping partially-resolved rows.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a batch cell holds the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// BatchOptions control row retention during materialization.
type BatchOptions struct {
	// CountMissing keeps rows with unresolved inputs, substituting the
	// missing marker and counting the miss per variable, instead of dropping
	// the whole row.
	CountMissing bool

	// KeepMissingResult keeps rows whose result variable is unavailable,
	// substituting the missing marker, when the input vector is still useful.
	KeepMissingResult bool
}

// Batch is the materialized output of one timeline: parallel arrays of input
// vectors, result values, and time codes, one row per retained snapshot.
// Slices are sized exactly to the retained row count.
type Batch struct {
	Inputs  [][]float64
	Results []float64
	Times   []compiler.TimeCode

	// MissingCounts is the per-variable count of unresolved lookups across
	// retained rows; only populated when CountMissing is set.
	MissingCounts map[string]int
}

// Len returns the number of retained rows.
func (b *Batch) Len() int { return len(b.Times) }

// Materialize walks every snapshot, rejects rows failing any filter
// predicate, resolves each input spec and the result spec, and assembles the
// retained rows into a batch. Inputs resolved via the anchor-last flag see
// the previous input's matched time code. A zero value that has overstayed
// its descriptor's zero-timeout reads as unresolved. Consecutive rows with
// identical inputs and result collapse into one.
func (e *Engine) Materialize(inputs []resolver.Spec, result *resolver.Spec, filters []Predicate, opts BatchOptions) *Batch {
	batch := &Batch{}
	if opts.CountMissing {
		batch.MissingCounts = make(map[string]int)
	}

	dropped := 0

rows:
	for i := 0; i < e.tl.Len(); i++ {
		entry := e.tl.At(i)

		for f := range filters {
			if !filters[f].Matches(entry) {
				continue rows
			}
		}

		row := make([]float64, len(inputs))
		lastMatch := entry.Time

		for j := range inputs {
			spec := &inputs[j]

			v, tc, idx, ok := e.lookup(spec, i, lastMatch)
			if ok && e.zeroTimedOut(spec, idx) {
				ok = false
			}

			if !ok {
				if !opts.CountMissing {
					dropped++

					continue rows
				}

				batch.MissingCounts[spec.Key()]++
				row[j] = Missing()

				continue
			}

			row[j] = v.Float64
			lastMatch = tc
		}

		res := Missing()

		if result != nil {
			v, _, idx, ok := e.lookup(result, i, lastMatch)
			if ok && e.zeroTimedOut(result, idx) {
				ok = false
			}

			if !ok && !opts.KeepMissingResult {
				dropped++

				continue rows
			}

			if ok {
				res = v.Float64
			}
		}

		if n := batch.Len(); n > 0 && rowsEqual(batch.Inputs[n-1], row) && cellsEqual(batch.Results[n-1], res) {
			continue rows
		}

		batch.Inputs = append(batch.Inputs, row)
		batch.Results = append(batch.Results, res)
		batch.Times = append(batch.Times, entry.Time)
	}

	if dropped > 0 {
		e.log.WithField("rows", dropped).Debug("Dropped rows with unresolved variables")
	}

	batch.Inputs = clipRows(batch.Inputs)
	batch.Results = clipFloats(batch.Results)
	batch.Times = clipTimes(batch.Times)

	return batch
}

// rowsEqual compares two input vectors, treating two missing markers as
// equal so the duplicate-row collapse still applies to partial rows.
func rowsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !cellsEqual(a[i], b[i]) {
			return false
		}
	}

	return true
}

func cellsEqual(a, b float64) bool {
	if IsMissing(a) || IsMissing(b) {
		return IsMissing(a) && IsMissing(b)
	}

	return a == b
}

func clipRows(s [][]float64) [][]float64 {
	if len(s) == cap(s) {
		return s
	}

	out := make([][]float64, len(s))
	copy(out, s)

	return out
}
