// Package query reads numeric data back out of compiled timelines: point and
// offset-window lookups against the snapshot array, row-filtered batch
// materialization, and synced value pairs for correlation. The engine never
// mutates the timeline it queries.
package query

import (
	"github.com/clinstream/tlc/pkg/compiler"
	"github.com/clinstream/tlc/pkg/resolver"
	"github.com/clinstream/tlc/pkg/window"
	"github.com/sirupsen/logrus"
)

// Options configure one query engine.
type Options struct {
	// Granularity sets the unit offset references are measured in. At day
	// granularity an offset of 1 is one day; at second granularity it is one
	// second.
	Granularity compiler.Granularity
}

// Engine answers lookups against one compiled timeline. An engine is cheap to
// construct; build one per timeline rather than rebinding.
type Engine struct {
	log  logrus.FieldLogger
	tl   *compiler.Timeline
	unit int64
}

// New creates an engine bound to one compiled timeline.
func New(log logrus.FieldLogger, tl *compiler.Timeline, opts Options) *Engine {
	unit := int64(window.SecondsPerDay)
	if opts.Granularity == compiler.GranularitySecond {
		unit = 1
	}

	return &Engine{
		log:  log.WithField("component", "query"),
		tl:   tl,
		unit: unit,
	}
}

// Lookup resolves one variable reference at snapshot index at. A zero-width
// unanchored reference reads the snapshot directly; an offset or range walks
// the snapshot array for the first in-window snapshot holding a value. The
// anchor time code is only consulted for anchor-flagged specs. Window-bound
// references read the window function's value at the matched snapshot.
func (e *Engine) Lookup(spec *resolver.Spec, at int, anchor compiler.TimeCode) (compiler.Value, compiler.TimeCode, bool) {
	v, tc, _, ok := e.lookup(spec, at, anchor)

	return v, tc, ok
}

// lookup is Lookup plus the matched snapshot index, which the batch
// materializer needs for the zero-timeout check.
func (e *Engine) lookup(spec *resolver.Spec, at int, anchor compiler.TimeCode) (compiler.Value, compiler.TimeCode, int, bool) {
	if at < 0 || at >= e.tl.Len() {
		return compiler.Value{}, compiler.TimeCode{}, 0, false
	}

	if spec.PointReference() && spec.OffStart == 0 && !spec.AnchorLast {
		entry := e.tl.At(at)
		if v := entry.Get(spec.Key()); v.Valid {
			return v, entry.Time, at, true
		}

		return compiler.Value{}, compiler.TimeCode{}, 0, false
	}

	base := e.tl.At(at).Time
	if spec.AnchorLast {
		base = anchor
	}

	lo := base.Abs() + spec.OffStart*e.unit
	hi := base.Abs() + spec.OffStop*e.unit

	// The search direction follows the offset order: start below stop scans
	// toward increasing time, the reverse scans backward.
	increasing := spec.OffStart <= spec.OffStop
	if lo > hi {
		lo, hi = hi, lo
	}

	first, last, step := 0, e.tl.Len()-1, 1
	if !increasing {
		first, last, step = last, first, -1
	}

	for i := first; ; i += step {
		entry := e.tl.At(i)
		abs := entry.Time.Abs()

		if abs >= lo && abs <= hi {
			if v := entry.Get(spec.Key()); v.Valid {
				return v, entry.Time, i, true
			}
		}

		if i == last {
			break
		}
	}

	return compiler.Value{}, compiler.TimeCode{}, 0, false
}

// zeroTimedOut reports whether the value at snapshot index is a zero that has
// overstayed its descriptor's zero-timeout. A short zero run is an accepted
// value; one continuously zero for longer than the limit reads as absent.
func (e *Engine) zeroTimedOut(spec *resolver.Spec, idx int) bool {
	if spec.Desc == nil || spec.Desc.MaxZeroDays <= 0 {
		return false
	}

	key := spec.Key()

	v := e.tl.At(idx).Get(key)
	if !v.Valid || v.Float64 != 0 {
		return false
	}

	firstZeroDay := e.tl.At(idx).Time.Day

	for j := idx - 1; j >= 0; j-- {
		prev := e.tl.At(j).Get(key)
		if !prev.Valid || prev.Float64 != 0 {
			break
		}

		firstZeroDay = e.tl.At(j).Time.Day
	}

	return e.tl.At(idx).Time.Day-firstZeroDay > int64(spec.Desc.MaxZeroDays)
}

// SyncedPair collects the values of two variables across every snapshot where
// both are present, as two equal-length arrays plus the matching time codes.
// Used by downstream correlation computation.
func (e *Engine) SyncedPair(keyA, keyB string) (a, b []float64, times []compiler.TimeCode) {
	for _, entry := range e.tl.Entries {
		va := entry.Get(keyA)
		vb := entry.Get(keyB)

		if !va.Valid || !vb.Valid {
			continue
		}

		a = append(a, va.Float64)
		b = append(b, vb.Float64)
		times = append(times, entry.Time)
	}

	return clipFloats(a), clipFloats(b), clipTimes(times)
}

func clipFloats(s []float64) []float64 {
	if len(s) == cap(s) {
		return s
	}

	out := make([]float64, len(s))
	copy(out, s)

	return out
}

func clipTimes(s []compiler.TimeCode) []compiler.TimeCode {
	if len(s) == cap(s) {
		return s
	}

	out := make([]compiler.TimeCode, len(s))
	copy(out, s)

	return out
}
