// Package compiler turns one raw timeline record into an ordered array of
// time-indexed snapshots. Compilation is a fixed state machine: a forward
// pass builds snapshots and computes causal derived values, a cheap second
// forward pass finalizes per-day milestone state over the settled snapshot
// array, and a reverse pass back-propagates future knowledge (days-until
// counters, outcome booleans, baseline refinement). Anticipatory fields are
// only defined once the reverse pass has completed.
package compiler

import (
	"fmt"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/clinstream/tlc/pkg/resolver"
	"github.com/clinstream/tlc/pkg/window"
	"github.com/sirupsen/logrus"
)

// state is the compilation state machine position.
type state int

const (
	stateEmpty state = iota
	stateForward
	stateSecondForward
	stateReverse
	stateCompiled
)

// Options configure one compiler.
type Options struct {
	// Granularity keys snapshots by day (default) or day+seconds.
	Granularity Granularity

	// DisableCarryForward starts every snapshot from a fresh baseline
	// instead of cloning the previous snapshot's values.
	DisableCarryForward bool
}

// Compiler compiles raw records against a resolved variable set. A compiler
// is single-threaded; rolling window state is scoped to one timeline and
// reset at the start of every Compile call, never shared across subjects.
type Compiler struct {
	log   logrus.FieldLogger
	cat   *catalog.Catalog
	specs []resolver.Spec
	opts  Options

	st state

	// wanted is the set of variable stems in the resolved spec list; derived
	// formulas are only evaluated for stems the caller asked for (directly
	// or via dependency expansion).
	wanted map[string]bool

	// windowOps holds one operator instance per window-bound spec, keyed by
	// the spec's snapshot key.
	windowOps map[string]windowBinding

	baseline baselineTracker
}

type windowBinding struct {
	stem string
	op   window.Operator
}

// New creates a compiler for one resolved variable set.
func New(log logrus.FieldLogger, cat *catalog.Catalog, specs []resolver.Spec, opts Options) (*Compiler, error) {
	c := &Compiler{
		log:       log.WithField("component", "compiler"),
		cat:       cat,
		specs:     specs,
		opts:      opts,
		wanted:    make(map[string]bool, len(specs)),
		windowOps: make(map[string]windowBinding),
		baseline:  newBaselineTracker(baselineSpanDays),
	}

	for i := range specs {
		s := &specs[i]
		c.wanted[s.Stem] = true

		if !s.HasWindow {
			continue
		}

		op, err := window.New(s.WindowKind, s.WindowSpan)
		if err != nil {
			return nil, fmt.Errorf("window function for %q: %w", s.Key(), err)
		}

		c.windowOps[s.Key()] = windowBinding{stem: s.Stem, op: op}
	}

	return c, nil
}

// Compile compiles one raw record into a timeline. The returned timeline is
// owned by the caller; the compiler retains no reference to it. A structural
// wrapper failure aborts this record only and is reported as unreadable.
func (c *Compiler) Compile(text string) (*Timeline, error) {
	c.reset()

	raw, err := parseRecord(c.log, text)
	if err != nil {
		return nil, err
	}

	tl := &Timeline{
		SubjectID:   raw.id,
		Gender:      raw.gender,
		Weight:      raw.weight,
		StageOnsets: make(map[int]int64),
	}

	c.st = stateForward
	c.forwardPass(raw, tl)

	c.st = stateSecondForward
	c.secondForwardPass(tl)

	c.st = stateReverse
	c.reversePass(tl)

	c.st = stateCompiled

	c.log.WithFields(logrus.Fields{
		"subject":   tl.SubjectID,
		"snapshots": tl.Len(),
	}).Debug("Compiled timeline")

	return tl, nil
}

// Compiled reports whether the last Compile call ran to completion. Future-
// looking fields are only defined on timelines from a completed run.
func (c *Compiler) Compiled() bool { return c.st == stateCompiled }

// reset clears all per-timeline state. Rolling window operators must never
// leak samples from one subject into another.
func (c *Compiler) reset() {
	c.st = stateEmpty

	for _, b := range c.windowOps {
		b.op.Reset()
	}

	c.baseline.reset()
}

func (c *Compiler) wants(name string) bool { return c.wanted[name] }

// normalize truncates a node time code to the configured granularity.
func (c *Compiler) normalize(tc TimeCode) TimeCode {
	if c.opts.Granularity == GranularityDay {
		tc.Sec = 0
	}

	return tc
}
