package compiler

import (
	"strconv"
	"strings"

	"github.com/clinstream/tlc/pkg/catalog"
)

// forwardPass walks the raw nodes in document order, building snapshots and
// computing every derived value whose formula only needs past or current
// data. One "latest known value" mapping flows forward through the record
// via snapshot cloning and the per-variable carry-forward policies.
func (c *Compiler) forwardPass(raw *rawRecord, tl *Timeline) {
	var (
		prevNodeTime TimeCode
		hasPrevTime  bool
		cur          *Entry
	)

	for i := range raw.nodes {
		node := raw.nodes[i]

		if !node.HasTime {
			// A node without a timestamp inherits the previous node's time
			// code; a leading untimed node has nothing to inherit and is a
			// data-quality casualty.
			if !hasPrevTime {
				c.log.WithField("tag", node.Tag).Debug("Dropping leading node without timestamp")

				continue
			}

			node.Time = prevNodeTime
		}

		prevNodeTime = node.Time
		hasPrevTime = true

		tc := c.normalize(node.Time)
		if cur != nil && tc.Before(cur.Time) {
			// Out-of-order nodes collapse into the current snapshot rather
			// than breaking the time-code ordering invariant.
			tc = cur.Time
		}

		if cur == nil || !c.sharesSnapshot(cur, &node, tc) {
			cur = c.newEntry(tl, cur, tc)
		}

		cur.Events = append(cur.Events, node)

		switch {
		case node.IsPanel():
			c.applyPanel(cur, &node)
		case node.Tag == TagEvent:
			c.applyEvent(cur, &node)
		case node.Tag == TagMedication:
			c.applyMedication(cur, &node)
		default:
			c.log.WithField("tag", node.Tag).Debug("Ignoring unrecognized node tag")
		}

		c.computeForwardDerived(cur)
	}
}

// sharesSnapshot decides whether a node joins the current snapshot: an exact
// time-code match always does, and diagnosis-class events coalesce with a
// snapshot that already holds a diagnosis on the same day.
func (c *Compiler) sharesSnapshot(cur *Entry, node *Node, tc TimeCode) bool {
	if tc == cur.Time {
		return true
	}

	return node.Class == ClassDiagnosis && cur.hasDiagnosis() && tc.Day == cur.Time.Day
}

// newEntry starts a snapshot at tc by cloning the previous snapshot's values
// (or a fresh baseline when carry-forward is globally disabled) and applying
// each variable's carry-forward policy to the clone.
func (c *Compiler) newEntry(tl *Timeline, prev *Entry, tc TimeCode) *Entry {
	values := make(map[string]Value)

	if prev != nil && !c.opts.DisableCarryForward {
		for name, v := range prev.Values {
			policy := catalog.PolicyCarry
			if desc, ok := c.cat.Lookup(name); ok {
				policy = desc.Policy
			}

			switch policy {
			case catalog.PolicyCarry, catalog.PolicyUnchanged:
				values[name] = v
			case catalog.PolicyZero:
				values[name] = Number(0)
			case catalog.PolicyInvalidate, catalog.PolicyClear:
				values[name] = Value{}
			case catalog.PolicyRemove:
				// dropped from the snapshot entirely
			}
		}
	}

	e := &Entry{Time: tc, Values: values}

	// Subject-level context variables are known at every snapshot. Age is
	// the day-of-life count itself; sex is 1 for female.
	if c.wants(VarAge) {
		e.Values[VarAge] = Number(float64(tc.Day))
	}

	if c.wants(VarSex) {
		e.Values[VarSex] = Flag(strings.EqualFold(tl.Gender, "F"))
	}

	if c.wants(VarWeight) && tl.Weight > 0 {
		e.Values[VarWeight] = Number(tl.Weight)
	}

	if c.wants(catalog.DaysSinceObs) {
		if prev != nil {
			e.Values[catalog.DaysSinceObs] = Number(float64(tc.Day - prev.Time.Day))
		} else {
			e.Values[catalog.DaysSinceObs] = Value{}
		}
	}

	tl.Entries = append(tl.Entries, e)

	return e
}

// applyPanel parses a semicolon/comma-delimited name=value list. Unparseable
// or unrecognized fields are discarded; a value beyond three times the
// catalog max is rejected as corrupt, anything else is clipped to the
// descriptor's valid range.
func (c *Compiler) applyPanel(e *Entry, node *Node) {
	for _, pair := range strings.FieldsFunc(node.Body, func(r rune) bool { return r == ';' || r == ',' }) {
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}

		name := strings.TrimSpace(pair[:eq])

		desc, ok := c.cat.Lookup(name)
		if !ok {
			c.log.WithField("variable", name).Debug("Discarding field not in catalog")

			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(pair[eq+1:]), 64)
		if err != nil {
			c.log.WithField("variable", name).Debug("Discarding unparseable numeric field")

			continue
		}

		if v > desc.Max*3 {
			c.log.WithField("variable", name).Debug("Rejecting value beyond 3x catalog max")

			continue
		}

		e.Values[name] = Number(desc.Clip(v))
	}
}

// applyEvent handles admission/discharge transitions; diagnosis and
// procedure events only contribute their raw node to the snapshot.
func (c *Compiler) applyEvent(e *Entry, node *Node) {
	switch node.Class {
	case ClassAdmission:
		if c.wants(VarInHospital) {
			e.Values[VarInHospital] = Flag(true)
		}

		if c.wants(VarAdmissionDay) {
			e.Values[VarAdmissionDay] = Number(float64(e.Time.Day))
		}
	case ClassDischarge:
		if c.wants(VarInHospital) {
			e.Values[VarInHospital] = Flag(false)
		}
	}
}

// applyMedication parses drug:dose:route:dosesPerDay tuples into a total
// daily dose per drug. A later order for the same drug on the same snapshot
// replaces the earlier one rather than adding, so re-ordered or cancelled
// orders are not double counted. A single order larger than half the drug's
// maximum is assumed to already encode the whole day's total and is not
// multiplied out.
func (c *Compiler) applyMedication(e *Entry, node *Node) {
	for _, tuple := range strings.Split(node.Body, ";") {
		parts := strings.Split(strings.TrimSpace(tuple), ":")
		if len(parts) < 2 {
			continue
		}

		drug := strings.TrimSpace(parts[0])

		desc, ok := c.cat.Lookup(drug)
		if !ok {
			c.log.WithField("drug", drug).Debug("Discarding order for drug not in catalog")

			continue
		}

		dose, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || dose < 0 {
			continue
		}

		perDay := 1.0

		if len(parts) >= 4 {
			if n, err := strconv.ParseFloat(parts[3], 64); err == nil && n > 0 {
				perDay = n
			}
		}

		daily := dose * perDay
		if dose > desc.Max/2 {
			daily = dose
		}

		e.Values[drug] = Number(desc.Clip(daily))
	}
}

// computeForwardDerived evaluates the causal derived formulas against the
// snapshot's current values. It runs after every node so the snapshot is
// always internally consistent, even while still being revised.
func (c *Compiler) computeForwardDerived(e *Entry) {
	if c.wants(VarEGFR) {
		cr := e.Get(VarCreatinine)
		age := e.Get(VarAge)

		if cr.Valid && cr.Float64 > 0 && age.Valid {
			female := e.Get(VarSex).True()

			if desc, ok := c.cat.Lookup(VarEGFR); ok {
				e.Values[VarEGFR] = Number(desc.Clip(computeEGFR(cr.Float64, age.Float64, female)))
			}
		}
	}

	if c.wants(VarMELD) {
		cr := e.Get(VarCreatinine)
		bili := e.Get(VarBilirubin)
		inr := e.Get(VarINR)
		na := e.Get(VarSodium)

		if cr.Valid && bili.Valid && inr.Valid && na.Valid {
			e.Values[VarMELD] = Number(computeMELD(cr.Float64, bili.Float64, inr.Float64, na.Float64))
		}
	}
}

// secondForwardPass is a cheap scan over the settled snapshot array. The
// first pass may still be revising a snapshot's values while building it, so
// anything that consumes one value per final snapshot (the provisional
// baseline, disease-stage milestones, the rolling window functions) waits
// until the snapshots are final.
func (c *Compiler) secondForwardPass(tl *Timeline) {
	for _, e := range tl.Entries {
		if c.wants(VarBaselineCreat) {
			if cr := e.Get(VarCreatinine); cr.Valid {
				c.baseline.add(cr.Float64, e.Time.Abs())
			}

			if m, ok := c.baseline.min(); ok {
				e.Values[VarBaselineCreat] = Number(m)
			}
		}

		if c.wants(VarCKDStage) {
			if g := e.Get(VarEGFR); g.Valid {
				stage := ckdStageOf(g.Float64)
				e.Values[VarCKDStage] = Number(float64(stage))

				// A stage onset is only recorded while every stricter stage
				// is also currently met; a later, healthier observation
				// cancels a premature advanced-stage date.
				for st := 2; st <= stage; st++ {
					if _, ok := tl.StageOnsets[st]; !ok {
						tl.StageOnsets[st] = e.Time.Day
					}
				}

				for st := stage + 1; st <= 5; st++ {
					delete(tl.StageOnsets, st)
				}
			}
		}

		for key, b := range c.windowOps {
			if v := e.Get(b.stem); v.Valid {
				if out, ok := b.op.Next(v.Float64, e.Time.Day, e.Time.Sec); ok {
					e.Values[key] = Number(out)
				}
			}
		}
	}
}

// baselineTracker keeps the trailing-window minimum of a lab value, the
// provisional baseline later refined by the reverse pass.
type baselineTracker struct {
	spanSecs int64
	samples  []baselineSample
}

type baselineSample struct {
	t int64
	v float64
}

func newBaselineTracker(spanDays int64) baselineTracker {
	return baselineTracker{spanSecs: spanDays * 86400}
}

func (b *baselineTracker) reset() {
	b.samples = b.samples[:0]
}

func (b *baselineTracker) add(v float64, t int64) {
	for len(b.samples) > 0 && b.samples[0].t < t-b.spanSecs {
		b.samples = b.samples[1:]
	}

	b.samples = append(b.samples, baselineSample{t: t, v: v})
}

func (b *baselineTracker) min() (float64, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}

	m := b.samples[0].v
	for _, s := range b.samples[1:] {
		if s.v < m {
			m = s.v
		}
	}

	return m, true
}
