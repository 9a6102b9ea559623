package window

import "math"

// deltaOp reports the newest value minus the oldest retained value.
type deltaOp struct{ buffer }

func (o *deltaOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 {
		return 0, false
	}

	return o.newest().v - o.oldest().v, true
}

// rateOp reports the delta divided by elapsed time in days.
type rateOp struct{ buffer }

func (o *rateOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	elapsed := o.elapsedDays()
	if elapsed <= 0 {
		return 0, false
	}

	return (o.newest().v - o.oldest().v) / elapsed, true
}

// accelOp reports the change between the window's widest-spread rate and the
// rate at the oldest end of the window, divided by the time between them.
type accelOp struct{ buffer }

func (o *accelOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 3 {
		return 0, false
	}

	oldest := o.oldest()
	second := o.samples[1]
	newest := o.newest()

	baseSpread := float64(second.t-oldest.t) / float64(SecondsPerDay)
	wideSpread := float64(newest.t-oldest.t) / float64(SecondsPerDay)
	rateSpread := float64(newest.t-second.t) / float64(SecondsPerDay)

	if baseSpread <= 0 || wideSpread <= 0 || rateSpread <= 0 {
		return 0, false
	}

	oldestRate := (second.v - oldest.v) / baseSpread
	wideRate := (newest.v - oldest.v) / wideSpread

	return (wideRate - oldestRate) / rateSpread, true
}

// sumOp reports the incrementally maintained running total.
type sumOp struct{ buffer }

func (o *sumOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	return o.sum, true
}

// avgOp reports the running average, derived from the same incremental total.
type avgOp struct{ buffer }

func (o *avgOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	return o.sum / float64(o.len()), true
}

// pctChangeOp reports the newest value relative to the lowest value retained
// in the window, as a percentage.
type pctChangeOp struct{ buffer }

func (o *pctChangeOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 || o.min == 0 {
		return 0, false
	}

	return (v - o.min) / o.min * 100, true
}

// rangeOp reports max-minus-min over the window, or that quantity divided by
// the min when relative.
type rangeOp struct {
	buffer
	relative bool
}

func (o *rangeOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 {
		return 0, false
	}

	spread := o.max - o.min

	if !o.relative {
		return spread, true
	}

	if o.min == 0 {
		return 0, false
	}

	return spread / o.min, true
}

// stabilityOp reports 1 when the absolute range over the window stays below
// the configured threshold.
type stabilityOp struct {
	buffer
	threshold float64
}

func (o *stabilityOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 {
		return 0, false
	}

	if o.max-o.min < o.threshold {
		return 1, true
	}

	return 0, true
}

// bollingerOp reports 1 when the newest value sits at or beyond one sample
// standard deviation above (upper) or below (lower) the window mean.
type bollingerOp struct {
	buffer
	upper bool
}

func (o *bollingerOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	n := o.len()
	if n < 2 {
		return 0, false
	}

	mean := o.sum / float64(n)

	var sq float64
	for _, s := range o.samples {
		d := s.v - mean
		sq += d * d
	}

	std := math.Sqrt(sq / float64(n-1))

	if o.upper {
		if v >= mean+std {
			return 1, true
		}

		return 0, true
	}

	if v <= mean-std {
		return 1, true
	}

	return 0, true
}

// rsiOp reports the relative strength index over percent changes between
// consecutive retained samples.
type rsiOp struct{ buffer }

func (o *rsiOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 {
		return 0, false
	}

	var gain, loss float64

	pairs := 0

	for i := 1; i < o.len(); i++ {
		prev := o.samples[i-1].v
		if prev == 0 {
			continue
		}

		pct := (o.samples[i].v - prev) / prev * 100
		if pct >= 0 {
			gain += pct
		} else {
			loss -= pct
		}

		pairs++
	}

	if pairs == 0 || loss == 0 {
		return 0, false
	}

	rs := (gain / float64(pairs)) / (loss / float64(pairs))

	return 100 - 100/(1+rs), true
}

// volatilityOp reports the mean absolute difference between consecutive
// retained samples.
type volatilityOp struct{ buffer }

func (o *volatilityOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() < 2 {
		return 0, false
	}

	var total float64
	for i := 1; i < o.len(); i++ {
		total += math.Abs(o.samples[i].v - o.samples[i-1].v)
	}

	return total / float64(o.len()-1), true
}

// crossingOp reports 1 when every retained sample stayed strictly above
// (or below) the configured threshold.
type crossingOp struct {
	buffer
	threshold float64
	above     bool
}

func (o *crossingOp) Next(v float64, day, sec int64) (float64, bool) {
	o.push(v, day, sec)

	if o.len() == 0 {
		return 0, false
	}

	if o.above {
		if o.min > o.threshold {
			return 1, true
		}

		return 0, true
	}

	if o.max < o.threshold {
		return 1, true
	}

	return 0, true
}
