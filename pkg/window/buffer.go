package window

// sample is one (value, time) observation. Time is absolute seconds since
// day zero of the subject's life.
type sample struct {
	v float64
	t int64
}

// buffer holds the retained samples of one operator. Pruning is strictly
// time-based: a sample is evicted once it is older than the span, regardless
// of how many samples the buffer holds. A sample exactly span seconds old is
// still retained, so a pair spaced exactly one span apart spans the window.
type buffer struct {
	kind     Kind
	spanDays int
	spanSecs int64
	samples  []sample

	sum float64 // incrementally maintained running total
	min float64
	max float64
}

func newBuffer(kind Kind, spanDays int) buffer {
	return buffer{
		kind:     kind,
		spanDays: spanDays,
		spanSecs: int64(spanDays) * SecondsPerDay,
	}
}

// Kind implements Operator.
func (b *buffer) Kind() Kind { return b.kind }

// SpanDays implements Operator.
func (b *buffer) SpanDays() int { return b.spanDays }

// Reset implements Operator.
func (b *buffer) Reset() {
	b.samples = b.samples[:0]
	b.sum = 0
	b.min = 0
	b.max = 0
}

// push appends a new sample, evicting anything older than the span. The
// running sum and extrema are updated incrementally; a full rescan happens
// only when an evicted sample was the current extremum.
func (b *buffer) push(v float64, day, sec int64) {
	t := day*SecondsPerDay + sec

	evictedExtremum := false

	for len(b.samples) > 0 && b.samples[0].t < t-b.spanSecs {
		old := b.samples[0]
		b.samples = b.samples[1:]
		b.sum -= old.v

		if old.v == b.min || old.v == b.max {
			evictedExtremum = true
		}
	}

	b.samples = append(b.samples, sample{v: v, t: t})
	b.sum += v

	if evictedExtremum || len(b.samples) == 1 {
		b.rescanExtrema()

		return
	}

	if v < b.min {
		b.min = v
	}

	if v > b.max {
		b.max = v
	}
}

func (b *buffer) rescanExtrema() {
	if len(b.samples) == 0 {
		b.min, b.max = 0, 0

		return
	}

	b.min, b.max = b.samples[0].v, b.samples[0].v
	for _, s := range b.samples[1:] {
		if s.v < b.min {
			b.min = s.v
		}

		if s.v > b.max {
			b.max = s.v
		}
	}
}

func (b *buffer) len() int { return len(b.samples) }

func (b *buffer) oldest() sample { return b.samples[0] }

func (b *buffer) newest() sample { return b.samples[len(b.samples)-1] }

// elapsedDays is the time spread of the retained samples, in fractional days.
func (b *buffer) elapsedDays() float64 {
	if len(b.samples) < 2 {
		return 0
	}

	return float64(b.newest().t-b.oldest().t) / float64(SecondsPerDay)
}
