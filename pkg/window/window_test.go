package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		ref      string
		wantKind Kind
		wantSpan int
		wantErr  error
	}{
		{ref: "rate7", wantKind: KindRate, wantSpan: 7},
		{ref: "avg30", wantKind: KindAvg, wantSpan: 30},
		{ref: "delta3", wantKind: KindDelta, wantSpan: 3},
		{ref: "bollup14", wantKind: KindBollUpper, wantSpan: 14},
		{ref: "bolllow14", wantKind: KindBollLower, wantSpan: 14},
		{ref: "rsi14", wantKind: KindRSI, wantSpan: 14},
		{ref: "relrange90", wantKind: KindRelRange, wantSpan: 90},
		{ref: "stable180", wantKind: KindStability, wantSpan: 180},
		{ref: "rate", wantErr: ErrMissingSpan},
		{ref: "rate0", wantErr: ErrInvalidSpan},
		{ref: "sharpe7", wantErr: ErrUnknownFunction},
		{ref: "", wantErr: ErrUnknownFunction},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			kind, span, err := Parse(tt.ref)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantSpan, span)
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	refs := []string{"delta3", "rate7", "accel14", "sum30", "avg60", "pct90",
		"range7", "relrange7", "stable14", "bollup30", "bolllow30", "rsi14",
		"vol7", "above3", "below3"}

	for _, ref := range refs {
		kind, span, err := Parse(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, ref, Format(kind, span))
	}
}

func TestRateExample(t *testing.T) {
	op := MustNew(KindRate, 7)

	_, ok := op.Next(10, 0, 0)
	assert.False(t, ok, "single sample has no rate")

	v, ok := op.Next(17, 7, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestIdenticalValues(t *testing.T) {
	days := []int64{0, 1, 2, 3, 4, 5, 6}

	delta := MustNew(KindDelta, 7)
	rate := MustNew(KindRate, 7)
	vol := MustNew(KindVolatility, 7)
	stable := MustNew(KindStability, 7)

	var dv, rv, vv, sv float64

	var ok bool

	for _, d := range days {
		dv, _ = delta.Next(4.2, d, 0)
		rv, _ = rate.Next(4.2, d, 0)
		vv, _ = vol.Next(4.2, d, 0)
		sv, ok = stable.Next(4.2, d, 0)
	}

	assert.Zero(t, dv)
	assert.Zero(t, rv)
	assert.Zero(t, vv)
	require.True(t, ok)
	assert.Equal(t, 1.0, sv, "identical values are stable")
}

func TestTimeBasedEviction(t *testing.T) {
	// Two samples spaced further apart than the span: the older one must be
	// evicted on insertion even though the buffer held fewer samples than a
	// dense window would.
	op := MustNew(KindDelta, 7)

	_, ok := op.Next(10, 0, 0)
	assert.False(t, ok)

	_, ok = op.Next(20, 8, 0)
	assert.False(t, ok, "older sample evicted, single sample left")

	// Exactly one span apart is still inside the window.
	op.Reset()
	_, _ = op.Next(10, 0, 0)
	v, ok := op.Next(20, 7, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
}

func TestSumAndAvgIncremental(t *testing.T) {
	sum := MustNew(KindSum, 7)
	avg := MustNew(KindAvg, 7)

	vals := []float64{1, 2, 3}
	for i, v := range vals {
		_, _ = sum.Next(v, int64(i), 0)
		_, _ = avg.Next(v, int64(i), 0)
	}

	s, ok := sum.Next(4, 3, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, s)

	a, ok := avg.Next(4, 3, 0)
	require.True(t, ok)
	assert.InDelta(t, 2.5, a, 1e-9)

	// Evicting day 0 drops the 1 from the running total.
	s, ok = sum.Next(5, 8, 0)
	require.True(t, ok)
	assert.Equal(t, 14.0, s)
}

func TestPercentChange(t *testing.T) {
	op := MustNew(KindPctChange, 30)

	_, _ = op.Next(100, 0, 0)
	v, ok := op.Next(150, 1, 0)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)

	// Zero minimum yields the sentinel, never a division panic.
	op.Reset()
	_, _ = op.Next(0, 0, 0)
	_, ok = op.Next(10, 1, 0)
	assert.False(t, ok)
}

func TestRangeEvictionRescan(t *testing.T) {
	op := MustNew(KindRange, 7)

	_, _ = op.Next(1, 0, 0)
	_, _ = op.Next(9, 1, 0)

	v, ok := op.Next(5, 2, 0)
	require.True(t, ok)
	assert.Equal(t, 8.0, v)

	// Day 0 and day 1 fall out of the window; the extrema must be rescanned.
	v, ok = op.Next(6, 9, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestRelativeRangeZeroMin(t *testing.T) {
	op := MustNew(KindRelRange, 7)

	_, _ = op.Next(0, 0, 0)
	_, ok := op.Next(4, 1, 0)
	assert.False(t, ok, "zero baseline yields the sentinel")
}

func TestBollingerBands(t *testing.T) {
	upper := MustNew(KindBollUpper, 30)
	lower := MustNew(KindBollLower, 30)

	feed := func(op Operator, vals []float64) (float64, bool) {
		var (
			v  float64
			ok bool
		)

		for i, x := range vals {
			v, ok = op.Next(x, int64(i), 0)
		}

		return v, ok
	}

	v, ok := feed(upper, []float64{10, 10, 10, 10, 25})
	require.True(t, ok)
	assert.Equal(t, 1.0, v, "spike breaches the upper band")

	v, ok = feed(lower, []float64{10, 10, 10, 10, 2})
	require.True(t, ok)
	assert.Equal(t, 1.0, v, "drop breaches the lower band")
}

func TestRSI(t *testing.T) {
	op := MustNew(KindRSI, 30)

	// Alternating equal-sized percent moves balance gains and losses.
	_, _ = op.Next(100, 0, 0)
	_, _ = op.Next(110, 1, 0)
	v, ok := op.Next(99, 2, 0)
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 100.0)

	// Monotonic rise has zero average loss: sentinel, not a division panic.
	op.Reset()
	_, _ = op.Next(100, 0, 0)
	_, ok = op.Next(110, 1, 0)
	assert.False(t, ok)
}

func TestThresholdCrossing(t *testing.T) {
	above := MustNew(KindAbove, 7, WithThreshold(2.0))

	v, ok := above.Next(3, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = above.Next(1.5, 1, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "one sample at or below the threshold breaks the streak")

	below := MustNew(KindBelow, 7, WithThreshold(2.0))
	v, ok = below.Next(1, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestResetClearsState(t *testing.T) {
	op := MustNew(KindSum, 7)

	_, _ = op.Next(5, 0, 0)
	_, _ = op.Next(5, 1, 0)

	op.Reset()

	v, ok := op.Next(3, 10, 0)
	require.True(t, ok)
	assert.Equal(t, 3.0, v, "no state leaks across a reset")
}

func TestAcceleration(t *testing.T) {
	op := MustNew(KindAccel, 30)

	_, ok := op.Next(0, 0, 0)
	assert.False(t, ok)
	_, ok = op.Next(1, 1, 0)
	assert.False(t, ok, "acceleration needs three samples")

	// Linear growth: the widest-spread rate equals the oldest rate.
	v, ok := op.Next(2, 2, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)

	// Speeding up: rate over the full spread exceeds the oldest rate.
	op.Reset()
	_, _ = op.Next(0, 0, 0)
	_, _ = op.Next(1, 1, 0)
	v, ok = op.Next(4, 2, 0)
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
}
