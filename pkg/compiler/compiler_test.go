package compiler

import (
	"testing"

	"github.com/clinstream/tlc/internal/testutil"
	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/clinstream/tlc/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(t *testing.T, refs []string, opts Options) *Compiler {
	t.Helper()

	cat := testutil.FixtureCatalog(t)

	specs, err := resolver.New(testutil.QuietLogger(), cat).Resolve(refs)
	require.NoError(t, err)

	c, err := New(testutil.QuietLogger(), cat, specs, opts)
	require.NoError(t, err)

	return c
}

func TestCompileUnreadableWrapper(t *testing.T) {
	c := newTestCompiler(t, []string{"creatinine"}, Options{})

	tests := []string{
		"",
		"no tags at all\n",
		"<TL id=\"1\">\n<L t=\"1:0\">creatinine=1.0</L>\n", // missing close
		"<L t=\"1:0\">creatinine=1.0</L>\n</TL>\n",         // missing open
	}

	for _, text := range tests {
		_, err := c.Compile(text)
		require.ErrorIs(t, err, ErrUnreadable)
		assert.False(t, c.Compiled())
	}
}

func TestCompileFixture(t *testing.T) {
	c := newTestCompiler(t, []string{"creatinine", "sodium", "in_hospital"}, Options{})

	tl, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)
	require.True(t, c.Compiled())

	assert.Equal(t, "8412", tl.SubjectID)
	assert.Equal(t, "M", tl.Gender)
	assert.InDelta(t, 82.5, tl.Weight, 1e-9)

	// Days 7300, 7305, 7310, 7320, 7321 at day granularity.
	require.Equal(t, 5, tl.Len())

	for i := 1; i < tl.Len(); i++ {
		assert.False(t, tl.At(i).Time.Before(tl.At(i-1).Time), "time codes non-decreasing")
	}

	// Carry-forward: sodium measured at 7300 persists into 7305's clone
	// until overwritten by the 7305 panel.
	assert.Equal(t, Number(138), tl.At(1).Get("sodium"))
	// creatinine carried into the discharge-day snapshot.
	assert.Equal(t, Number(1.4), tl.At(4).Get("creatinine"))
}

func TestCompileIdempotent(t *testing.T) {
	c := newTestCompiler(t, []string{"creatinine", "baseline_creatinine", "egfr", "meld",
		"days_to_discharge", "creatinine.rate7"}, Options{})

	first, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)

	second, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)

	assert.Equal(t, first, second, "compiling the same record twice yields identical timelines")
}

func TestNoStateLeaksBetweenTimelines(t *testing.T) {
	c := newTestCompiler(t, []string{"creatinine.rate7", "baseline_creatinine"}, Options{})

	_, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)

	// A fresh subject must not see the previous subject's rolling state.
	tl, err := c.Compile(testutil.FixtureRecordShort)
	require.NoError(t, err)

	require.Equal(t, 1, tl.Len())
	assert.False(t, tl.At(0).Get("creatinine.rate7").Valid, "one sample cannot have a rate")
	assert.Equal(t, Number(0.8), tl.At(0).Get("baseline_creatinine"))
}

func TestBaselineExample(t *testing.T) {
	// The documented acute-deviation example: the day-10 peak is a deviation,
	// not a new baseline; from day 20 the reverse pass confirms no further
	// drop and 1.4 becomes the baseline.
	record := `<TL id="1" gender="F" wt="60">
<L t="0:0">creatinine=1.0</L>
<L t="5:0">creatinine=1.0</L>
<L t="10:0">creatinine=2.9</L>
<L t="20:0">creatinine=1.4</L>
</TL>
`

	c := newTestCompiler(t, []string{"creatinine", "baseline_creatinine", "days_to_baseline", "days_to_aki"}, Options{})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 4, tl.Len())

	assert.Equal(t, Number(1.0), tl.At(2).Get("baseline_creatinine"), "peak is not a baseline")
	assert.Equal(t, Number(1.4), tl.At(3).Get("baseline_creatinine"))

	// Day 10 deviates at 2.9 against baseline 1.0; the lab returns to
	// baseline at day 20.
	assert.Equal(t, Number(10), tl.At(2).Get("days_to_baseline"))

	// The deviation begins at day 10; day 5 looks ahead 5 days.
	assert.Equal(t, Number(5), tl.At(1).Get("days_to_aki"))
	assert.Equal(t, Number(0), tl.At(2).Get("days_to_aki"))
}

func TestSnapshotCoalescing(t *testing.T) {
	record := `<TL id="1" gender="F" wt="60">
<L t="10:3600">creatinine=1.0</L>
<V t="10:3600">hr=80</V>
<E t="10:7200" class="DX">N17.9</E>
<E t="10:9000" class="DX">E11.9</E>
<L t="11:0">creatinine=1.1</L>
</TL>
`

	// Second granularity: same-time nodes share a snapshot, and the two
	// diagnosis events coalesce by the same-day rule even though their
	// seconds differ from the snapshot they join.
	c := newTestCompiler(t, []string{"creatinine", "hr"}, Options{Granularity: GranularitySecond})

	tl, err := c.Compile(record)
	require.NoError(t, err)

	require.Equal(t, 3, tl.Len())
	assert.Len(t, tl.At(0).Events, 2)
	assert.Len(t, tl.At(1).Events, 2, "diagnosis events coalesce on the same day")
	assert.Equal(t, TimeCode{Day: 10, Sec: 7200}, tl.At(1).Time)
}

func TestPanelRangeHandling(t *testing.T) {
	record := `<TL id="1" gender="F" wt="60">
<L t="0:0">creatinine=75;sodium=250;hr=bogus</L>
</TL>
`

	c := newTestCompiler(t, []string{"creatinine", "sodium", "hr"}, Options{})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())

	e := tl.At(0)
	assert.False(t, e.Get("creatinine").Valid, "75 is beyond 3x the catalog max of 20")
	assert.Equal(t, Number(180), e.Get("sodium"), "250 clips to the catalog max")
	assert.False(t, e.Get("hr").Valid, "unparseable field discarded")
}

func TestMedicationRules(t *testing.T) {
	record := `<TL id="1" gender="M" wt="80">
<M t="0:28800">furosemide:40:IV:2</M>
<M t="0:43200">furosemide:20:PO:3</M>
<M t="1:28800">furosemide:400:IV:2;metoprolol:25:PO:2</M>
<L t="2:0">creatinine=1.0</L>
</TL>
`

	c := newTestCompiler(t, []string{"furosemide", "metoprolol", "creatinine"}, Options{})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 3, tl.Len())

	// Same-snapshot re-order replaces: 20*3, not 80+60.
	assert.Equal(t, Number(60), tl.At(0).Get("furosemide"))

	// A single 400mg order exceeds half the 600mg max: treated as the whole
	// day's total instead of being multiplied out.
	assert.Equal(t, Number(400), tl.At(1).Get("furosemide"))
	assert.Equal(t, Number(50), tl.At(1).Get("metoprolol"))

	// Zero-each-period policy: no orders on day 2 means zero dose.
	assert.Equal(t, Number(0), tl.At(2).Get("furosemide"))
}

func TestAdmissionDischargeAndStay(t *testing.T) {
	c := newTestCompiler(t, []string{"in_hospital", "admission_day", "length_of_stay", "days_to_discharge"}, Options{})

	tl, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)
	require.Equal(t, 5, tl.Len())

	assert.True(t, tl.At(0).Get("in_hospital").True())
	assert.Equal(t, Number(7300), tl.At(0).Get("admission_day"))
	assert.False(t, tl.At(4).Get("in_hospital").True(), "discharged")

	// Discharge happens on day 7321.
	assert.Equal(t, Number(21), tl.At(0).Get("days_to_discharge"))
	assert.Equal(t, Number(11), tl.At(2).Get("days_to_discharge"))
	assert.Equal(t, Number(21), tl.At(2).Get("length_of_stay"))
	assert.False(t, tl.At(4).Get("length_of_stay").Valid, "not in hospital at discharge snapshot")
}

func TestForwardDerivedFormulas(t *testing.T) {
	c := newTestCompiler(t, []string{"egfr", "meld"}, Options{})

	tl, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)

	e := tl.At(0)

	// Male, creatinine 1.0 at day-of-life 7300 (~20y): near-normal function.
	g := e.Get("egfr")
	require.True(t, g.Valid)
	assert.Greater(t, g.Float64, 90.0)

	m := e.Get("meld")
	require.True(t, m.Valid)
	assert.GreaterOrEqual(t, m.Float64, 6.0)
	assert.LessOrEqual(t, m.Float64, 40.0)

	// The day-10 panel carries no bilirubin/inr but they carry forward, so
	// the score follows the creatinine rise.
	m2 := tl.At(2).Get("meld")
	require.True(t, m2.Valid)
	assert.Greater(t, m2.Float64, m.Float64)
}

func TestDaysSinceObs(t *testing.T) {
	c := newTestCompiler(t, []string{"creatinine", catalog.DaysSinceObs}, Options{})

	tl, err := c.Compile(testutil.FixtureRecord)
	require.NoError(t, err)

	assert.False(t, tl.At(0).Get(catalog.DaysSinceObs).Valid, "nothing precedes the first snapshot")
	assert.Equal(t, Number(5), tl.At(1).Get(catalog.DaysSinceObs))
	assert.Equal(t, Number(10), tl.At(3).Get(catalog.DaysSinceObs))
}

func TestTimestampInheritance(t *testing.T) {
	record := `<TL id="1" gender="F" wt="60">
<L>creatinine=9.9</L>
<L t="3:0">creatinine=1.0</L>
<V>hr=80</V>
</TL>
`

	c := newTestCompiler(t, []string{"creatinine", "hr"}, Options{})

	tl, err := c.Compile(record)
	require.NoError(t, err)

	// The leading untimed node is dropped; the trailing one inherits day 3.
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, int64(3), tl.At(0).Time.Day)
	assert.Equal(t, Number(1.0), tl.At(0).Get("creatinine"))
	assert.Equal(t, Number(80), tl.At(0).Get("hr"))
}

func TestLegacyTimestamp(t *testing.T) {
	record := `<TL id="1" gender="F" wt="60">
<L t="100:8:30:15">creatinine=1.0</L>
</TL>
`

	c := newTestCompiler(t, []string{"creatinine"}, Options{Granularity: GranularitySecond})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, TimeCode{Day: 100, Sec: 8*3600 + 30*60 + 15}, tl.At(0).Time)
}

func TestStageTrackingCancelsPrematureDates(t *testing.T) {
	// eGFR dips into stage 4 territory, recovers, then durably declines:
	// the premature stage-4 date must be canceled and re-recorded.
	record := `<TL id="1" gender="M" wt="80">
<L t="18000:0">creatinine=1.0</L>
<L t="18100:0">creatinine=4.0</L>
<L t="18200:0">creatinine=1.1</L>
<L t="18600:0">creatinine=4.0</L>
<L t="18700:0">creatinine=4.1</L>
</TL>
`

	c := newTestCompiler(t, []string{"ckd_stage", "stage4_within_2y"}, Options{})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 5, tl.Len())

	require.Contains(t, tl.StageOnsets, 4)
	assert.Equal(t, int64(18600), tl.StageOnsets[4], "day-18100 dip was canceled by recovery")

	// Day 18200 is healthy but stage 4 recurs 400 days later: within the
	// two-year outcome horizon.
	assert.True(t, tl.At(2).Get("stage4_within_2y").True())
	assert.True(t, tl.At(0).Get("stage4_within_2y").True(), "stage 4 at day 18100 is 100 days ahead")
}

func TestDisableCarryForward(t *testing.T) {
	record := `<TL id="1" gender="F" wt="60">
<L t="0:0">creatinine=1.0;sodium=140</L>
<L t="5:0">creatinine=1.1</L>
</TL>
`

	c := newTestCompiler(t, []string{"creatinine", "sodium"}, Options{DisableCarryForward: true})

	tl, err := c.Compile(record)
	require.NoError(t, err)
	require.Equal(t, 2, tl.Len())
	assert.False(t, tl.At(1).Get("sodium").Valid, "nothing carries into a fresh baseline")
}
