package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// QuietLogger returns a logger that only reports errors, keeping test output
// readable.
func QuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// FixtureRecord is one complete subject record: an admission with an acute
// creatinine deviation that resolves to a higher baseline, a medication
// course, and a discharge.
const FixtureRecord = `<TL id="8412" gender="M" wt="82.5">
<L t="7300:28800">creatinine=1.0;sodium=140;bilirubin=0.7;inr=1.1</L>
<E t="7300:28800" class="ADM">ward</E>
<L t="7305:30000">creatinine=1.0;sodium=138</L>
<M t="7305:43200">furosemide:40:IV:2</M>
<L t="7310:28800">creatinine=2.9;sodium=133</L>
<E t="7310:30000" class="DX">N17.9</E>
<L t="7320:28800">creatinine=1.4;sodium=139</L>
<E t="7321:0" class="DIS">home</E>
</TL>
`

// FixtureRecordShort is a minimal second subject used for multi-record scans.
const FixtureRecordShort = `<TL id="9177" gender="F" wt="64.0">
<L t="9100:3600">creatinine=0.8;sodium=141</L>
<V t="9100:3700">hr=72,sbp=118</V>
</TL>
`

// FixtureFile is a two-record log file preceded by a document header.
const FixtureFile = `<DOC source="deid-export" version="3">
# exported 2019-04
</DOC>
` + FixtureRecord + FixtureRecordShort

// WriteFixtureFile writes content to a temp file and returns its path.
func WriteFixtureFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "subjects.tl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// FixtureCatalog returns a catalog covering the variables used by fixture
// records, including the compiler's built-in derived variables.
func FixtureCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.New(FixtureDescriptors())
	require.NoError(t, err)

	return cat
}

// FixtureDescriptors returns the descriptor set behind FixtureCatalog.
func FixtureDescriptors() []catalog.Descriptor {
	return []catalog.Descriptor{
		{Name: "creatinine", Type: catalog.TypeFloat, Min: 0.1, Max: 20, Policy: catalog.PolicyCarry},
		{Name: "sodium", Type: catalog.TypeFloat, Min: 100, Max: 180, Policy: catalog.PolicyCarry},
		{Name: "bilirubin", Type: catalog.TypeFloat, Min: 0, Max: 60, Policy: catalog.PolicyCarry},
		{Name: "inr", Type: catalog.TypeFloat, Min: 0.5, Max: 20, Policy: catalog.PolicyCarry},
		{Name: "hr", Type: catalog.TypeFloat, Min: 20, Max: 300, Policy: catalog.PolicyCarry},
		{Name: "sbp", Type: catalog.TypeFloat, Min: 40, Max: 300, Policy: catalog.PolicyCarry},
		{Name: "age", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyCarry},
		{Name: "sex", Type: catalog.TypeBool, Min: 0, Max: 1, Policy: catalog.PolicyCarry},
		{Name: "weight", Type: catalog.TypeFloat, Min: 0.2, Max: 500, Policy: catalog.PolicyCarry},
		{Name: "furosemide", Type: catalog.TypeFloat, Min: 0, Max: 600, Policy: catalog.PolicyZero, MaxZeroDays: 30},
		{Name: "metoprolol", Type: catalog.TypeFloat, Min: 0, Max: 400, Policy: catalog.PolicyZero},
		{Name: "in_hospital", Type: catalog.TypeBool, Min: 0, Max: 1, Policy: catalog.PolicyCarry},
		{Name: "admission_day", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyCarry},
		{Name: "egfr", Type: catalog.TypeFloat, Min: 0, Max: 250, Policy: catalog.PolicyCarry,
			Derived: true, Dependencies: []string{"creatinine", "age", "sex"}},
		{Name: "meld", Type: catalog.TypeFloat, Min: 6, Max: 40, Policy: catalog.PolicyCarry,
			Derived: true, Dependencies: []string{"creatinine", "sodium", "bilirubin", "inr"}},
		{Name: "baseline_creatinine", Type: catalog.TypeFloat, Min: 0.1, Max: 20, Policy: catalog.PolicyCarry,
			Derived: true, Dependencies: []string{"creatinine"}},
		{Name: "ckd_stage", Type: catalog.TypeInt, Min: 0, Max: 5, Policy: catalog.PolicyCarry,
			Derived: true, Dependencies: []string{"egfr"}},
		{Name: catalog.DaysSinceObs, Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyInvalidate,
			Derived: true},
		{Name: "length_of_stay", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyInvalidate,
			Derived: true, Dependencies: []string{"in_hospital", "admission_day"}},
		{Name: "days_to_discharge", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyInvalidate,
			Derived: true, Dependencies: []string{"in_hospital"}},
		{Name: "days_to_baseline", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyInvalidate,
			Derived: true, Dependencies: []string{"creatinine", "baseline_creatinine"}},
		{Name: "days_to_aki", Type: catalog.TypeInt, Min: 0, Max: 43830, Policy: catalog.PolicyInvalidate,
			Derived: true, Dependencies: []string{"creatinine", "baseline_creatinine"}},
		{Name: "stage4_within_2y", Type: catalog.TypeBool, Min: 0, Max: 1, Policy: catalog.PolicyInvalidate,
			Derived: true, Dependencies: []string{"ckd_stage"}},
	}
}
