package compiler

import "math"

// Built-in variable names with compiler-computed formulas. The catalog still
// declares each of these (with its dependencies); the compiler supplies the
// arithmetic.
const (
	VarCreatinine    = "creatinine"
	VarSodium        = "sodium"
	VarBilirubin     = "bilirubin"
	VarINR           = "inr"
	VarAge           = "age"
	VarSex           = "sex"
	VarWeight        = "weight"
	VarEGFR          = "egfr"
	VarMELD          = "meld"
	VarBaselineCreat = "baseline_creatinine"
	VarCKDStage      = "ckd_stage"
	VarInHospital    = "in_hospital"
	VarAdmissionDay  = "admission_day"
	VarLengthOfStay  = "length_of_stay"
	VarDaysToDisch   = "days_to_discharge"
	VarDaysToBase    = "days_to_baseline"
	VarDaysToAKI     = "days_to_aki"
	VarStage4In2y    = "stage4_within_2y"
)

const (
	daysPerYear = 365.25

	// stage4HorizonDays is the look-ahead window of the "will reach stage 4"
	// outcome: two years.
	stage4HorizonDays = 730

	// baselineSpanDays is the trailing window of the provisional creatinine
	// baseline; the reverse pass refines it with future knowledge over the
	// same span.
	baselineSpanDays = 7

	// akiRatio and recoveryRatio bound an acute creatinine deviation:
	// a deviation begins at 1.5x baseline and has resolved once the value is
	// back within 10% of baseline.
	akiRatio      = 1.5
	recoveryRatio = 1.1
)

// computeEGFR estimates the glomerular filtration rate (CKD-EPI 2009) from
// current creatinine, age in days of life, and sex (1 = female).
func computeEGFR(creatinine, ageDays float64, female bool) float64 {
	kappa, alpha, sexFactor := 0.9, -0.411, 1.0
	if female {
		kappa, alpha, sexFactor = 0.7, -0.329, 1.018
	}

	ratio := creatinine / kappa
	years := ageDays / daysPerYear

	return 141 *
		math.Pow(math.Min(ratio, 1), alpha) *
		math.Pow(math.Max(ratio, 1), -1.209) *
		math.Pow(0.993, years) *
		sexFactor
}

// computeMELD is the sodium-adjusted composite liver-disease severity score
// from current creatinine, bilirubin, INR, and sodium. Inputs below their
// floor are clamped before the logarithms, and the result is clamped to the
// score's 6..40 range.
func computeMELD(creatinine, bilirubin, inr, sodium float64) float64 {
	clampLow := func(v float64) float64 {
		if v < 1 {
			return 1
		}

		return v
	}

	// Dialysis-level creatinine caps at 4.
	cr := clampLow(creatinine)
	if cr > 4 {
		cr = 4
	}

	meld := 3.78*math.Log(clampLow(bilirubin)) +
		11.2*math.Log(clampLow(inr)) +
		9.57*math.Log(cr) + 6.43

	na := sodium
	if na < 125 {
		na = 125
	} else if na > 137 {
		na = 137
	}

	if meld > 11 {
		meld = meld + 1.32*(137-na) - 0.033*meld*(137-na)
	}

	if meld < 6 {
		meld = 6
	} else if meld > 40 {
		meld = 40
	}

	return meld
}

// ckdStageOf maps an eGFR value to its disease stage, 1 (normal function)
// through 5 (failure).
func ckdStageOf(egfr float64) int {
	switch {
	case egfr < 15:
		return 5
	case egfr < 30:
		return 4
	case egfr < 60:
		return 3
	case egfr < 90:
		return 2
	default:
		return 1
	}
}
