package compiler

// reversePass walks the snapshot array from last to first, back-propagating
// "next future occurrence" state so every snapshot knows the day and
// day-count until each anticipated event, or carries no value when the
// timeline holds no such future event. It first refines the provisional
// baseline with future knowledge, because the acute-deviation bookkeeping
// reads the refined value.
func (c *Compiler) reversePass(tl *Timeline) {
	if c.wants(VarBaselineCreat) {
		c.refineBaseline(tl)
	}

	const unset = int64(-1)

	nextDischarge := unset
	nextReturn := unset
	nextDeviation := unset
	nextStage4 := unset

	for i := tl.Len() - 1; i >= 0; i-- {
		e := tl.At(i)
		day := e.Time.Day

		for j := range e.Events {
			if e.Events[j].Class == ClassDischarge {
				nextDischarge = day
			}
		}

		if c.wants(VarDaysToDisch) && nextDischarge != unset {
			e.Values[VarDaysToDisch] = Number(float64(nextDischarge - day))
		}

		if c.wants(VarLengthOfStay) {
			adm := e.Get(VarAdmissionDay)
			if nextDischarge != unset && e.Get(VarInHospital).True() && adm.Valid {
				e.Values[VarLengthOfStay] = Number(float64(nextDischarge) - adm.Float64)
			}
		}

		if c.wants(VarStage4In2y) {
			if st := e.Get(VarCKDStage); st.Valid {
				if st.Float64 >= 4 {
					nextStage4 = day
				}

				e.Values[VarStage4In2y] = Flag(nextStage4 != unset && nextStage4-day <= stage4HorizonDays)
			}
		}

		cr := e.Get(VarCreatinine)
		base := e.Get(VarBaselineCreat)

		if cr.Valid && base.Valid && cr.Float64 <= base.Float64*recoveryRatio {
			nextReturn = day
		}

		if c.deviated(tl, i) && !c.deviated(tl, i-1) {
			nextDeviation = day
		}

		if c.wants(VarDaysToBase) && nextReturn != unset {
			e.Values[VarDaysToBase] = Number(float64(nextReturn - day))
		}

		if c.wants(VarDaysToAKI) && nextDeviation != unset {
			e.Values[VarDaysToAKI] = Number(float64(nextDeviation - day))
		}
	}
}

// deviated reports whether snapshot i holds an acute creatinine deviation
// against its (already refined) baseline. Out-of-range indexes are not
// deviated, so index arithmetic at the array edges stays simple.
func (c *Compiler) deviated(tl *Timeline, i int) bool {
	if i < 0 || i >= tl.Len() {
		return false
	}

	e := tl.At(i)
	cr := e.Get(VarCreatinine)
	base := e.Get(VarBaselineCreat)

	return cr.Valid && base.Valid && cr.Float64 >= base.Float64*akiRatio
}

// refineBaseline revises each snapshot's provisional baseline downward when
// a near-future snapshot proves the true minimum is lower: a baseline is
// never worse than the best value known within the span ahead.
func (c *Compiler) refineBaseline(tl *Timeline) {
	horizon := int64(baselineSpanDays) * 86400

	// future holds the creatinine of later snapshots, newest at the front,
	// pruned once they fall beyond the horizon of the snapshot under
	// refinement.
	var future []baselineSample

	for i := tl.Len() - 1; i >= 0; i-- {
		e := tl.At(i)
		t := e.Time.Abs()

		for len(future) > 0 && future[len(future)-1].t-t > horizon {
			future = future[:len(future)-1]
		}

		if base := e.Get(VarBaselineCreat); base.Valid {
			refined := base.Float64

			for _, f := range future {
				if f.v < refined {
					refined = f.v
				}
			}

			e.Values[VarBaselineCreat] = Number(refined)
		}

		if cr := e.Get(VarCreatinine); cr.Valid {
			future = append([]baselineSample{{t: t, v: cr.Float64}}, future...)
		}
	}
}
