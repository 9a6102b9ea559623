package compiler

import (
	"fmt"

	"github.com/clinstream/tlc/pkg/window"
)

// Granularity selects the time unit snapshots are keyed by.
type Granularity int

// Snapshot time granularities
const (
	// GranularityDay keys snapshots by whole day-of-life; intra-day seconds
	// are truncated and same-day nodes collapse into one snapshot.
	GranularityDay Granularity = iota
	// GranularitySecond keys snapshots by day plus intra-day seconds.
	GranularitySecond
)

// TimeCode is one snapshot's position in time: an absolute day-of-life count
// plus intra-day seconds. Day counts are de-identified but support exact age
// and interval arithmetic.
type TimeCode struct {
	Day int64
	Sec int64
}

// Abs returns the time code as absolute seconds since day zero.
func (t TimeCode) Abs() int64 {
	return t.Day*window.SecondsPerDay + t.Sec
}

// Before reports whether t precedes other.
func (t TimeCode) Before(other TimeCode) bool {
	return t.Abs() < other.Abs()
}

func (t TimeCode) String() string {
	return fmt.Sprintf("%d:%d", t.Day, t.Sec)
}

// Value is one variable's numeric value in a snapshot. The zero Value is
// invalid, so a missing map entry and a not-yet-known value read the same.
// Arithmetic on a Value must check Valid first; there is no sentinel number
// overloading the real range.
type Value struct {
	Float64 float64
	Valid   bool
}

// Number wraps a known float as a valid Value.
func Number(f float64) Value {
	return Value{Float64: f, Valid: true}
}

// Flag wraps a boolean as a 0/1 Value.
func Flag(b bool) Value {
	if b {
		return Value{Float64: 1, Valid: true}
	}

	return Value{Valid: true}
}

// True reports whether the value is valid and non-zero.
func (v Value) True() bool {
	return v.Valid && v.Float64 != 0
}

// Entry is one time-indexed snapshot: the variable values known at its time
// code plus the raw nodes whose timestamps collapsed into it.
type Entry struct {
	Time   TimeCode
	Values map[string]Value
	Events []Node
}

// Get returns the value stored under a snapshot key.
func (e *Entry) Get(key string) Value {
	return e.Values[key]
}

// hasDiagnosis reports whether any collapsed node is diagnosis-class, which
// feeds the same-day coalescing rule.
func (e *Entry) hasDiagnosis() bool {
	for i := range e.Events {
		if e.Events[i].Class == ClassDiagnosis {
			return true
		}
	}

	return false
}

// Timeline is one compiled subject record: an ordered array of snapshots
// with strictly non-decreasing time codes. A Timeline is owned by one
// compilation run and is never shared between runs.
type Timeline struct {
	SubjectID string
	Gender    string
	Weight    float64

	Entries []*Entry

	// StageOnsets records the day each disease-stage threshold was first
	// durably crossed; premature dates canceled by later, healthier
	// observations are not retained.
	StageOnsets map[int]int64
}

// Len returns the number of snapshots.
func (tl *Timeline) Len() int { return len(tl.Entries) }

// At returns the snapshot at index i.
func (tl *Timeline) At(i int) *Entry { return tl.Entries[i] }

// Last returns the final snapshot, or nil for an empty timeline.
func (tl *Timeline) Last() *Entry {
	if len(tl.Entries) == 0 {
		return nil
	}

	return tl.Entries[len(tl.Entries)-1]
}
