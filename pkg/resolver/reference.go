package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/clinstream/tlc/pkg/window"
)

// AnchorMarker is the in-bracket prefix that anchors an offset window to the
// most recently matched time code instead of the current snapshot.
const AnchorMarker = '~'

// Spec is one resolved variable reference. The first N entries of an
// expanded list are always the caller's original references; transitive
// dependencies of derived variables follow.
type Spec struct {
	Stem     string
	OffStart int64
	OffStop  int64

	// AnchorLast anchors the offset window to the caller-supplied
	// last-matched time code rather than the snapshot under inspection.
	AnchorLast bool

	HasWindow  bool
	WindowKind window.Kind
	WindowSpan int

	// DaysSinceObs marks the special catalog variable that the compiler
	// computes directly instead of binding a window function.
	DaysSinceObs bool

	// Desc references (never owns) the catalog descriptor for Stem.
	Desc *catalog.Descriptor
}

// PointReference reports whether the spec addresses a single time code.
func (s *Spec) PointReference() bool {
	return s.OffStart == s.OffStop
}

// Key is the snapshot key this spec's values are stored and looked up under.
// A window-bound spec gets its own key so two functions over the same base
// variable never share rolling state.
func (s *Spec) Key() string {
	if !s.HasWindow {
		return s.Stem
	}

	return s.Stem + "." + window.Format(s.WindowKind, s.WindowSpan)
}

// String re-serializes the spec into reference form; the inverse of Parse.
func (s *Spec) String() string {
	var b strings.Builder

	b.WriteString(s.Stem)

	if s.OffStart != 0 || s.OffStop != 0 || s.AnchorLast {
		b.WriteByte('[')

		if s.AnchorLast {
			b.WriteByte(AnchorMarker)
		}

		if s.PointReference() {
			fmt.Fprintf(&b, "%d", s.OffStart)
		} else {
			fmt.Fprintf(&b, "%d:%d", s.OffStart, s.OffStop)
		}

		b.WriteByte(']')
	}

	if s.HasWindow {
		b.WriteByte('.')
		b.WriteString(window.Format(s.WindowKind, s.WindowSpan))
	}

	return b.String()
}

// Parse splits a variable reference string into its parts without consulting
// the catalog. Grammar:
//
//	name
//	name[offset]
//	name[start:stop]
//	name[~start:stop]   (anchor to the most recent match)
//	name.func7          (window function suffix, span in days)
//
// Offsets are integers in the timeline's time unit and may be combined with
// a window suffix.
func Parse(ref string) (Spec, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Spec{}, ErrEmptyReference
	}

	spec := Spec{}
	rest := ref

	// Window suffix: the portion after the last dot that follows any bracket.
	if dot := strings.LastIndexByte(rest, '.'); dot > strings.IndexByte(rest, ']') && dot >= 0 {
		fn := rest[dot+1:]

		kind, span, err := window.Parse(fn)
		if err != nil {
			return Spec{}, err
		}

		spec.HasWindow = true
		spec.WindowKind = kind
		spec.WindowSpan = span
		rest = rest[:dot]
	}

	if open := strings.IndexByte(rest, '['); open >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return Spec{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
		}

		inner := rest[open+1 : len(rest)-1]
		rest = rest[:open]

		if strings.HasPrefix(inner, string(AnchorMarker)) {
			spec.AnchorLast = true
			inner = inner[1:]
		}

		start, stop, err := parseOffsets(inner)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %q", err, ref)
		}

		spec.OffStart, spec.OffStop = start, stop
	}

	if rest == "" || strings.ContainsAny(rest, "[]:~") {
		return Spec{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	spec.Stem = rest
	if spec.Stem == catalog.DaysSinceObs {
		spec.DaysSinceObs = true
	}

	return spec, nil
}

func parseOffsets(inner string) (start, stop int64, err error) {
	if inner == "" {
		return 0, 0, ErrMalformedReference
	}

	if colon := strings.IndexByte(inner, ':'); colon >= 0 {
		start, err = strconv.ParseInt(inner[:colon], 10, 64)
		if err != nil {
			return 0, 0, ErrBadOffset
		}

		stop, err = strconv.ParseInt(inner[colon+1:], 10, 64)
		if err != nil {
			return 0, 0, ErrBadOffset
		}

		return start, stop, nil
	}

	start, err = strconv.ParseInt(inner, 10, 64)
	if err != nil {
		return 0, 0, ErrBadOffset
	}

	return start, start, nil
}
