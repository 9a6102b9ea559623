// Package window implements the rolling time-window operator library used by
// the timeline compiler and by ad-hoc queries. Every operator consumes a
// strictly time-ordered stream of samples and emits one derived scalar per
// sample, or reports that it has insufficient history.
package window

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SecondsPerDay is the number of intra-day seconds in one timeline day.
const SecondsPerDay = 86400

var (
	// ErrUnknownFunction is returned when a window function name is not recognized
	ErrUnknownFunction = errors.New("unknown window function")
	// ErrMissingSpan is returned when a window function reference carries no span suffix
	ErrMissingSpan = errors.New("window function reference is missing its span suffix")
	// ErrInvalidSpan is returned when a window span is zero or negative
	ErrInvalidSpan = errors.New("window span must be positive")
)

// Kind identifies one rolling window function.
type Kind int

// Window function kinds
const (
	KindDelta Kind = iota
	KindRate
	KindAccel
	KindSum
	KindAvg
	KindPctChange
	KindRange
	KindRelRange
	KindStability
	KindBollUpper
	KindBollLower
	KindRSI
	KindVolatility
	KindAbove
	KindBelow
)

//nolint:gochecknoglobals // static name table for Kind parsing
var kindNames = map[Kind]string{
	KindDelta:      "delta",
	KindRate:       "rate",
	KindAccel:      "accel",
	KindSum:        "sum",
	KindAvg:        "avg",
	KindPctChange:  "pct",
	KindRange:      "range",
	KindRelRange:   "relrange",
	KindStability:  "stable",
	KindBollUpper:  "bollup",
	KindBollLower:  "bolllow",
	KindRSI:        "rsi",
	KindVolatility: "vol",
	KindAbove:      "above",
	KindBelow:      "below",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Parse splits a window function reference such as "rate7" or "avg30" into
// its kind and span in days. Parsing happens once, at resolution time; the
// hot path never compares strings.
func Parse(ref string) (Kind, int, error) {
	split := len(ref)
	for split > 0 && ref[split-1] >= '0' && ref[split-1] <= '9' {
		split--
	}

	name := ref[:split]
	digits := ref[split:]

	var kind Kind

	found := false

	for k, n := range kindNames {
		if n == name {
			kind = k
			found = true

			break
		}
	}

	if !found {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFunction, strings.TrimSpace(name))
	}

	if digits == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrMissingSpan, ref)
	}

	span, err := strconv.Atoi(digits)
	if err != nil || span <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSpan, ref)
	}

	return kind, span, nil
}

// Format renders a (kind, span) pair back into its reference form, the
// inverse of Parse.
func Format(kind Kind, spanDays int) string {
	return fmt.Sprintf("%s%d", kind, spanDays)
}

// Operator is one resettable rolling window function instance. Samples must
// arrive in non-decreasing time order. Next returns ok=false when the
// operator has insufficient history or the computation would divide by zero.
type Operator interface {
	Kind() Kind
	SpanDays() int
	Reset()
	Next(value float64, day, sec int64) (float64, bool)
}

// Option configures an operator at construction time.
type Option func(*options)

type options struct {
	threshold float64
}

// WithThreshold sets the fixed threshold used by the stability and
// threshold-crossing operators.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// defaultStabilityThreshold is the absolute range below which a variable is
// considered stable when no explicit threshold is configured.
const defaultStabilityThreshold = 0.5

// New builds an operator of the given kind over a span of whole days.
func New(kind Kind, spanDays int, opts ...Option) (Operator, error) {
	if spanDays <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpan, spanDays)
	}

	o := options{threshold: defaultStabilityThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	buf := newBuffer(kind, spanDays)

	switch kind {
	case KindDelta:
		return &deltaOp{buffer: buf}, nil
	case KindRate:
		return &rateOp{buffer: buf}, nil
	case KindAccel:
		return &accelOp{buffer: buf}, nil
	case KindSum:
		return &sumOp{buffer: buf}, nil
	case KindAvg:
		return &avgOp{buffer: buf}, nil
	case KindPctChange:
		return &pctChangeOp{buffer: buf}, nil
	case KindRange:
		return &rangeOp{buffer: buf}, nil
	case KindRelRange:
		return &rangeOp{buffer: buf, relative: true}, nil
	case KindStability:
		return &stabilityOp{buffer: buf, threshold: o.threshold}, nil
	case KindBollUpper:
		return &bollingerOp{buffer: buf, upper: true}, nil
	case KindBollLower:
		return &bollingerOp{buffer: buf}, nil
	case KindRSI:
		return &rsiOp{buffer: buf}, nil
	case KindVolatility:
		return &volatilityOp{buffer: buf}, nil
	case KindAbove:
		return &crossingOp{buffer: buf, threshold: o.threshold, above: true}, nil
	case KindBelow:
		return &crossingOp{buffer: buf, threshold: o.threshold}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFunction, int(kind))
	}
}

// MustNew is New for statically known kinds; it panics on error and is only
// used from init-time tables and tests.
func MustNew(kind Kind, spanDays int, opts ...Option) Operator {
	op, err := New(kind, spanDays, opts...)
	if err != nil {
		panic(err)
	}

	return op
}
