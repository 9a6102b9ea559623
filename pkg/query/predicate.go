package query

import (
	"errors"
	"fmt"
	"math"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/clinstream/tlc/pkg/compiler"
	"github.com/clinstream/tlc/pkg/resolver"
)

// ErrUnknownOperator is returned for a comparison operator outside the
// supported set.
var ErrUnknownOperator = errors.New("unknown comparison operator")

// Op is a row-filter comparison operator.
type Op int

// Comparison operators
const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

//nolint:gochecknoglobals // static name table for Op parsing
var opNames = map[string]Op{
	"=":  OpEq,
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (o Op) String() string {
	for name, v := range opNames {
		if v == o && name != "==" {
			return name
		}
	}

	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOp parses a comparison operator token.
func ParseOp(s string) (Op, error) {
	op, ok := opNames[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}

	return op, nil
}

// Predicate is one row filter: a resolved variable compared against a fixed
// threshold. A snapshot missing the variable never matches.
type Predicate struct {
	Spec      resolver.Spec
	Op        Op
	Threshold float64
}

// Matches evaluates the predicate against one snapshot. Comparison is
// type-aware: boolean and integer variables compare on rounded values so a
// stored 1.0 flag matches an integer threshold exactly.
func (p *Predicate) Matches(e *compiler.Entry) bool {
	v := e.Get(p.Spec.Key())
	if !v.Valid {
		return false
	}

	have, want := v.Float64, p.Threshold

	if p.Spec.Desc != nil && p.Spec.Desc.Type != catalog.TypeFloat {
		have = math.Round(have)
		want = math.Round(want)
	}

	switch p.Op {
	case OpEq:
		return have == want
	case OpNe:
		return have != want
	case OpLt:
		return have < want
	case OpLe:
		return have <= want
	case OpGt:
		return have > want
	case OpGe:
		return have >= want
	default:
		return false
	}
}
