package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Type is the numeric type of a catalog variable.
type Type int

// Variable data types
const (
	TypeFloat Type = iota
	TypeInt
	TypeBool
	TypeStringList
)

//nolint:gochecknoglobals // static name table for Type parsing
var typeNames = map[string]Type{
	"float":      TypeFloat,
	"int":        TypeInt,
	"bool":       TypeBool,
	"stringlist": TypeStringList,
}

func (t Type) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}

	return fmt.Sprintf("type(%d)", int(t))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, ok := typeNames[raw]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}

	*t = parsed

	return nil
}

// Policy is the carry-forward rule applied to a variable at the start of
// every new snapshot.
type Policy int

// Carry-forward policies
const (
	// PolicyCarry keeps the previous snapshot's value.
	PolicyCarry Policy = iota
	// PolicyZero resets the value to zero each period.
	PolicyZero
	// PolicyInvalidate marks the value as unknown each period.
	PolicyInvalidate
	// PolicyClear empties list-valued variables each period.
	PolicyClear
	// PolicyRemove drops the variable from the snapshot entirely.
	PolicyRemove
	// PolicyUnchanged leaves whatever the clone produced untouched.
	PolicyUnchanged
)

//nolint:gochecknoglobals // static name table for Policy parsing
var policyNames = map[string]Policy{
	"carry":      PolicyCarry,
	"zero":       PolicyZero,
	"invalidate": PolicyInvalidate,
	"clear":      PolicyClear,
	"remove":     PolicyRemove,
	"unchanged":  PolicyUnchanged,
}

func (p Policy) String() string {
	for name, v := range policyNames {
		if v == p {
			return name
		}
	}

	return fmt.Sprintf("policy(%d)", int(p))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, ok := policyNames[raw]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}

	*p = parsed

	return nil
}

// Descriptor is the catalog metadata for one variable. Immutable after the
// catalog is loaded; shared by reference across workers without locking.
type Descriptor struct {
	Name         string   `yaml:"name"`
	Type         Type     `yaml:"type"`
	Min          float64  `yaml:"min"`
	Max          float64  `yaml:"max"`
	Policy       Policy   `yaml:"policy"`
	Derived      bool     `yaml:"derived,omitempty"`
	Dependencies []string `yaml:"depends,omitempty"`

	// MaxZeroDays is the zero-timeout policy: a value that has been
	// continuously zero for longer than this many days is treated as absent
	// by the query engine. Zero disables the policy.
	MaxZeroDays int `yaml:"maxZeroDays,omitempty"`
}

// InRange reports whether v falls inside the descriptor's valid range.
func (d *Descriptor) InRange(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// Clip clamps v to the descriptor's valid range.
func (d *Descriptor) Clip(v float64) float64 {
	if v < d.Min {
		return d.Min
	}

	if v > d.Max {
		return d.Max
	}

	return v
}
