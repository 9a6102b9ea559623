// Package catalog loads and serves the variable catalog: the read-only,
// name-keyed set of variable descriptors shared by the resolver, the
// compiler, and the query engine. The catalog is constructed once and never
// mutated, so it is safe to share across workers without synchronization.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/heimdalr/dag"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownVariable is returned when a name is not in the catalog
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrDuplicateVariable is returned when a catalog file declares a name twice
	ErrDuplicateVariable = errors.New("duplicate variable")
	// ErrMissingDependency is returned when a derived variable depends on an undeclared name
	ErrMissingDependency = errors.New("derived variable depends on undeclared variable")
	// ErrDependencyCycle is returned when the declared dependencies are cyclic
	ErrDependencyCycle = errors.New("dependency cycle")
	// ErrInvalidRange is returned when a descriptor's min exceeds its max
	ErrInvalidRange = errors.New("variable min exceeds max")
	// ErrInvalidType is returned for an unrecognized variable type name
	ErrInvalidType = errors.New("invalid variable type")
	// ErrInvalidPolicy is returned for an unrecognized carry-forward policy name
	ErrInvalidPolicy = errors.New("invalid carry-forward policy")
	// ErrEmptyCatalog is returned when a catalog file declares no variables
	ErrEmptyCatalog = errors.New("catalog declares no variables")
)

// DaysSinceObs is the catalog variable holding the number of days since the
// previous observation. The resolver special-cases it: it is flagged on the
// resolved spec instead of being bound to a window function.
const DaysSinceObs = "days_since_obs"

// Config is the on-disk shape of a catalog file.
type Config struct {
	Variables []Descriptor `yaml:"variables"`
}

// Validate checks the configuration before catalog construction.
func (c *Config) Validate() error {
	if len(c.Variables) == 0 {
		return ErrEmptyCatalog
	}

	return nil
}

// Catalog is the immutable variable catalog.
type Catalog struct {
	descriptors map[string]*Descriptor
	ordered     []string
	graph       *dag.DAG
}

// Load reads a catalog yaml file and constructs the catalog.
func Load(path string) (*Catalog, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path) //nolint:gosec // operator-provided catalog path
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return New(cfg.Variables)
}

// New constructs a catalog from descriptors, validating ranges, dependency
// existence, and acyclicity of the declared dependency graph.
func New(descs []Descriptor) (*Catalog, error) {
	c := &Catalog{
		descriptors: make(map[string]*Descriptor, len(descs)),
		ordered:     make([]string, 0, len(descs)),
		graph:       dag.NewDAG(),
	}

	for i := range descs {
		d := &descs[i]

		if _, exists := c.descriptors[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVariable, d.Name)
		}

		if d.Min > d.Max {
			return nil, fmt.Errorf("%w: %s (%g > %g)", ErrInvalidRange, d.Name, d.Min, d.Max)
		}

		c.descriptors[d.Name] = d
		c.ordered = append(c.ordered, d.Name)

		if err := c.graph.AddVertexByID(d.Name, d.Name); err != nil {
			return nil, fmt.Errorf("failed to add variable %s: %w", d.Name, err)
		}
	}

	// Edges run dependency → dependent; AddEdge rejects cycles.
	for _, name := range c.ordered {
		d := c.descriptors[name]
		for _, dep := range d.Dependencies {
			if _, exists := c.descriptors[dep]; !exists {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrMissingDependency, name, dep)
			}

			if err := c.graph.AddEdge(dep, name); err != nil {
				return nil, fmt.Errorf("%w: %s → %s: %v", ErrDependencyCycle, dep, name, err)
			}
		}
	}

	return c, nil
}

// Lookup returns the descriptor for a variable name.
func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.descriptors[name]

	return d, ok
}

// Names returns all variable names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)

	return out
}

// Len returns the number of catalog variables.
func (c *Catalog) Len() int { return len(c.ordered) }

// Dependencies returns the direct dependencies of a variable in their
// declared order, or nil for an unknown or non-derived variable.
func (c *Catalog) Dependencies(name string) []string {
	d, ok := c.descriptors[name]
	if !ok {
		return nil
	}

	return d.Dependencies
}

// AllDependencies returns every transitive dependency of a variable,
// unordered. Order-sensitive expansion belongs to the resolver; this is
// used for validation and reporting.
func (c *Catalog) AllDependencies(name string) []string {
	ancestors, err := c.graph.GetAncestors(name)
	if err != nil {
		return nil
	}

	out := make([]string, 0, len(ancestors))
	for id := range ancestors {
		out = append(out, id)
	}

	return out
}
