// Package resolver parses variable reference strings and expands a caller's
// requested variable set with every transitive dependency needed to compute
// its derived variables. Resolution happens once, before compilation; an
// unknown variable or window function name is a fatal configuration error.
package resolver

import (
	"errors"
	"fmt"

	"github.com/clinstream/tlc/pkg/catalog"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyReference is returned for a blank variable reference
	ErrEmptyReference = errors.New("empty variable reference")
	// ErrMalformedReference is returned when a reference does not match the grammar
	ErrMalformedReference = errors.New("malformed variable reference")
	// ErrBadOffset is returned when a bracketed offset is not an integer
	ErrBadOffset = errors.New("offset is not an integer")
)

// Resolver expands variable references against a catalog.
type Resolver struct {
	log logrus.FieldLogger
	cat *catalog.Catalog
}

// New creates a resolver over the given catalog.
func New(log logrus.FieldLogger, cat *catalog.Catalog) *Resolver {
	return &Resolver{
		log: log.WithField("component", "resolver"),
		cat: cat,
	}
}

// Resolve parses every reference, binds it to its catalog descriptor, and
// appends the transitive dependencies of every derived variable exactly once.
// Order is preserved: the first len(refs) entries are the caller's original
// references. Deduplication is by name stem, so a variable already present
// via an offset reference is not appended again as a dependency; a distinct
// window function over an already-present stem still gets its own entry
// because it needs independent rolling state.
func (r *Resolver) Resolve(refs []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(refs))
	present := make(map[string]bool, len(refs))

	for _, ref := range refs {
		spec, err := Parse(ref)
		if err != nil {
			return nil, err
		}

		desc, ok := r.cat.Lookup(spec.Stem)
		if !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownVariable, spec.Stem)
		}

		spec.Desc = desc
		specs = append(specs, spec)
		present[spec.Stem] = true
	}

	// Transitive dependency expansion, breadth-first in request order. The
	// catalog guarantees the dependency graph is acyclic.
	for i := 0; i < len(specs); i++ {
		desc := specs[i].Desc
		if !desc.Derived {
			continue
		}

		for _, dep := range desc.Dependencies {
			if present[dep] {
				continue
			}

			depDesc, ok := r.cat.Lookup(dep)
			if !ok {
				return nil, fmt.Errorf("%w: %q (dependency of %q)", catalog.ErrUnknownVariable, dep, desc.Name)
			}

			spec := Spec{Stem: dep, Desc: depDesc}
			if dep == catalog.DaysSinceObs {
				spec.DaysSinceObs = true
			}

			specs = append(specs, spec)
			present[dep] = true
		}
	}

	r.log.WithFields(logrus.Fields{
		"requested": len(refs),
		"expanded":  len(specs),
	}).Debug("Resolved variable set")

	return specs, nil
}

// Keys returns the snapshot keys of a resolved spec list, in order.
func Keys(specs []Spec) []string {
	keys := make([]string, len(specs))
	for i := range specs {
		keys[i] = specs[i].Key()
	}

	return keys
}
