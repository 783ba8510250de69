// Package composition provides immutable nuclide composition vectors
// with normalization, arithmetic, and decay transforms.
package composition

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidComposition is returned when a composition map fails
// normalization: non-positive total, or a negative component.
var ErrInvalidComposition = errors.New("invalid composition")

// Nuclide identifies an isotope or chemical species, e.g. "U235", "Cs137".
type Nuclide string

// CompMap is a species → quantity mapping. Values are fractions after
// normalization, raw quantities before.
type CompMap map[Nuclide]float64

var nextID atomic.Uint64

// Composition is an immutable, normalized composition vector. Every
// Composition carries a process-unique id assigned at creation; two
// compositions are interchangeable only when their ids match, even if
// their numeric content is identical. This is the documented fast path
// for skipping recomputation on extract/absorb: callers must re-fetch
// a material's composition after any mutation.
type Composition struct {
	id   uint64
	mass CompMap // mass fractions, sum to 1
	atom CompMap // atom fractions, sum to 1
}

// CreateFromMass builds a Composition from a species → mass mapping.
// The map is normalized to mass fractions; atom fractions are derived
// from per-species atomic masses.
func CreateFromMass(v CompMap) (*Composition, error) {
	mass, err := normalized(v)
	if err != nil {
		return nil, err
	}

	atom := make(CompMap, len(mass))
	for nuc, f := range mass {
		atom[nuc] = f / AtomicMass(nuc)
	}
	atom, err = normalized(atom)
	if err != nil {
		return nil, err
	}

	return &Composition{id: nextID.Add(1), mass: mass, atom: atom}, nil
}

// CreateFromAtom builds a Composition from a species → atom-count
// mapping. The map is normalized to atom fractions; mass fractions are
// derived from per-species atomic masses.
func CreateFromAtom(v CompMap) (*Composition, error) {
	atom, err := normalized(v)
	if err != nil {
		return nil, err
	}

	mass := make(CompMap, len(atom))
	for nuc, f := range atom {
		mass[nuc] = f * AtomicMass(nuc)
	}
	mass, err = normalized(mass)
	if err != nil {
		return nil, err
	}

	return &Composition{id: nextID.Add(1), mass: mass, atom: atom}, nil
}

// normalized validates a raw composition map and scales it to sum to 1.
func normalized(v CompMap) (CompMap, error) {
	total := 0.0
	for nuc, qty := range v {
		if qty < 0 {
			return nil, fmt.Errorf("%w: negative quantity %v for %s", ErrInvalidComposition, qty, nuc)
		}
		total += qty
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: non-positive total %v", ErrInvalidComposition, total)
	}

	out := make(CompMap, len(v))
	for nuc, qty := range v {
		if qty == 0 {
			continue
		}
		out[nuc] = qty / total
	}
	return out, nil
}

// ID returns the process-unique identity of this composition.
func (c *Composition) ID() uint64 {
	return c.id
}

// Mass returns a copy of the mass-fraction view.
func (c *Composition) Mass() CompMap {
	out := make(CompMap, len(c.mass))
	for nuc, f := range c.mass {
		out[nuc] = f
	}
	return out
}

// Atom returns a copy of the atom-fraction view.
func (c *Composition) Atom() CompMap {
	out := make(CompMap, len(c.atom))
	for nuc, f := range c.atom {
		out[nuc] = f
	}
	return out
}

// MassFraction returns the mass fraction of a single species.
func (c *Composition) MassFraction(nuc Nuclide) float64 {
	return c.mass[nuc]
}
