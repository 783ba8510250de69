// Package material provides the tracked resource object: a mutable
// quantity bound to an immutable composition, with conservation-safe
// split, merge, transmute, and decay operations.
package material

import (
	"errors"
	"fmt"

	"github.com/talgya/cycle-world/internal/composition"
)

// ErrValue is returned when an operation would violate a quantity
// invariant: negative quantity at creation, or extracting more than is
// available. Never silently clamped.
var ErrValue = errors.New("value error")

// Eps is the quantity epsilon. Residue within Eps of zero left behind
// by repeated extraction compares as zero; conservation checks use the
// same tolerance. Matches the kilogram-scale epsilon of the recorder
// schema.
const Eps = 1e-6

// ResourceID is the stable lineage identity of a material. It is
// assigned once at creation and never changes across quantity or
// composition mutations.
type ResourceID uint64

// Material is a physical amount of substance. Quantity is mutable
// under conservation; the composition is replaced wholesale, never
// edited in place.
type Material struct {
	id        ResourceID
	qty       float64
	comp      *composition.Composition
	prevDecay uint64 // last simulated time the decay integral was applied
	tracked   bool
	tr        *Tracker
}

// Create returns a new tracked Material registered with tr, eligible
// for the global decay sweep and lineage recording.
func Create(tr *Tracker, qty float64, c *composition.Composition) (*Material, error) {
	m, err := newMaterial(tr, qty, c)
	if err != nil {
		return nil, err
	}
	tr.track(m)
	tr.record(m, 0, EventCreate)
	return m, nil
}

// CreateUntracked returns a new Material excluded from the global
// decay sweep and from lineage recording. Used for derived and scratch
// copies.
func CreateUntracked(tr *Tracker, qty float64, c *composition.Composition) (*Material, error) {
	return newMaterial(tr, qty, c)
}

func newMaterial(tr *Tracker, qty float64, c *composition.Composition) (*Material, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: negative quantity %v at creation", ErrValue, qty)
	}
	return &Material{
		id:        tr.nextID(),
		qty:       qty,
		comp:      c,
		prevDecay: tr.Now(),
		tr:        tr,
	}, nil
}

// ID returns the material's stable lineage identity.
func (m *Material) ID() ResourceID { return m.id }

// Quantity returns the current quantity.
func (m *Material) Quantity() float64 { return m.qty }

// Comp returns the current composition. Callers holding a composition
// across a mutation must re-fetch it: identity equality is what skips
// recomputation on extract/absorb.
func (m *Material) Comp() *composition.Composition { return m.comp }

// Units returns the quantity units.
func (m *Material) Units() string { return "kg" }

// Tracked reports whether the material is registered for the global
// decay sweep and lineage recording.
func (m *Material) Tracked() bool { return m.tracked }

// Clone returns a deep value copy with a new lineage identity, always
// untracked so scratch copies do not pollute lineage history.
func (m *Material) Clone() *Material {
	return &Material{
		id:        m.tr.nextID(),
		qty:       m.qty,
		comp:      m.comp,
		prevDecay: m.prevDecay,
		tr:        m.tr,
	}
}

// ExtractQty splits off qty of the same composition as m, returning it
// as a new tracked Material registered as a child split of m.
func (m *Material) ExtractQty(qty float64) (*Material, error) {
	return m.ExtractComp(qty, m.comp, 0)
}

// ExtractComp splits off qty with composition c. If c differs from the
// current composition (by identity), the remaining composition is
// recomputed by mass-normalizing both sides to their quantities,
// subtracting, and zeroing entries below threshold. Fails with ErrValue
// if qty exceeds the current quantity, leaving m unmodified.
func (m *Material) ExtractComp(qty float64, c *composition.Composition, threshold float64) (*Material, error) {
	if qty < 0 || qty > m.qty+Eps {
		return nil, fmt.Errorf("%w: extracting %v from %v would cause negative quantity", ErrValue, qty, m.qty)
	}

	if m.comp.ID() != c.ID() {
		v := m.comp.Mass()
		composition.Normalize(v, m.qty)
		otherv := c.Mass()
		composition.Normalize(otherv, qty)
		newv := composition.Sub(v, otherv)
		composition.ApplyThreshold(newv, threshold)
		// A full-quantity extraction leaves no residual; the zeroed
		// parent keeps its prior composition.
		residual := false
		for _, q := range newv {
			if q != 0 {
				residual = true
				break
			}
		}
		if residual {
			newc, err := composition.CreateFromMass(newv)
			if err != nil {
				return nil, fmt.Errorf("extract %v of differing composition: %w", qty, err)
			}
			m.comp = newc
		}
	}

	m.qty -= qty
	if m.qty < Eps {
		m.qty = 0
	}

	other, err := newMaterial(m.tr, qty, c)
	if err != nil {
		return nil, err
	}
	other.prevDecay = m.prevDecay
	// A split inherits the parent's tracking state: children of scratch
	// clones stay out of the sweep and the lineage record.
	if m.tracked {
		m.tr.track(other)
		m.tr.record(other, m.id, EventSplit)
		m.tr.record(m, 0, EventSplit)
	}

	return other, nil
}

// Absorb merges other into m. Differing compositions are combined by
// quantity-weighted mass vectors; identical ones skip the recompute.
// Afterward other holds zero quantity — it is not destroyed, and
// callers must not reuse it as a live resource.
func (m *Material) Absorb(other *Material) error {
	if m.comp.ID() != other.comp.ID() {
		v := m.comp.Mass()
		composition.Normalize(v, m.qty)
		otherv := other.comp.Mass()
		composition.Normalize(otherv, other.qty)
		newc, err := composition.CreateFromMass(composition.Add(v, otherv))
		if err != nil {
			return fmt.Errorf("absorb %v into %v: %w", other.qty, m.qty, err)
		}
		m.comp = newc
	}

	m.qty += other.qty
	other.qty = 0

	m.tr.record(m, other.id, EventAbsorb)
	return nil
}

// Transmute replaces the composition wholesale, leaving the quantity
// unchanged. Recorded as an external modification, distinct from
// split/merge lineage events. Used for non-decay composition changes
// such as reprocessing.
func (m *Material) Transmute(c *composition.Composition) {
	m.comp = c
	m.tr.record(m, 0, EventTransmute)
}

// Decay advances the material to now, applying the decay transform for
// the elapsed interval. A now at or before the previous decay
// timestamp is a no-op, so a material decays at most once per unique
// timestamp and repeated sweeps never double-apply.
func (m *Material) Decay(now uint64) {
	if now <= m.prevDecay {
		return
	}
	dt := now - m.prevDecay
	m.prevDecay = now
	m.comp = m.comp.Decay(dt)
	m.tr.record(m, 0, EventDecay)
}

// Destroy deregisters the material from its tracker. The object must
// not be used afterward.
func (m *Material) Destroy() {
	m.tr.untrack(m)
}
