package material

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/talgya/cycle-world/internal/composition"
)

// EventKind classifies a lineage event emitted to the recorder hook.
type EventKind string

const (
	EventCreate    EventKind = "create"
	EventSplit     EventKind = "split"
	EventAbsorb    EventKind = "absorb"
	EventTransmute EventKind = "transmute"
	EventDecay     EventKind = "decay"
)

// ResourceEvent is the fact emitted after every lineage-changing
// operation: enough state for an external recorder to persist a
// structured record. Parent is zero when the event has no parent
// resource.
type ResourceEvent struct {
	Resource    ResourceID
	Parent      ResourceID
	Time        uint64
	Quantity    float64
	Composition *composition.Composition
	Kind        EventKind
}

// Recorder receives lineage events synchronously. The tracker never
// awaits or retries recording; persistence is the caller's concern.
type Recorder interface {
	RecordResourceEvent(ev ResourceEvent)
}

// Tracker is the process-wide registry of live tracked materials. It
// hands out stable lineage ids, holds the simulated clock used to
// timestamp events and new materials, and drives the global decay
// sweep. Live entries are kept in a mutex-guarded map; the sweep
// snapshots the entries before iterating, so construction on other
// goroutines during a sweep cannot corrupt the traversal.
type Tracker struct {
	mu   sync.RWMutex
	live map[ResourceID]*Material

	ids atomic.Uint64
	now atomic.Uint64

	rec Recorder
}

// NewTracker returns an empty tracker with no recorder attached.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[ResourceID]*Material)}
}

var (
	defaultOnce    sync.Once
	defaultTracker *Tracker
)

// Default returns the process-wide tracker, created on first use.
func Default() *Tracker {
	defaultOnce.Do(func() { defaultTracker = NewTracker() })
	return defaultTracker
}

// SetRecorder attaches the recorder hook receiving lineage events.
// A nil recorder disables recording.
func (tr *Tracker) SetRecorder(rec Recorder) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.rec = rec
}

// Now returns the tracker's current simulated time.
func (tr *Tracker) Now() uint64 { return tr.now.Load() }

// AdvanceTo moves the simulated clock forward. Earlier times are
// ignored; the clock never runs backward.
func (tr *Tracker) AdvanceTo(now uint64) {
	for {
		cur := tr.now.Load()
		if now <= cur || tr.now.CompareAndSwap(cur, now) {
			return
		}
	}
}

// Live returns the number of live tracked materials.
func (tr *Tracker) Live() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.live)
}

// TotalQuantity sums the quantity of all live tracked materials.
func (tr *Tracker) TotalQuantity() float64 {
	total := 0.0
	for _, m := range tr.snapshot() {
		total += m.Quantity()
	}
	return total
}

// DecayAll advances the clock to now and decays every live tracked
// material. The external time driver calls this once per tick, before
// exchange resolution.
func (tr *Tracker) DecayAll(now uint64) {
	tr.AdvanceTo(now)
	for _, m := range tr.snapshot() {
		m.Decay(now)
	}
}

// snapshot copies the live set under the read lock so iteration
// tolerates concurrent insertions. Sorted by lineage id so sweep order
// and the recorded event stream are reproducible.
func (tr *Tracker) snapshot() []*Material {
	tr.mu.RLock()
	out := make([]*Material, 0, len(tr.live))
	for _, m := range tr.live {
		out = append(out, m)
	}
	tr.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Material) int {
		return cmp.Compare(a.id, b.id)
	})
	return out
}

func (tr *Tracker) nextID() ResourceID {
	return ResourceID(tr.ids.Add(1))
}

func (tr *Tracker) track(m *Material) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	m.tracked = true
	tr.live[m.id] = m
}

func (tr *Tracker) untrack(m *Material) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	m.tracked = false
	delete(tr.live, m.id)
}

// record emits a lineage event for tracked materials. Untracked
// materials never reach the recorder.
func (tr *Tracker) record(m *Material, parent ResourceID, kind EventKind) {
	if !m.tracked {
		return
	}
	tr.mu.RLock()
	rec := tr.rec
	tr.mu.RUnlock()
	if rec == nil {
		return
	}
	rec.RecordResourceEvent(ResourceEvent{
		Resource:    m.id,
		Parent:      parent,
		Time:        tr.Now(),
		Quantity:    m.qty,
		Composition: m.comp,
		Kind:        kind,
	})
}
