package material

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/cycle-world/internal/composition"
)

// memRecorder captures lineage events for assertions.
type memRecorder struct {
	mu     sync.Mutex
	events []ResourceEvent
}

func (r *memRecorder) RecordResourceEvent(ev ResourceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *memRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func simpleComp(t *testing.T) *composition.Composition {
	t.Helper()
	c, err := composition.CreateFromMass(composition.CompMap{"U238": 1})
	require.NoError(t, err)
	return c
}

func TestTrackerRecordsLineageEvents(t *testing.T) {
	tr := NewTracker()
	rec := &memRecorder{}
	tr.SetRecorder(rec)

	m, err := Create(tr, 100, simpleComp(t))
	require.NoError(t, err)

	m2, err := m.ExtractQty(40)
	require.NoError(t, err)
	require.NoError(t, m.Absorb(m2))

	kinds := rec.kinds()
	require.Len(t, kinds, 4)
	assert.Equal(t, []EventKind{EventCreate, EventSplit, EventSplit, EventAbsorb}, kinds)

	// The child split names its parent; the absorb names the husk.
	assert.Equal(t, m.ID(), rec.events[1].Parent)
	assert.Equal(t, m2.ID(), rec.events[3].Parent)
}

func TestUntrackedMaterialsNeverRecorded(t *testing.T) {
	tr := NewTracker()
	rec := &memRecorder{}
	tr.SetRecorder(rec)

	m, err := CreateUntracked(tr, 10, simpleComp(t))
	require.NoError(t, err)
	_, err = m.ExtractQty(3)
	require.NoError(t, err)

	assert.Empty(t, rec.kinds())
	assert.Equal(t, 0, tr.Live())
}

func TestDestroyDeregisters(t *testing.T) {
	tr := NewTracker()
	m, err := Create(tr, 10, simpleComp(t))
	require.NoError(t, err)
	require.Equal(t, 1, tr.Live())

	m.Destroy()
	assert.Equal(t, 0, tr.Live())
	assert.False(t, m.Tracked())
}

func TestDecayAllSweepsOnlyTracked(t *testing.T) {
	composition.RegisterChain("Sw400", composition.Chain{Lambda: 0.3, Daughter: "Tw400", Branch: 1})
	c, err := composition.CreateFromAtom(composition.CompMap{"Sw400": 1})
	require.NoError(t, err)

	tr := NewTracker()
	tracked, err := Create(tr, 1, c)
	require.NoError(t, err)
	untracked, err := CreateUntracked(tr, 1, c)
	require.NoError(t, err)

	tr.DecayAll(5)

	assert.NotEqual(t, c.ID(), tracked.Comp().ID())
	assert.Equal(t, c.ID(), untracked.Comp().ID())
	assert.Equal(t, uint64(5), tr.Now())
}

func TestTotalQuantity(t *testing.T) {
	tr := NewTracker()
	_, err := Create(tr, 30, simpleComp(t))
	require.NoError(t, err)
	_, err = Create(tr, 12, simpleComp(t))
	require.NoError(t, err)

	assert.InDelta(t, 42, tr.TotalQuantity(), Eps)
}

func TestClockNeverRunsBackward(t *testing.T) {
	tr := NewTracker()
	tr.AdvanceTo(10)
	tr.AdvanceTo(4)
	assert.Equal(t, uint64(10), tr.Now())
}

func TestConcurrentCreateDuringSweep(t *testing.T) {
	c := simpleComp(t)
	tr := NewTracker()
	for i := 0; i < 100; i++ {
		_, err := Create(tr, 1, c)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for now := uint64(1); now <= 50; now++ {
			tr.DecayAll(now)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := Create(tr, 1, c)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.Equal(t, 300, tr.Live())
	assert.InDelta(t, 300, tr.TotalQuantity(), Eps)
}
