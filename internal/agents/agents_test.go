package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/material"
)

func natU(t *testing.T) *composition.Composition {
	t.Helper()
	c, err := composition.CreateFromMass(composition.CompMap{
		"U235": 0.00711,
		"U238": 0.99289,
	})
	require.NoError(t, err)
	return c
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef(":cycle:Source")
	require.NoError(t, err)
	assert.Equal(t, Ref{Lib: "cycle", Agent: "Source", Alias: "Source"}, ref)
	assert.Equal(t, "cycle:Source", ref.SpecID())

	ref, err = ParseRef("/opt/agents:mylib:Reactor")
	require.NoError(t, err)
	assert.Equal(t, "/opt/agents", ref.Path)
	assert.Equal(t, "mylib:Reactor", ref.SpecID())
	assert.Equal(t, "/opt/agents:mylib:Reactor", ref.String())

	ref, err = ParseRef("cycle:Sink")
	require.NoError(t, err)
	assert.Equal(t, "cycle:Sink", ref.SpecID())
}

func TestParseRefRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "justone", "a:b:c:d", ":Source", "lib:"} {
		_, err := ParseRef(s)
		assert.Error(t, err, "spec %q", s)
	}
}

func TestRegistryBuildsKnownSpecs(t *testing.T) {
	tr := material.NewTracker()
	ref, err := ParseRef(":cycle:Source")
	require.NoError(t, err)

	f, err := Build(ref, Config{
		Prototype: "Mine", Tracker: tr,
		OutCommodity: "u_ore", Recipe: natU(t), Throughput: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mine", f.Prototype())
	assert.Equal(t, "cycle:Source", f.Spec())
}

func TestRegistryRejectsUnknownSpec(t *testing.T) {
	ref, err := ParseRef(":cycle:Reprocessor")
	require.NoError(t, err)
	_, err = Build(ref, Config{})
	assert.Error(t, err)
}

func TestSourceProducesAndBids(t *testing.T) {
	tr := material.NewTracker()
	s, err := NewSource(Config{
		Prototype: "Mine", Tracker: tr,
		OutCommodity: "u_ore", Recipe: natU(t), Throughput: 10, Preference: 2,
	})
	require.NoError(t, err)
	assert.Empty(t, s.BidPortfolios(0), "no stock before production")

	s.Tick(1)
	s.Tick(2)
	assert.InDelta(t, 20, s.Stock(), material.Eps)
	assert.Equal(t, 1, tr.Live(), "production folds into one stock material")

	ports := s.BidPortfolios(2)
	require.Len(t, ports, 1)
	require.Len(t, ports[0].Bids, 1)
	b := ports[0].Bids[0]
	assert.InDelta(t, 20, b.Quantity, material.Eps)
	assert.Equal(t, 2.0, b.Preference)
	assert.Empty(t, s.RequestPortfolios(2))
}

func TestSinkRequestsAndAccumulates(t *testing.T) {
	tr := material.NewTracker()
	s, err := NewSink(Config{
		Prototype: "Repo", Tracker: tr,
		InCommodity: "waste", Throughput: 5,
	})
	require.NoError(t, err)

	ports := s.RequestPortfolios(1)
	require.Len(t, ports, 1)
	require.Len(t, ports[0].Requests, 1)
	assert.InDelta(t, 5, ports[0].Requests[0].Quantity, material.Eps)
	assert.Empty(t, s.BidPortfolios(1))

	m1, err := material.Create(tr, 5, natU(t))
	require.NoError(t, err)
	m2, err := material.Create(tr, 3, natU(t))
	require.NoError(t, err)
	s.AcceptMaterial(m1)
	s.AcceptMaterial(m2)

	assert.InDelta(t, 8, s.Inventory(), material.Eps)
	assert.InDelta(t, 8, s.Received(), material.Eps)
	assert.Equal(t, 1, tr.Live(), "absorbed husks are destroyed")
}

func TestStorageAgesBeforeBidding(t *testing.T) {
	tr := material.NewTracker()
	s, err := NewStorage(Config{
		Prototype: "Pad", Tracker: tr,
		InCommodity: "fresh", OutCommodity: "aged",
		Throughput: 10, Residence: 2,
	})
	require.NoError(t, err)

	tr.AdvanceTo(1)
	m, err := material.Create(tr, 10, natU(t))
	require.NoError(t, err)
	s.AcceptMaterial(m)

	s.Tick(2)
	assert.Empty(t, s.BidPortfolios(2), "still aging")
	assert.InDelta(t, 10, s.Holding(), material.Eps)

	s.Tick(3)
	assert.InDelta(t, 0, s.Holding(), material.Eps)
	assert.InDelta(t, 10, s.Ready(), material.Eps)

	ports := s.BidPortfolios(3)
	require.Len(t, ports, 1)
	assert.Equal(t, "aged", string(ports[0].Bids[0].Commodity))
	assert.InDelta(t, 10, ports[0].Bids[0].Quantity, material.Eps)

	// Requests keep flowing regardless of buffer state.
	require.Len(t, s.RequestPortfolios(3), 1)
}
