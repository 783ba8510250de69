package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/material"
)

func testMaterial(t *testing.T, tr *material.Tracker, qty float64) *material.Material {
	t.Helper()
	c, err := composition.CreateFromMass(composition.CompMap{"U238": 1})
	require.NoError(t, err)
	m, err := material.Create(tr, qty, c)
	require.NoError(t, err)
	return m
}

func TestExecuteTransfersMovesMass(t *testing.T) {
	tr := material.NewTracker()
	source := testMaterial(t, tr, 100)
	supplier := &stubTrader{proto: "s"}
	receiver := &stubTrader{proto: "r"}

	deliveries, err := ExecuteTransfers([]Transfer{
		{Supplier: supplier, Receiver: receiver, Commodity: "X", Quantity: 30, Source: source},
	})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	assert.InDelta(t, 70, source.Quantity(), material.Eps)
	assert.InDelta(t, 30, receiver.accepted, material.Eps)
	assert.InDelta(t, 30, deliveries[0].Quantity, material.Eps)
	assert.NotEqual(t, source.ID(), deliveries[0].Material.ID())
}

func TestExecuteTransfersFailureIsFatal(t *testing.T) {
	tr := material.NewTracker()
	source := testMaterial(t, tr, 10)
	supplier := &stubTrader{proto: "s"}
	receiver := &stubTrader{proto: "r"}

	transfers := []Transfer{
		{Supplier: supplier, Receiver: receiver, Commodity: "X", Quantity: 6, Source: source},
		{Supplier: supplier, Receiver: receiver, Commodity: "X", Quantity: 6, Source: source},
		{Supplier: supplier, Receiver: receiver, Commodity: "X", Quantity: 6, Source: source},
	}
	deliveries, err := ExecuteTransfers(transfers)
	require.ErrorIs(t, err, material.ErrValue)

	// The first transfer executed, the failing one stopped the batch.
	assert.Len(t, deliveries, 1)
	assert.InDelta(t, 6, receiver.accepted, material.Eps)
	assert.InDelta(t, 4, source.Quantity(), material.Eps)
}

func TestExecuteTransfersAbsorbsEpsilonDust(t *testing.T) {
	tr := material.NewTracker()
	source := testMaterial(t, tr, 10)
	supplier := &stubTrader{proto: "s"}
	receiver := &stubTrader{proto: "r"}

	// A resolver allocation can exceed the live quantity by float
	// residue; execution clamps within Eps instead of failing.
	deliveries, err := ExecuteTransfers([]Transfer{
		{Supplier: supplier, Receiver: receiver, Commodity: "X", Quantity: 10 + material.Eps/2, Source: source},
	})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.InDelta(t, 0, source.Quantity(), material.Eps)
	assert.InDelta(t, 10, deliveries[0].Quantity, material.Eps)
}
