package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/engine"
	"github.com/talgya/cycle-world/internal/material"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.BeginRun(1)
	require.NoError(t, err)
	return db
}

func TestRecorderPersistsLineage(t *testing.T) {
	db := openTestDB(t)

	tr := material.NewTracker()
	tr.SetRecorder(db)

	c, err := composition.CreateFromMass(composition.CompMap{"U235": 0.007, "U238": 0.993})
	require.NoError(t, err)

	m, err := material.Create(tr, 100, c)
	require.NoError(t, err)
	m2, err := m.ExtractQty(30)
	require.NoError(t, err)
	require.NoError(t, m.Absorb(m2))

	require.NoError(t, db.Flush())

	n, err := db.ResourceEventCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n, "create + two splits + absorb")
}

func TestRecorderPersistsTransfers(t *testing.T) {
	db := openTestDB(t)

	db.RecordTransfer(engine.TransferRecord{
		Time: 3, Commodity: "u_ore", Supplier: "Mine", Receiver: "Mill",
		Quantity: 6, Resource: 7,
	})
	require.NoError(t, db.Flush())

	n, err := db.TransferCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlushWithoutRecordsIsNoop(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Flush())
	require.NoError(t, db.Flush())
}

func TestCompositionVectorWrittenOnce(t *testing.T) {
	db := openTestDB(t)

	tr := material.NewTracker()
	tr.SetRecorder(db)

	c, err := composition.CreateFromMass(composition.CompMap{"U238": 1})
	require.NoError(t, err)

	// Two materials sharing one interned composition.
	_, err = material.Create(tr, 10, c)
	require.NoError(t, err)
	_, err = material.Create(tr, 20, c)
	require.NoError(t, err)
	require.NoError(t, db.Flush())

	var rows int
	err = db.conn.Get(&rows,
		"SELECT COUNT(*) FROM compositions WHERE composition_id = ?", c.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}
