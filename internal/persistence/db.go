// Package persistence provides the SQLite recorder backend for
// resource lineage and transfer records.
package persistence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/cycle-world/internal/engine"
	"github.com/talgya/cycle-world/internal/material"
)

// DB wraps a SQLite connection and implements the engine's recording
// hooks. Events are buffered in memory and written in one transaction
// per Flush, so recording inside a tick never blocks on I/O.
type DB struct {
	conn  *sqlx.DB
	runID string

	mu        sync.Mutex
	events    []material.ResourceEvent
	transfers []engine.TransferRecord
	seenComps map[uint64]bool
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, seenComps: make(map[uint64]bool)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close flushes pending records and closes the connection.
func (db *DB) Close() error {
	if err := db.Flush(); err != nil {
		slog.Error("flush on close failed", "error", err)
	}
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		run_id TEXT NOT NULL,
		resource_id INTEGER NOT NULL,
		parent_id INTEGER,
		time INTEGER NOT NULL,
		quantity REAL NOT NULL,
		composition_id INTEGER NOT NULL,
		event_kind TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS compositions (
		run_id TEXT NOT NULL,
		composition_id INTEGER NOT NULL,
		nuclide TEXT NOT NULL,
		mass_fraction REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transfers (
		run_id TEXT NOT NULL,
		time INTEGER NOT NULL,
		commodity TEXT NOT NULL,
		supplier TEXT NOT NULL,
		receiver TEXT NOT NULL,
		quantity REAL NOT NULL,
		resource_id INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_id ON resources(resource_id);
	CREATE INDEX IF NOT EXISTS idx_resources_time ON resources(time);
	CREATE INDEX IF NOT EXISTS idx_transfers_time ON transfers(time);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new simulation run and scopes all subsequent
// records to its id.
func (db *DB) BeginRun(seed int64) (string, error) {
	runID := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (run_id, started_at, seed) VALUES (?, ?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339), seed,
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	db.mu.Lock()
	db.runID = runID
	db.mu.Unlock()
	return runID, nil
}

// RecordResourceEvent buffers a lineage event. Implements
// material.Recorder.
func (db *DB) RecordResourceEvent(ev material.ResourceEvent) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.events = append(db.events, ev)
}

// RecordTransfer buffers a realized transfer. Implements
// engine.TransferRecorder.
func (db *DB) RecordTransfer(rec engine.TransferRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.transfers = append(db.transfers, rec)
}

// Flush writes all buffered records in one transaction. Composition
// vectors are written once per composition id.
func (db *DB) Flush() error {
	db.mu.Lock()
	events := db.events
	transfers := db.transfers
	db.events = nil
	db.transfers = nil
	db.mu.Unlock()

	if len(events) == 0 && len(transfers) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range events {
		var parent any
		if ev.Parent != 0 {
			parent = uint64(ev.Parent)
		}
		compID := ev.Composition.ID()
		_, err := tx.Exec(`INSERT INTO resources
			(run_id, resource_id, parent_id, time, quantity, composition_id, event_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			db.runID, uint64(ev.Resource), parent, ev.Time, ev.Quantity, compID, string(ev.Kind),
		)
		if err != nil {
			return fmt.Errorf("insert resource event %d: %w", ev.Resource, err)
		}

		if !db.seenComps[compID] {
			db.seenComps[compID] = true
			for nuc, frac := range ev.Composition.Mass() {
				_, err := tx.Exec(`INSERT INTO compositions
					(run_id, composition_id, nuclide, mass_fraction) VALUES (?, ?, ?, ?)`,
					db.runID, compID, string(nuc), frac,
				)
				if err != nil {
					return fmt.Errorf("insert composition %d: %w", compID, err)
				}
			}
		}
	}

	for _, rec := range transfers {
		_, err := tx.Exec(`INSERT INTO transfers
			(run_id, time, commodity, supplier, receiver, quantity, resource_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			db.runID, rec.Time, string(rec.Commodity), rec.Supplier, rec.Receiver,
			rec.Quantity, uint64(rec.Resource),
		)
		if err != nil {
			return fmt.Errorf("insert transfer at %d: %w", rec.Time, err)
		}
	}

	return tx.Commit()
}

// TransferCount returns the number of recorded transfers for the
// current run.
func (db *DB) TransferCount() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM transfers WHERE run_id = ?", db.runID)
	return n, err
}

// ResourceEventCount returns the number of recorded lineage events for
// the current run.
func (db *DB) ResourceEventCount() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM resources WHERE run_id = ?", db.runID)
	return n, err
}
