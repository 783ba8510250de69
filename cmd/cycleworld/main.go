// Command cycleworld runs a demonstration fuel-cycle simulation:
// source facilities manufacture material, storage ages it, sinks
// consume it, and every lineage event lands in SQLite.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/talgya/cycle-world/internal/agents"
	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/engine"
	"github.com/talgya/cycle-world/internal/material"
	"github.com/talgya/cycle-world/internal/persistence"
)

func main() {
	ticks := flag.Uint64("ticks", 48, "simulated ticks (months) to run")
	dbPath := flag.String("db", "data/cycleworld.db", "SQLite output path")
	seed := flag.Int64("seed", 42, "run seed recorded with the output")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("cycle-world — resource & exchange simulation", "ticks", *ticks)

	registerDecayChains()

	// ── Recorder backend ─────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	runID, err := db.BeginRun(*seed)
	if err != nil {
		slog.Error("failed to begin run", "error", err)
		os.Exit(1)
	}
	slog.Info("database opened", "path", *dbPath, "run_id", runID)

	// ── Facilities ───────────────────────────────────────────────────
	tracker := material.NewTracker()
	tracker.SetRecorder(db)

	facilities, err := buildFacilities(tracker)
	if err != nil {
		slog.Error("failed to build facilities", "error", err)
		os.Exit(1)
	}

	sim := engine.NewSimulation(tracker, facilities)
	sim.Recorder = db
	sim.ReportEvery = 12

	// ── Run ──────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.OnTick = func(tick uint64) error {
		if err := sim.Step(tick); err != nil {
			return err
		}
		return db.Flush()
	}

	if err := eng.RunFor(*ticks); err != nil {
		slog.Error("simulation aborted", "error", err)
		os.Exit(1)
	}

	slog.Info("run complete",
		"ticks", *ticks,
		"transfers", sim.Stats.Transfers,
		"quantity_moved_kg", humanize.CommafWithDigits(sim.Stats.QuantityMoved, 3),
		"live_resources", sim.Stats.LiveResources,
		"total_quantity_kg", humanize.CommafWithDigits(sim.Stats.TotalQuantity, 3),
	)
}

// registerDecayChains installs the decay table for the demo scenario.
// One tick is one month; lambdas are ln2 over the half-life in months.
func registerDecayChains() {
	month := func(halfLifeYears float64) float64 {
		return math.Ln2 / (halfLifeYears * 12)
	}
	composition.RegisterChain("Cs137", composition.Chain{
		Lambda: month(30.17), Daughter: "Ba137", Branch: 1,
	})
	composition.RegisterChain("Sr90", composition.Chain{
		Lambda: month(28.8), Daughter: "Zr90", Branch: 1,
	})
}

// buildFacilities assembles the demo fuel-cycle chain through the
// capability registry: a uranium mine feeding a storage pad feeding an
// enrichment sink, plus a spent-fuel source feeding a repository.
func buildFacilities(tr *material.Tracker) ([]agents.Facility, error) {
	natU, err := composition.CreateFromMass(composition.CompMap{
		"U235": 0.00711,
		"U238": 0.99289,
	})
	if err != nil {
		return nil, fmt.Errorf("natural uranium recipe: %w", err)
	}
	spent, err := composition.CreateFromMass(composition.CompMap{
		"U238":  0.94,
		"Pu239": 0.011,
		"Cs137": 0.002,
		"Sr90":  0.001,
		"U235":  0.008,
		"O16":   0.038,
	})
	if err != nil {
		return nil, fmt.Errorf("spent fuel recipe: %w", err)
	}

	specs := []struct {
		spec string
		cfg  agents.Config
	}{
		{":cycle:Source", agents.Config{
			Prototype: "UraniumMine", Tracker: tr,
			OutCommodity: "natural_uranium", Recipe: natU,
			Throughput: 100, Preference: 1,
		}},
		{":cycle:Storage", agents.Config{
			Prototype: "StoragePad", Tracker: tr,
			InCommodity: "natural_uranium", OutCommodity: "aged_uranium",
			Throughput: 80, Residence: 2, Preference: 1,
		}},
		{":cycle:Sink", agents.Config{
			Prototype: "Enrichment", Tracker: tr,
			InCommodity: "aged_uranium", Throughput: 60, Preference: 1,
		}},
		{":cycle:Source", agents.Config{
			Prototype: "Reactor", Tracker: tr,
			OutCommodity: "spent_fuel", Recipe: spent,
			Throughput: 20, Preference: 1,
		}},
		{":cycle:Sink", agents.Config{
			Prototype: "Repository", Tracker: tr,
			InCommodity: "spent_fuel", Throughput: 25, Preference: 1,
		}},
	}

	facilities := make([]agents.Facility, 0, len(specs))
	for _, s := range specs {
		ref, err := agents.ParseRef(s.spec)
		if err != nil {
			return nil, err
		}
		f, err := agents.Build(ref, s.cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", s.cfg.Prototype, err)
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}
