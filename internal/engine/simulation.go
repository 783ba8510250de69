// Simulation ties the tracker, facilities, and resolver together and
// runs them each tick.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/cycle-world/internal/agents"
	"github.com/talgya/cycle-world/internal/exchange"
	"github.com/talgya/cycle-world/internal/material"
)

// TransferRecord is the fact handed to an external recorder after a
// realized transfer.
type TransferRecord struct {
	Time      uint64
	Commodity exchange.Commodity
	Supplier  string // supplier prototype
	Receiver  string // receiver prototype
	Quantity  float64
	Resource  material.ResourceID // the delivered child material
}

// TransferRecorder receives transfer records synchronously; the
// engine never awaits persistence.
type TransferRecorder interface {
	RecordTransfer(rec TransferRecord)
}

// Simulation holds the engine state and wires the per-tick control
// flow: decay sweep, facility production, portfolio collection, one
// resolution per commodity, transfer execution.
type Simulation struct {
	Tracker    *material.Tracker
	Resolver   *exchange.Resolver
	Facilities []agents.Facility

	// Recorder receives realized transfers. Nil disables recording.
	Recorder TransferRecorder

	// ReportEvery controls the periodic progress log; 0 disables it.
	ReportEvery uint64

	Stats SimStats
}

// SimStats tracks aggregate counters across the run.
type SimStats struct {
	Transfers     int     `json:"transfers"`
	QuantityMoved float64 `json:"quantity_moved"`
	LiveResources int     `json:"live_resources"`
	TotalQuantity float64 `json:"total_quantity"`
}

// NewSimulation creates a Simulation over a tracker and facility set.
// Facility order is load order and fixes the resolver's determinism
// tie-break, so callers must register facilities in a stable order.
func NewSimulation(tr *material.Tracker, facilities []agents.Facility) *Simulation {
	return &Simulation{
		Tracker:    tr,
		Resolver:   exchange.NewResolver(),
		Facilities: facilities,
	}
}

// Step runs one complete tick: decay everything, let facilities
// produce, collect portfolios, resolve each commodity exactly once,
// and execute the resulting transfers. Any resolution or execution
// error aborts the tick.
func (s *Simulation) Step(tick uint64) error {
	s.Tracker.DecayAll(tick)

	for _, f := range s.Facilities {
		f.Tick(tick)
	}

	for _, f := range s.Facilities {
		for _, p := range f.BidPortfolios(tick) {
			s.Resolver.SubmitBids(p)
		}
		for _, p := range f.RequestPortfolios(tick) {
			s.Resolver.SubmitRequests(p)
		}
	}

	for _, c := range s.Resolver.Commodities() {
		transfers, err := s.Resolver.Resolve(c)
		if err != nil {
			return fmt.Errorf("resolve %s at tick %d: %w", c, tick, err)
		}
		deliveries, err := exchange.ExecuteTransfers(transfers)
		if err != nil {
			return fmt.Errorf("execute %s at tick %d: %w", c, tick, err)
		}
		for _, d := range deliveries {
			s.Stats.Transfers++
			s.Stats.QuantityMoved += d.Quantity
			if s.Recorder != nil {
				s.Recorder.RecordTransfer(TransferRecord{
					Time:      tick,
					Commodity: c,
					Supplier:  d.Supplier.Prototype(),
					Receiver:  d.Receiver.Prototype(),
					Quantity:  d.Quantity,
					Resource:  d.Material.ID(),
				})
			}
		}
	}
	s.Resolver.Clear()

	s.Stats.LiveResources = s.Tracker.Live()
	s.Stats.TotalQuantity = s.Tracker.TotalQuantity()

	if s.ReportEvery > 0 && tick%s.ReportEvery == 0 {
		slog.Info("tick report",
			"tick", tick,
			"transfers", s.Stats.Transfers,
			"quantity_moved", fmt.Sprintf("%.3f", s.Stats.QuantityMoved),
			"live_resources", s.Stats.LiveResources,
			"total_quantity", fmt.Sprintf("%.3f", s.Stats.TotalQuantity),
		)
	}
	return nil
}
