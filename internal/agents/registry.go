package agents

import (
	"fmt"
	"sync"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/exchange"
	"github.com/talgya/cycle-world/internal/material"
)

// Facility is the capability set a participating agent exposes to the
// engine: trader identity, per-tick portfolio declaration, material
// delivery, and an internal production/consumption step.
type Facility interface {
	exchange.Receiver

	// Tick runs the facility's internal step for the current time:
	// production, buffer aging, consumption. Called after the global
	// decay sweep and before portfolio collection.
	Tick(now uint64)

	// BidPortfolios declares this tick's willingness to supply.
	BidPortfolios(now uint64) []*exchange.BidPortfolio

	// RequestPortfolios declares this tick's willingness to consume.
	RequestPortfolios(now uint64) []*exchange.RequestPortfolio
}

// Config carries the construction parameters common to the built-in
// facility kinds. Individual factories use the subset they need.
type Config struct {
	Prototype string
	Tracker   *material.Tracker

	InCommodity  exchange.Commodity
	OutCommodity exchange.Commodity
	Recipe       *composition.Composition

	Throughput float64 // produced or accepted per tick
	Capacity   float64 // aggregate portfolio cap; <=0 = unconstrained
	Preference float64
	Residence  uint64 // ticks material is held before becoming available
}

// Factory builds a facility from its configuration.
type Factory func(cfg Config) (Facility, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// Register installs a factory under a spec id ("lib:agent"). Built-in
// kinds register themselves at init; external loaders add theirs the
// same way.
func Register(specID string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[specID] = f
}

// Build resolves a Ref through the registry and constructs the agent.
func Build(ref Ref, cfg Config) (Facility, error) {
	regMu.RLock()
	f, ok := registry[ref.SpecID()]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no registered agent for spec %q", ref.SpecID())
	}
	return f(cfg)
}

func init() {
	Register("cycle:Source", func(cfg Config) (Facility, error) { return NewSource(cfg) })
	Register("cycle:Sink", func(cfg Config) (Facility, error) { return NewSink(cfg) })
	Register("cycle:Storage", func(cfg Config) (Facility, error) { return NewStorage(cfg) })
}
