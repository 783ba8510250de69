package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/exchange"
	"github.com/talgya/cycle-world/internal/material"
)

// Sink requests material on its input commodity up to a per-tick
// throughput and accumulates whatever it is given. The terminal
// facility of a chain: deliveries are folded into one inventory
// material and tallied.
type Sink struct {
	prototype string
	tr        *material.Tracker

	commodity  exchange.Commodity
	template   *composition.Composition
	throughput float64
	capacity   float64
	preference float64

	inventory *material.Material
	received  float64
}

// NewSink builds a Sink facility. Input commodity and a positive
// throughput are required; the template is optional.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.InCommodity == "" {
		return nil, fmt.Errorf("sink %q: input commodity required", cfg.Prototype)
	}
	if cfg.Throughput <= 0 {
		return nil, fmt.Errorf("sink %q: positive throughput required", cfg.Prototype)
	}
	return &Sink{
		prototype:  cfg.Prototype,
		tr:         cfg.Tracker,
		commodity:  cfg.InCommodity,
		template:   cfg.Recipe,
		throughput: cfg.Throughput,
		capacity:   cfg.Capacity,
		preference: cfg.Preference,
	}, nil
}

func (s *Sink) Prototype() string { return s.prototype }
func (s *Sink) Spec() string      { return "cycle:Sink" }

// Tick is a no-op: sinks only accumulate.
func (s *Sink) Tick(now uint64) {}

// BidPortfolios is empty: sinks only consume.
func (s *Sink) BidPortfolios(now uint64) []*exchange.BidPortfolio {
	return nil
}

// RequestPortfolios asks for one throughput batch on the input
// commodity.
func (s *Sink) RequestPortfolios(now uint64) []*exchange.RequestPortfolio {
	p := exchange.NewRequestPortfolio(s.capacity)
	p.AddRequest(&exchange.Request{
		Requester:  s,
		Commodity:  s.commodity,
		Quantity:   s.throughput,
		Preference: s.preference,
		Template:   s.template,
	})
	return []*exchange.RequestPortfolio{p}
}

// AcceptMaterial absorbs a delivery into the inventory. The delivered
// husk is destroyed after absorption so the tracker holds one live
// inventory material per sink.
func (s *Sink) AcceptMaterial(m *material.Material) {
	s.received += m.Quantity()
	if s.inventory == nil {
		s.inventory = m
		return
	}
	if err := s.inventory.Absorb(m); err != nil {
		slog.Error("sink absorb failed", "prototype", s.prototype, "error", err)
		return
	}
	m.Destroy()
}

// Inventory returns the currently held quantity.
func (s *Sink) Inventory() float64 {
	if s.inventory == nil {
		return 0
	}
	return s.inventory.Quantity()
}

// Received returns the cumulative delivered quantity.
func (s *Sink) Received() float64 { return s.received }

// InventoryComp returns the composition of the held inventory, nil
// when nothing has been delivered yet.
func (s *Sink) InventoryComp() *composition.Composition {
	if s.inventory == nil {
		return nil
	}
	return s.inventory.Comp()
}
