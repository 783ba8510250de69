package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/exchange"
	"github.com/talgya/cycle-world/internal/material"
)

// Source manufactures material of a fixed recipe each tick and offers
// its accumulated stock on the output commodity.
type Source struct {
	prototype string
	tr        *material.Tracker

	commodity  exchange.Commodity
	recipe     *composition.Composition
	throughput float64
	capacity   float64
	preference float64

	stock *material.Material
}

// NewSource builds a Source facility. Recipe, output commodity, and a
// positive throughput are required.
func NewSource(cfg Config) (*Source, error) {
	if cfg.Recipe == nil {
		return nil, fmt.Errorf("source %q: recipe required", cfg.Prototype)
	}
	if cfg.OutCommodity == "" {
		return nil, fmt.Errorf("source %q: output commodity required", cfg.Prototype)
	}
	if cfg.Throughput <= 0 {
		return nil, fmt.Errorf("source %q: positive throughput required", cfg.Prototype)
	}
	return &Source{
		prototype:  cfg.Prototype,
		tr:         cfg.Tracker,
		commodity:  cfg.OutCommodity,
		recipe:     cfg.Recipe,
		throughput: cfg.Throughput,
		capacity:   cfg.Capacity,
		preference: cfg.Preference,
	}, nil
}

func (s *Source) Prototype() string { return s.prototype }
func (s *Source) Spec() string      { return "cycle:Source" }

// Tick manufactures one throughput batch and folds it into stock.
func (s *Source) Tick(now uint64) {
	batch, err := material.Create(s.tr, s.throughput, s.recipe)
	if err != nil {
		slog.Error("source production failed", "prototype", s.prototype, "error", err)
		return
	}
	if s.stock == nil {
		s.stock = batch
		return
	}
	if err := s.stock.Absorb(batch); err != nil {
		slog.Error("source stock absorb failed", "prototype", s.prototype, "error", err)
		return
	}
	batch.Destroy()
}

// BidPortfolios offers the entire stock on the output commodity.
func (s *Source) BidPortfolios(now uint64) []*exchange.BidPortfolio {
	if s.stock == nil || s.stock.Quantity() < material.Eps {
		return nil
	}
	p := exchange.NewBidPortfolio(s.capacity)
	p.AddBid(&exchange.Bid{
		Bidder:     s,
		Commodity:  s.commodity,
		Quantity:   s.stock.Quantity(),
		Preference: s.preference,
		Source:     s.stock,
	})
	return []*exchange.BidPortfolio{p}
}

// RequestPortfolios is empty: sources only supply.
func (s *Source) RequestPortfolios(now uint64) []*exchange.RequestPortfolio {
	return nil
}

// AcceptMaterial folds unexpected deliveries back into stock so no
// mass is lost if a source is ever wired as a receiver.
func (s *Source) AcceptMaterial(m *material.Material) {
	if s.stock == nil {
		s.stock = m
		return
	}
	if err := s.stock.Absorb(m); err != nil {
		slog.Error("source accept failed", "prototype", s.prototype, "error", err)
		return
	}
	m.Destroy()
}

// Stock returns the current sellable quantity.
func (s *Source) Stock() float64 {
	if s.stock == nil {
		return 0
	}
	return s.stock.Quantity()
}
