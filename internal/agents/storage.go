package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/cycle-world/internal/exchange"
	"github.com/talgya/cycle-world/internal/material"
)

// Storage buffers material between two commodities: it requests on the
// input commodity, holds each delivery for a residence time (decaying
// all the while under the global sweep), then offers the aged material
// on the output commodity.
type Storage struct {
	prototype string
	tr        *material.Tracker

	inCommodity  exchange.Commodity
	outCommodity exchange.Commodity
	throughput   float64
	capacity     float64
	preference   float64
	residence    uint64

	holding []holdEntry
	ready   *material.Material
}

type holdEntry struct {
	m         *material.Material
	arrivedAt uint64
}

// NewStorage builds a Storage facility. Both commodities and a
// positive throughput are required.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.InCommodity == "" || cfg.OutCommodity == "" {
		return nil, fmt.Errorf("storage %q: input and output commodities required", cfg.Prototype)
	}
	if cfg.Throughput <= 0 {
		return nil, fmt.Errorf("storage %q: positive throughput required", cfg.Prototype)
	}
	return &Storage{
		prototype:    cfg.Prototype,
		tr:           cfg.Tracker,
		inCommodity:  cfg.InCommodity,
		outCommodity: cfg.OutCommodity,
		throughput:   cfg.Throughput,
		capacity:     cfg.Capacity,
		preference:   cfg.Preference,
		residence:    cfg.Residence,
	}, nil
}

func (s *Storage) Prototype() string { return s.prototype }
func (s *Storage) Spec() string      { return "cycle:Storage" }

// Tick moves deliveries whose residence time has elapsed into the
// ready stock.
func (s *Storage) Tick(now uint64) {
	kept := s.holding[:0]
	for _, h := range s.holding {
		if now < h.arrivedAt+s.residence {
			kept = append(kept, h)
			continue
		}
		if s.ready == nil {
			s.ready = h.m
			continue
		}
		if err := s.ready.Absorb(h.m); err != nil {
			slog.Error("storage aging absorb failed", "prototype", s.prototype, "error", err)
			kept = append(kept, h)
			continue
		}
		h.m.Destroy()
	}
	s.holding = kept
}

// BidPortfolios offers the aged stock on the output commodity.
func (s *Storage) BidPortfolios(now uint64) []*exchange.BidPortfolio {
	if s.ready == nil || s.ready.Quantity() < material.Eps {
		return nil
	}
	p := exchange.NewBidPortfolio(s.capacity)
	p.AddBid(&exchange.Bid{
		Bidder:     s,
		Commodity:  s.outCommodity,
		Quantity:   s.ready.Quantity(),
		Preference: s.preference,
		Source:     s.ready,
	})
	return []*exchange.BidPortfolio{p}
}

// RequestPortfolios asks for one throughput batch on the input
// commodity.
func (s *Storage) RequestPortfolios(now uint64) []*exchange.RequestPortfolio {
	p := exchange.NewRequestPortfolio(s.capacity)
	p.AddRequest(&exchange.Request{
		Requester:  s,
		Commodity:  s.inCommodity,
		Quantity:   s.throughput,
		Preference: s.preference,
	})
	return []*exchange.RequestPortfolio{p}
}

// AcceptMaterial queues a delivery for its residence period.
func (s *Storage) AcceptMaterial(m *material.Material) {
	s.holding = append(s.holding, holdEntry{m: m, arrivedAt: s.tr.Now()})
}

// Holding returns the quantity still aging in the buffer.
func (s *Storage) Holding() float64 {
	total := 0.0
	for _, h := range s.holding {
		total += h.m.Quantity()
	}
	return total
}

// Ready returns the aged quantity available for bidding.
func (s *Storage) Ready() float64 {
	if s.ready == nil {
		return 0
	}
	return s.ready.Quantity()
}
