// Package exchange provides the bid/request contract between traders
// and the per-commodity resolver that turns declared supply and demand
// into concrete material transfers each tick.
package exchange

import (
	"math"

	"github.com/talgya/cycle-world/internal/composition"
	"github.com/talgya/cycle-world/internal/material"
)

// Commodity names a traded resource class, e.g. "natural_uranium".
type Commodity string

// Trader is a participating agent. The prototype/spec pair is the
// stable identity of its owning manager, opaque to the engine and
// used for diagnostics and recording.
type Trader interface {
	Prototype() string
	Spec() string
}

// Receiver is a trader able to take delivery of material produced by
// a resolved transfer.
type Receiver interface {
	Trader
	AcceptMaterial(m *material.Material)
}

// Bid is a trader's willingness to supply a quantity of a commodity,
// backed by a live source material. Preference is the primary ranking
// key during matching.
type Bid struct {
	Bidder     Trader
	Commodity  Commodity
	Quantity   float64
	Preference float64
	Source     *material.Material
}

// Request is a trader's willingness to consume a quantity of a
// commodity. Template describes the material specification being
// asked for; delivery uses the supplier's actual composition.
type Request struct {
	Requester  Receiver
	Commodity  Commodity
	Quantity   float64
	Preference float64
	Template   *composition.Composition
}

// BidPortfolio groups a trader's bids under a joint throughput cap:
// allocations across all bids in the portfolio cannot exceed Capacity,
// even when the bids span several commodities.
type BidPortfolio struct {
	Bids     []*Bid
	Capacity float64

	seq     uint64  // submission order, assigned by the resolver
	capLeft float64 // remaining joint capacity, consumed across Resolve calls
}

// NewBidPortfolio returns an empty portfolio with the given aggregate
// capacity. A non-positive capacity means unconstrained.
func NewBidPortfolio(capacity float64) *BidPortfolio {
	if capacity <= 0 {
		capacity = math.Inf(1)
	}
	return &BidPortfolio{Capacity: capacity}
}

// AddBid appends a bid to the portfolio.
func (p *BidPortfolio) AddBid(b *Bid) {
	p.Bids = append(p.Bids, b)
}

// RequestPortfolio groups a trader's requests under a joint capacity:
// allocations across all requests cannot exceed Capacity, even when
// the requests span several commodities.
type RequestPortfolio struct {
	Requests []*Request
	Capacity float64

	seq     uint64
	capLeft float64
}

// NewRequestPortfolio returns an empty portfolio with the given
// aggregate capacity. A non-positive capacity means unconstrained.
func NewRequestPortfolio(capacity float64) *RequestPortfolio {
	if capacity <= 0 {
		capacity = math.Inf(1)
	}
	return &RequestPortfolio{Capacity: capacity}
}

// AddRequest appends a request to the portfolio.
func (p *RequestPortfolio) AddRequest(r *Request) {
	p.Requests = append(p.Requests, r)
}

// Transfer is one resolved allocation: the supplier gives Quantity of
// the commodity to the receiver, realized by extracting from Source.
type Transfer struct {
	Supplier  Trader
	Receiver  Receiver
	Commodity Commodity
	Quantity  float64
	Source    *material.Material
	Template  *composition.Composition
}
