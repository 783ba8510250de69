package exchange

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/talgya/cycle-world/internal/material"
)

// ErrConservation is the resolver post-condition failure: matched
// transfer quantity for a commodity exceeds declared bid or request
// quantity. It indicates a resolver logic defect and aborts the tick;
// it is never retried.
var ErrConservation = errors.New("conservation violation")

// Resolver collects the bid and request portfolios active for the
// current tick and matches them per commodity.
//
// Matching policy (pinned for reproducibility): candidate
// (bid, request) pairs are ranked by the sum of the two preference
// scores, descending, with ties broken by request submission order
// then bid submission order. Allocation is greedy in that order; each
// step takes the least of the remaining bid quantity, remaining
// request quantity, and the two portfolios' remaining capacities.
// Partial fills are allowed on both sides. A portfolio's joint
// capacity is consumed across commodities: resolving one commodity
// reduces what the same portfolio may move on the next.
type Resolver struct {
	bids     map[Commodity][]*BidPortfolio
	requests map[Commodity][]*RequestPortfolio
	seq      uint64
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		bids:     make(map[Commodity][]*BidPortfolio),
		requests: make(map[Commodity][]*RequestPortfolio),
	}
}

// SubmitBids registers a bid portfolio for this tick. Submission order
// is the determinism tie-break, so traders must be polled in a stable
// order. The portfolio's joint capacity is armed here and consumed
// across every Resolve call until Clear.
func (r *Resolver) SubmitBids(p *BidPortfolio) {
	r.seq++
	p.seq = r.seq
	p.capLeft = p.Capacity
	for _, b := range p.Bids {
		r.bids[b.Commodity] = append(r.bids[b.Commodity], p)
	}
}

// SubmitRequests registers a request portfolio for this tick.
func (r *Resolver) SubmitRequests(p *RequestPortfolio) {
	r.seq++
	p.seq = r.seq
	p.capLeft = p.Capacity
	for _, rq := range p.Requests {
		r.requests[rq.Commodity] = append(r.requests[rq.Commodity], p)
	}
}

// Commodities returns every commodity with at least one active bid or
// request, sorted for deterministic iteration.
func (r *Resolver) Commodities() []Commodity {
	seen := make(map[Commodity]bool)
	for c := range r.bids {
		seen[c] = true
	}
	for c := range r.requests {
		seen[c] = true
	}
	out := make([]Commodity, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Clear drops all submitted portfolios. Called after each tick's
// resolution; portfolios do not persist across ticks.
func (r *Resolver) Clear() {
	r.bids = make(map[Commodity][]*BidPortfolio)
	r.requests = make(map[Commodity][]*RequestPortfolio)
}

// candidate is one rankable (bid, request) pairing.
type candidate struct {
	bid     *Bid
	bidPort *BidPortfolio
	req     *Request
	reqPort *RequestPortfolio
	pref    float64
}

// Resolve matches the active bids and requests for one commodity and
// returns the resulting transfer list. Given identical submission
// order and preferences, two runs produce identical lists.
func (r *Resolver) Resolve(c Commodity) ([]Transfer, error) {
	bidPorts := dedupBids(r.bids[c])
	reqPorts := dedupRequests(r.requests[c])
	if len(bidPorts) == 0 || len(reqPorts) == 0 {
		return nil, nil
	}

	// Enumerate pairs, then rank by preference with explicit
	// submission-sequence tie-breaks: request order first, bid order
	// second. The stable sort keeps within-portfolio declaration
	// order for pairs sharing both sequences.
	var cands []candidate
	for _, rp := range reqPorts {
		for _, rq := range rp.Requests {
			if rq.Commodity != c {
				continue
			}
			for _, bp := range bidPorts {
				for _, b := range bp.Bids {
					if b.Commodity != c {
						continue
					}
					cands = append(cands, candidate{
						bid: b, bidPort: bp,
						req: rq, reqPort: rp,
						pref: b.Preference + rq.Preference,
					})
				}
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].pref != cands[j].pref {
			return cands[i].pref > cands[j].pref
		}
		if cands[i].reqPort.seq != cands[j].reqPort.seq {
			return cands[i].reqPort.seq < cands[j].reqPort.seq
		}
		return cands[i].bidPort.seq < cands[j].bidPort.seq
	})

	bidLeft := make(map[*Bid]float64)
	reqLeft := make(map[*Request]float64)
	for _, cd := range cands {
		bidLeft[cd.bid] = cd.bid.Quantity
		reqLeft[cd.req] = cd.req.Quantity
	}

	// Portfolio capacity is shared state: a portfolio spanning
	// several commodities spends one joint cap across them all.
	var transfers []Transfer
	for _, cd := range cands {
		qty := min(bidLeft[cd.bid], reqLeft[cd.req], cd.bidPort.capLeft, cd.reqPort.capLeft)
		if qty < material.Eps {
			continue
		}
		bidLeft[cd.bid] -= qty
		reqLeft[cd.req] -= qty
		cd.bidPort.capLeft -= qty
		cd.reqPort.capLeft -= qty
		transfers = append(transfers, Transfer{
			Supplier:  cd.bid.Bidder,
			Receiver:  cd.req.Requester,
			Commodity: c,
			Quantity:  qty,
			Source:    cd.bid.Source,
			Template:  cd.req.Template,
		})
	}

	if err := checkConservation(c, transfers, bidPorts, reqPorts); err != nil {
		return nil, err
	}
	return transfers, nil
}

// checkConservation re-validates that matched quantity never exceeds
// declared supply or demand for the commodity.
func checkConservation(c Commodity, transfers []Transfer, bidPorts []*BidPortfolio, reqPorts []*RequestPortfolio) error {
	matched := 0.0
	for _, t := range transfers {
		matched += t.Quantity
	}

	offered := 0.0
	for _, bp := range bidPorts {
		sub := 0.0
		for _, b := range bp.Bids {
			if b.Commodity == c {
				sub += b.Quantity
			}
		}
		offered += min(sub, bp.Capacity)
	}
	requested := 0.0
	for _, rp := range reqPorts {
		sub := 0.0
		for _, rq := range rp.Requests {
			if rq.Commodity == c {
				sub += rq.Quantity
			}
		}
		requested += min(sub, rp.Capacity)
	}

	if matched > offered+material.Eps {
		return fmt.Errorf("%w: commodity %s matched %v exceeds offered %v", ErrConservation, c, matched, offered)
	}
	if matched > requested+material.Eps {
		return fmt.Errorf("%w: commodity %s matched %v exceeds requested %v", ErrConservation, c, matched, requested)
	}
	return nil
}

// dedupBids drops repeat portfolio entries caused by multi-bid
// portfolios indexing under one commodity more than once.
func dedupBids(ports []*BidPortfolio) []*BidPortfolio {
	seen := make(map[*BidPortfolio]bool, len(ports))
	out := ports[:0:0]
	for _, p := range ports {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func dedupRequests(ports []*RequestPortfolio) []*RequestPortfolio {
	seen := make(map[*RequestPortfolio]bool, len(ports))
	out := ports[:0:0]
	for _, p := range ports {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
