package exchange

import (
	"fmt"

	"github.com/talgya/cycle-world/internal/material"
)

// Delivery is one realized transfer: the transfer plus the split-off
// child material handed to the receiver. Quantity is captured at
// extraction time — the receiver may immediately absorb the child,
// zeroing it.
type Delivery struct {
	Transfer
	Material *material.Material
	Quantity float64
}

// ExecuteTransfers realizes a resolved transfer list: each transfer
// extracts from the supplying material and delivers the split-off
// child to the receiver. Any extraction failure is fatal to the tick
// for the affected commodity — the error is returned immediately and
// no further transfers execute, so mass is never silently dropped.
//
// Extraction uses the source's own composition. The request template
// is a specification for diagnostics and recording, not a transmute
// instruction; what the bidder offered is what ships.
func ExecuteTransfers(transfers []Transfer) ([]Delivery, error) {
	deliveries := make([]Delivery, 0, len(transfers))
	for _, t := range transfers {
		qty := t.Quantity
		if avail := t.Source.Quantity(); qty > avail && qty <= avail+material.Eps {
			qty = avail // absorb epsilon dust from earlier fills of the same source
		}
		m, err := t.Source.ExtractQty(qty)
		if err != nil {
			return deliveries, fmt.Errorf("transfer %v %s from %s to %s: %w",
				t.Quantity, t.Commodity, t.Supplier.Prototype(), t.Receiver.Prototype(), err)
		}
		delivered := m.Quantity()
		t.Receiver.AcceptMaterial(m)
		deliveries = append(deliveries, Delivery{Transfer: t, Material: m, Quantity: delivered})
	}
	return deliveries, nil
}
