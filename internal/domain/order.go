package domain

import (
	"fmt"
	"math"
	"sort"
)

const (
	// OrderMinExclusive and OrderMaxExclusive bound the local sub-range an
	// empty sequence inserts into.
	OrderMinExclusive = 0.0
	OrderMaxExclusive = 1.0

	// MinOrderGap is the smallest neighbor gap that still interpolates.
	// Below it adjacent values are no longer distinguishable and the run is
	// rebalanced.
	MinOrderGap = 1e-10

	// DuplicateOrderOffset is added to a source part's order for its copy.
	// The server resolves collisions it may cause.
	DuplicateOrderOffset = 0.1

	// openBoundStep is the distance from the single neighbor when inserting
	// at an open end of a sequence.
	openBoundStep = 1.0
)

// Neighbors describes an insertion point in an ordered run.
// A missing lower or upper neighbor is an open bound.
type Neighbors struct {
	Lo, Hi       float64
	HasLo, HasHi bool
}

// Between is the insertion point between two existing orders.
func Between(lo, hi float64) Neighbors { return Neighbors{Lo: lo, Hi: hi, HasLo: true, HasHi: true} }

// After is the insertion point above the current maximum.
func After(lo float64) Neighbors { return Neighbors{Lo: lo, HasLo: true} }

// Before is the insertion point below the current minimum.
func Before(hi float64) Neighbors { return Neighbors{Hi: hi, HasHi: true} }

// NeedsRebalance reports whether the gap between lo and hi is too small to
// interpolate into.
func NeedsRebalance(lo, hi float64) bool {
	return hi-lo < MinOrderGap
}

// Interpolate returns an order strictly between the neighbors.
// It returns ErrOrderGapExhausted when the run must be rebalanced first.
func (n Neighbors) Interpolate() (float64, error) {
	switch {
	case n.HasLo && n.HasHi:
		if n.Hi <= n.Lo {
			return 0, fmt.Errorf("%w: lo=%v hi=%v", ErrInvalidBounds, n.Lo, n.Hi)
		}
		if NeedsRebalance(n.Lo, n.Hi) {
			return 0, ErrOrderGapExhausted
		}
		v := n.Lo + (n.Hi-n.Lo)/2
		if !(n.Lo < v && v < n.Hi) {
			return 0, ErrOrderGapExhausted
		}
		return v, nil
	case n.HasLo:
		return n.Lo + openBoundStep, nil
	case n.HasHi:
		return n.Hi - openBoundStep, nil
	default:
		return OrderMinExclusive + (OrderMaxExclusive-OrderMinExclusive)/2, nil
	}
}

// ValidOrder reports whether v can be stored as an order value.
func ValidOrder(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SortParts sorts parts by order, breaking ties by id.
func SortParts(parts []Part) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Order != parts[j].Order {
			return parts[i].Order < parts[j].Order
		}
		return parts[i].ID < parts[j].ID
	})
}

// RebalanceOrders returns integer-step orders 1..n that preserve the relative
// order of the input. Equal inputs keep their input sequence.
func RebalanceOrders(orders []float64) []float64 {
	idx := make([]int, len(orders))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return orders[idx[a]] < orders[idx[b]] })

	out := make([]float64, len(orders))
	for rank, i := range idx {
		out[i] = float64(rank + 1)
	}
	return out
}

// RebalanceParts rewrites the orders of parts to 1..n in their current
// stacking order. The slice is sorted as a side effect.
func RebalanceParts(parts []Part) {
	SortParts(parts)
	for i := range parts {
		parts[i].Order = float64(i + 1)
	}
}
