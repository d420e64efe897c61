package domain

import (
	"math/rand"
	"sort"
)

// ShuffleOrders returns a random permutation of parts in which the sorted set
// of the input order values is reassigned along the new sequence. The input
// slice and its parts are left untouched.
func ShuffleOrders(parts []Part, rng *rand.Rand) []Part {
	orders := make([]float64, len(parts))
	out := make([]Part, len(parts))
	for i, p := range parts {
		orders[i] = p.Order
		out[i] = p.Clone()
	}
	sort.Float64s(orders)

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		out[i].Order = orders[i]
	}
	return out
}
