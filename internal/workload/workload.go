// Package workload implements the CPU-bound computation every worker runs.
//
// The workload is the double sum, over i in 1..B and j in 1..i, of sqrt(i*j).
// Each term is truncated to an integer before it is added to a uint64 total.
// Integer accumulation is exact and independent of summation order, so two
// workers running the same bound always agree bit for bit, whichever
// execution model hosts them.
package workload

import "math"

// DefaultBound is the reference outer bound B. It yields about 12.5 million
// square roots, enough for the workload to dwarf spawn and join overhead.
const DefaultBound uint64 = 5000

// Term returns the contribution of the pair (i, j): sqrt(i*j).
// The product is formed in uint64 so large bounds do not overflow.
func Term(i, j uint64) float64 {
	return math.Sqrt(float64(i * j))
}

// NestedSqrtSum computes the full workload for the given bound.
// A zero bound yields zero. It has no side effects and is safe to call
// concurrently.
func NestedSqrtSum(bound uint64) uint64 {
	var total uint64
	for i := uint64(1); i <= bound; i++ {
		for j := uint64(1); j <= i; j++ {
			total += uint64(Term(i, j))
		}
	}
	return total
}

// Evaluations returns how many terms NestedSqrtSum evaluates for bound.
func Evaluations(bound uint64) uint64 {
	return bound * (bound + 1) / 2
}

// Func is the signature of a workload: it returns the result for one worker.
// Runners accept a Func so tests can substitute a cheap or fixed workload.
type Func func() uint64

// WithBound returns a Func computing NestedSqrtSum(bound).
func WithBound(bound uint64) Func {
	return func() uint64 { return NestedSqrtSum(bound) }
}
