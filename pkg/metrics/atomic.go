package metrics

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 provides atomic operations for float64 values.
// It stores the bits of the float64 as a uint64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

// Load atomically loads and returns the float64 value.
func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

// Store atomically stores the float64 value.
func (a *atomicFloat64) Store(val float64) {
	a.bits.Store(math.Float64bits(val))
}

// Add atomically adds delta to the float64 value using CAS loop.
func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		newVal := math.Float64frombits(old) + delta
		if a.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}
