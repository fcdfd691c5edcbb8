package pricing

import (
	"fmt"
	"math"

	"github.com/addismarket/backend/internal/catalog"
)

// Tolerance is the absolute drift allowed between the catalog-derived total
// and the client-declared one. It covers floating-point rounding only; it is
// not a discount mechanism.
const Tolerance = 0.01

// MismatchError reports a declared total that differs from the catalog-derived
// total beyond Tolerance.
type MismatchError struct {
	Expected float64 // computed from catalog prices
	Received float64 // declared by the client
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("price verification failed. Expected: %.2f, Received: %.2f", e.Expected, e.Received)
}

// Delta returns the absolute difference between the two totals.
func (e *MismatchError) Delta() float64 {
	return math.Abs(e.Expected - e.Received)
}

// Total computes the order total from catalog snapshots and line quantities.
// Snapshot prices are the only price input; client-declared prices never
// participate.
func Total(snaps []*catalog.Snapshot, quantities []int) float64 {
	var total float64
	for i, s := range snaps {
		total += s.Price * float64(quantities[i])
	}
	return total
}

// Verify compares the computed total against the client-declared one.
func Verify(calculated, declared float64) error {
	if math.Abs(calculated-declared) > Tolerance {
		return &MismatchError{Expected: calculated, Received: declared}
	}
	return nil
}
