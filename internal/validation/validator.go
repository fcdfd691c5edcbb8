package validation

import (
	"fmt"
	"math"

	validatorv10 "github.com/go-playground/validator/v10"
)

// tolerance for the declared-total sanity check (matches the server-side
// pricing verifier's drift allowance).
const totalTolerance = 0.01

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// A checkout whose own declared numbers don't add up is malformed input,
	// rejected before any catalog read. The authoritative price check against
	// the catalog happens later in the pricing verifier.
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})

	return v
}

// checkoutStructValidation verifies the declared item totals sum to the
// declared order total within tolerance.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	var sum float64
	for _, it := range req.OrderItems {
		sum += float64(it.Quantity) * it.Price
	}

	if math.Abs(sum-req.TotalPrice) > totalTolerance {
		sl.ReportError(req.TotalPrice, "totalPrice", "TotalPrice", "total_match_items",
			fmt.Sprintf("items sum %.2f != total %.2f", sum, req.TotalPrice))
	}
}
