package orders

import "strings"

// Status is the canonical order lifecycle state. Transitions:
// pending -> {processing, paid, failed, cancelled}. paid/failed/cancelled are
// terminal for the normal flow but late duplicate webhooks are still accepted
// and handled idempotently by the coordinator.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// FromProviderStatus maps the gateway's free-text transaction status to a
// canonical order status. The mapping is total: anything unrecognized lands
// in processing so an update is never silently dropped. The second return
// reports whether the input was a known provider status; callers log the raw
// value when it is not.
func FromProviderStatus(provider string) (Status, bool) {
	switch strings.ToLower(provider) {
	case "success", "approved", "completed":
		return StatusPaid, true
	case "failed", "declined", "error":
		return StatusFailed, true
	case "cancelled":
		return StatusCancelled, true
	case "pending":
		return StatusProcessing, true
	default:
		return StatusProcessing, false
	}
}

// Message returns the human-readable line pushed to order subscribers.
func (s Status) Message() string {
	switch s {
	case StatusPending:
		return "Order created, awaiting payment"
	case StatusProcessing:
		return "Payment is being processed"
	case StatusPaid:
		return "Payment completed successfully"
	case StatusFailed:
		return "Payment failed"
	case StatusCancelled:
		return "Order cancelled"
	default:
		return "Order status updated"
	}
}

// Terminal reports whether the status ends the normal payment flow.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}
