package enums

import "fmt"

// RefundStatus tracks the return/refund workflow nested under completed orders.
type RefundStatus string

const (
	RefundStatusRequested             RefundStatus = "requested"
	RefundStatusApprovedWaitingReturn RefundStatus = "approved_waiting_return"
	RefundStatusReturning             RefundStatus = "returning"
	RefundStatusApprovedRefunding     RefundStatus = "approved_refunding"
	RefundStatusCompleted             RefundStatus = "completed"
	RefundStatusRejected              RefundStatus = "rejected"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusRequested,
	RefundStatusApprovedWaitingReturn,
	RefundStatusReturning,
	RefundStatusApprovedRefunding,
	RefundStatusCompleted,
	RefundStatusRejected,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsOpen reports whether the refund still requires action from either party.
func (r RefundStatus) IsOpen() bool {
	return r != RefundStatusCompleted && r != RefundStatusRejected
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}
