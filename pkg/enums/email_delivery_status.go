package enums

import "fmt"

// EmailDeliveryStatus tracks the outcome of quote email dispatch.
type EmailDeliveryStatus string

const (
	EmailDeliveryPending   EmailDeliveryStatus = "pending"
	EmailDeliveryDelivered EmailDeliveryStatus = "delivered"
	EmailDeliveryFailed    EmailDeliveryStatus = "failed"
)

var validEmailDeliveryStatuses = []EmailDeliveryStatus{
	EmailDeliveryPending,
	EmailDeliveryDelivered,
	EmailDeliveryFailed,
}

// String implements fmt.Stringer.
func (e EmailDeliveryStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EmailDeliveryStatus.
func (e EmailDeliveryStatus) IsValid() bool {
	for _, candidate := range validEmailDeliveryStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// CanTransitionTo enforces pending→delivered, pending→failed and
// failed→delivered. Delivered is final.
func (e EmailDeliveryStatus) CanTransitionTo(target EmailDeliveryStatus) bool {
	switch e {
	case EmailDeliveryPending:
		return target == EmailDeliveryDelivered || target == EmailDeliveryFailed
	case EmailDeliveryFailed:
		return target == EmailDeliveryDelivered || target == EmailDeliveryFailed
	default:
		return false
	}
}

// ParseEmailDeliveryStatus converts raw input into an EmailDeliveryStatus.
func ParseEmailDeliveryStatus(value string) (EmailDeliveryStatus, error) {
	for _, candidate := range validEmailDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email delivery status %q", value)
}
