package enums

import "fmt"

// QuoteStatus tracks the lifecycle of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusViewed   QuoteStatus = "viewed"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusDeclined QuoteStatus = "declined"
	QuoteStatusExpired  QuoteStatus = "expired"
)

var validQuoteStatuses = []QuoteStatus{
	QuoteStatusDraft,
	QuoteStatusSent,
	QuoteStatusViewed,
	QuoteStatusAccepted,
	QuoteStatusDeclined,
	QuoteStatusExpired,
}

// quoteStatusTransitions holds the reachable target statuses per current status.
// Re-sending a sent quote stays in sent; viewed regresses to sent only via an
// explicit resend, which is handled by the quotes service, not this table.
var quoteStatusTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft:    {QuoteStatusSent},
	QuoteStatusSent:     {QuoteStatusSent, QuoteStatusViewed, QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired},
	QuoteStatusViewed:   {QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired},
	QuoteStatusAccepted: {},
	QuoteStatusDeclined: {},
	QuoteStatusExpired:  {},
}

// String implements fmt.Stringer.
func (q QuoteStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteStatus.
func (q QuoteStatus) IsValid() bool {
	for _, candidate := range validQuoteStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (q QuoteStatus) IsTerminal() bool {
	targets, ok := quoteStatusTransitions[q]
	return ok && len(targets) == 0
}

// CanTransitionTo reports whether target is reachable from the current status.
func (q QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	for _, candidate := range quoteStatusTransitions[q] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseQuoteStatus converts raw input into a QuoteStatus.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	for _, candidate := range validQuoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote status %q", value)
}
