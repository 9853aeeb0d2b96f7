package enums

import "fmt"

// AuditAction names the lifecycle and security events recorded per quote.
type AuditAction string

const (
	AuditActionQuoteCreated     AuditAction = "quote_created"
	AuditActionQuoteUpdated     AuditAction = "quote_updated"
	AuditActionQuoteStatus      AuditAction = "quote_status_changed"
	AuditActionQuoteArchived    AuditAction = "quote_archived"
	AuditActionQuoteExpired     AuditAction = "quote_expired"
	AuditActionEmailSent        AuditAction = "quote_email_sent"
	AuditActionEmailRetried     AuditAction = "quote_email_retried"
	AuditActionEmailFailed      AuditAction = "quote_email_failed"
	AuditActionQuoteViewed      AuditAction = "quote_viewed"
	AuditActionBookingInterest  AuditAction = "booking_interest_expressed"
	AuditActionTokenRejected    AuditAction = "tracking_token_rejected"
	AuditActionPermissionDenied AuditAction = "permission_denied"
	AuditActionExport           AuditAction = "quotes_exported"
)

var validAuditActions = []AuditAction{
	AuditActionQuoteCreated,
	AuditActionQuoteUpdated,
	AuditActionQuoteStatus,
	AuditActionQuoteArchived,
	AuditActionQuoteExpired,
	AuditActionEmailSent,
	AuditActionEmailRetried,
	AuditActionEmailFailed,
	AuditActionQuoteViewed,
	AuditActionBookingInterest,
	AuditActionTokenRejected,
	AuditActionPermissionDenied,
	AuditActionExport,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsEngagement reports whether the action originates from an anonymous
// customer rather than an authenticated back-office actor.
func (a AuditAction) IsEngagement() bool {
	switch a {
	case AuditActionQuoteViewed, AuditActionBookingInterest, AuditActionTokenRejected:
		return true
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
