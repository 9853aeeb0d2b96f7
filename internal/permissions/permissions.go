package permissions

import (
	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/enums"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID                 uuid.UUID
	Email              string
	Role               enums.MemberRole
	IsApproved         bool
	RegistrationStatus enums.RegistrationStatus
}

// Operation names each guarded quote capability.
type Operation string

const (
	OpCreateQuote      Operation = "quote.create"
	OpViewQuote        Operation = "quote.view"
	OpUpdateQuote      Operation = "quote.update"
	OpSendQuote        Operation = "quote.send"
	OpRetryEmail       Operation = "quote.retry_email"
	OpTransitionStatus Operation = "quote.transition_status"
	OpArchiveQuote     Operation = "quote.archive"
	OpExportQuotes     Operation = "quote.export"
	OpViewAuditTrail   Operation = "quote.view_audit_trail"
	OpViewAnalytics    Operation = "quote.view_analytics"
)

// capabilities is the single source of truth for role → operation grants.
// Checks that used to live inline per-route are centralized here so the
// enforcement points cannot drift.
var capabilities = map[enums.MemberRole]map[Operation]bool{
	enums.MemberRoleAdmin: {
		OpCreateQuote:      true,
		OpViewQuote:        true,
		OpUpdateQuote:      true,
		OpSendQuote:        true,
		OpRetryEmail:       true,
		OpTransitionStatus: true,
		OpArchiveQuote:     true,
		OpExportQuotes:     true,
		OpViewAuditTrail:   true,
		OpViewAnalytics:    true,
	},
	enums.MemberRoleAgent: {
		// Agents may view their own quotes; ownership is enforced by the
		// quotes service, which scopes agent reads to created_by_id.
		OpViewQuote: true,
	},
}

// CanPerform answers whether the actor may carry out the operation. Pure
// lookup, no I/O; callers are responsible for auditing denials.
func CanPerform(actor Actor, op Operation) bool {
	if !actor.IsApproved {
		return false
	}
	if actor.RegistrationStatus != enums.RegistrationStatusApproved {
		return false
	}
	grants, ok := capabilities[actor.Role]
	if !ok {
		return false
	}
	return grants[op]
}
