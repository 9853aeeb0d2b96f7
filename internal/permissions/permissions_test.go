package permissions

import (
	"testing"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/enums"
)

func approvedAdmin() Actor {
	return Actor{
		ID:                 uuid.New(),
		Email:              "admin@atlastravel.example",
		Role:               enums.MemberRoleAdmin,
		IsApproved:         true,
		RegistrationStatus: enums.RegistrationStatusApproved,
	}
}

func approvedAgent() Actor {
	actor := approvedAdmin()
	actor.Role = enums.MemberRoleAgent
	return actor
}

func TestApprovedAdminHasAllQuoteCapabilities(t *testing.T) {
	admin := approvedAdmin()
	ops := []Operation{
		OpCreateQuote, OpViewQuote, OpUpdateQuote, OpSendQuote, OpRetryEmail,
		OpTransitionStatus, OpArchiveQuote, OpExportQuotes, OpViewAuditTrail, OpViewAnalytics,
	}
	for _, op := range ops {
		if !CanPerform(admin, op) {
			t.Fatalf("admin should be allowed %s", op)
		}
	}
}

func TestAgentMayOnlyView(t *testing.T) {
	agent := approvedAgent()
	if !CanPerform(agent, OpViewQuote) {
		t.Fatalf("approved agent should view quotes")
	}
	denied := []Operation{
		OpCreateQuote, OpUpdateQuote, OpSendQuote, OpRetryEmail,
		OpTransitionStatus, OpArchiveQuote, OpExportQuotes, OpViewAnalytics,
	}
	for _, op := range denied {
		if CanPerform(agent, op) {
			t.Fatalf("agent should be denied %s", op)
		}
	}
}

func TestUnapprovedActorsDeniedEverything(t *testing.T) {
	unapproved := approvedAdmin()
	unapproved.IsApproved = false
	if CanPerform(unapproved, OpViewQuote) {
		t.Fatalf("unapproved admin should be denied even reads")
	}

	pending := approvedAgent()
	pending.RegistrationStatus = enums.RegistrationStatusPending
	if CanPerform(pending, OpViewQuote) {
		t.Fatalf("pending registration should be denied even reads")
	}
}

func TestUnknownRoleDenied(t *testing.T) {
	actor := approvedAdmin()
	actor.Role = enums.MemberRole("owner")
	if CanPerform(actor, OpViewQuote) {
		t.Fatalf("unknown role should be denied")
	}
}
