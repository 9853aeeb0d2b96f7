package quotes

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/internal/email"
	"github.com/atlastravel/backoffice-backend/internal/permissions"
	"github.com/atlastravel/backoffice-backend/internal/pricing"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/pagination"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// SystemActor is recorded on audit entries written by background jobs.
const SystemActor = "system"

type emailDispatcher interface {
	Dispatch(ctx context.Context, kind string, msg email.Message) (email.Outcome, error)
}

type tokenIssuer interface {
	Issue(quoteID uuid.UUID, recipient string) (string, error)
}

// RequestMeta carries per-request client details into audit entries.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// Service implements the quote lifecycle: drafting, editing, sending,
// status transitions, archiving and the expiry sweep.
type Service interface {
	Create(ctx context.Context, actor permissions.Actor, input CreateQuoteInput, meta RequestMeta) (*models.Quote, error)
	Get(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, actor permissions.Actor, params pagination.Params, filters ListFilters) (*QuoteList, error)
	Update(ctx context.Context, actor permissions.Actor, input UpdateQuoteInput, meta RequestMeta) (*models.Quote, error)
	Send(ctx context.Context, actor permissions.Actor, input SendQuoteInput, meta RequestMeta) (*SendResult, error)
	RetryEmail(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, meta RequestMeta) (*SendResult, error)
	TransitionStatus(ctx context.Context, actor permissions.Actor, input TransitionInput, meta RequestMeta) (*models.Quote, error)
	Archive(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, meta RequestMeta) (*models.Quote, error)
	AuditTrail(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo       Repository
	dispatcher emailDispatcher
	tokens     tokenIssuer
	auditor    audit.Recorder
	logg       *logger.Logger
	tracking   config.TrackingConfig
	validity   time.Duration
	now        func() time.Time
}

// NewService builds the quotes service with the required dependencies.
func NewService(repo Repository, dispatcher emailDispatcher, tokens tokenIssuer, auditor audit.Recorder, logg *logger.Logger, tracking config.TrackingConfig, quotesCfg config.QuotesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("email dispatcher required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	validity := quotesCfg.ValidityWindow
	if validity <= 0 {
		validity = 30 * 24 * time.Hour
	}
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		tokens:     tokens,
		auditor:    auditor,
		logg:       logg,
		tracking:   tracking,
		validity:   validity,
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor permissions.Actor, input CreateQuoteInput, meta RequestMeta) (*models.Quote, error) {
	if err := s.authorize(ctx, actor, permissions.OpCreateQuote, nil, meta); err != nil {
		return nil, err
	}
	if input.EnquiryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enquiry id required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if strings.TrimSpace(input.RecipientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient email required")
	}
	if strings.TrimSpace(input.HotelName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hotel name required")
	}
	if input.ArrivalDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "arrival date required")
	}

	breakdown, err := pricing.ComputeTotal(pricing.Input{
		PackagePriceCents: input.PackagePriceCents,
		Currency:          input.Currency,
		People:            input.People,
		Rooms:             input.Rooms,
		Nights:            input.Nights,
		Events:            input.Events,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	quote := &models.Quote{
		ID:                  id,
		Reference:           newReference(id),
		CreatedByID:         actor.ID,
		EnquiryID:           input.EnquiryID,
		CustomerName:        input.CustomerName,
		RecipientEmail:      strings.ToLower(strings.TrimSpace(input.RecipientEmail)),
		HotelName:           input.HotelName,
		ArrivalDate:         input.ArrivalDate,
		Nights:              input.Nights,
		People:              input.People,
		Rooms:               input.Rooms,
		Currency:            input.Currency,
		PackagePriceCents:   input.PackagePriceCents,
		TotalPriceCents:     breakdown.TotalCents,
		WhatsIncluded:       input.WhatsIncluded,
		TransferIncluded:    input.TransferIncluded,
		SuperPackage:        input.SuperPackage,
		Events:              input.Events,
		Version:             1,
		Status:              enums.QuoteStatusDraft,
		EmailDeliveryStatus: enums.EmailDeliveryPending,
	}

	created, err := s.repo.Create(ctx, quote)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
	}

	s.audit(ctx, actor, created.ID, enums.AuditActionQuoteCreated, true, "", meta, types.JSONMap{
		"reference":         created.Reference,
		"total_price_cents": created.TotalPriceCents,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID) (*models.Quote, error) {
	if !permissions.CanPerform(actor, permissions.OpViewQuote) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view quotes")
	}
	quote, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.MemberRoleAgent && quote.CreatedByID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "quote belongs to another agent")
	}
	return quote, nil
}

func (s *service) List(ctx context.Context, actor permissions.Actor, params pagination.Params, filters ListFilters) (*QuoteList, error) {
	if !permissions.CanPerform(actor, permissions.OpViewQuote) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view quotes")
	}
	// agents only ever see their own quotes
	if actor.Role == enums.MemberRoleAgent {
		actorID := actor.ID
		filters.CreatedByID = &actorID
	}
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, actor permissions.Actor, input UpdateQuoteInput, meta RequestMeta) (*models.Quote, error) {
	if err := s.authorize(ctx, actor, permissions.OpUpdateQuote, &input.QuoteID, meta); err != nil {
		return nil, err
	}
	if input.ExpectedVersion < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected version required")
	}

	quote, err := s.load(ctx, input.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote.ArchivedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "archived quotes are read-only")
	}
	if quote.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is in a terminal status").
			WithDetails(map[string]any{"status": quote.Status})
	}

	merged := applyUpdate(*quote, input)
	breakdown, err := pricing.ComputeTotal(pricing.Input{
		PackagePriceCents: merged.PackagePriceCents,
		Currency:          merged.Currency,
		People:            merged.People,
		Rooms:             merged.Rooms,
		Nights:            merged.Nights,
		Events:            merged.Events,
	})
	if err != nil {
		return nil, err
	}

	// version moves only once the quote has been exposed to the customer
	newVersion := quote.Version
	if quote.EmailSent {
		newVersion++
	}

	updates := map[string]any{
		"customer_name":       merged.CustomerName,
		"recipient_email":     merged.RecipientEmail,
		"hotel_name":          merged.HotelName,
		"arrival_date":        merged.ArrivalDate,
		"nights":              merged.Nights,
		"people":              merged.People,
		"rooms":               merged.Rooms,
		"currency":            merged.Currency,
		"package_price_cents": merged.PackagePriceCents,
		"total_price_cents":   breakdown.TotalCents,
		"whats_included":      merged.WhatsIncluded,
		"transfer_included":   merged.TransferIncluded,
		"super_package":       merged.SuperPackage,
		"events":              merged.Events,
		"version":             newVersion,
	}

	rows, err := s.repo.UpdateVersioned(ctx, input.QuoteID, input.ExpectedVersion, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStaleVersion, "quote was modified since it was loaded").
			WithDetails(map[string]any{"expected_version": input.ExpectedVersion})
	}

	updated, err := s.load(ctx, input.QuoteID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, updated.ID, enums.AuditActionQuoteUpdated, true, "", meta, types.JSONMap{
		"version":           updated.Version,
		"total_price_cents": updated.TotalPriceCents,
	})
	return updated, nil
}

func (s *service) Send(ctx context.Context, actor permissions.Actor, input SendQuoteInput, meta RequestMeta) (*SendResult, error) {
	if err := s.authorize(ctx, actor, permissions.OpSendQuote, &input.QuoteID, meta); err != nil {
		return nil, err
	}

	quote, err := s.load(ctx, input.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote.ArchivedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "archived quotes cannot be sent")
	}

	resendFromViewed := false
	switch quote.Status {
	case enums.QuoteStatusDraft, enums.QuoteStatusSent:
		// first send, or resend of an unviewed quote
	case enums.QuoteStatusViewed:
		if !input.Resend {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote was already viewed; set resend to send again")
		}
		resendFromViewed = true
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote cannot be sent in its current status").
			WithDetails(map[string]any{"status": quote.Status})
	}

	token, err := s.tokens.Issue(quote.ID, quote.RecipientEmail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue tracking token")
	}

	msg, err := buildQuoteEmail(quote, s.trackingLink(token))
	if err != nil {
		return nil, err
	}

	out, dispatchErr := s.dispatcher.Dispatch(ctx, email.KindSend, msg)
	now := s.now()
	if dispatchErr != nil {
		// a failed resend of an already-delivered quote must not regress
		// the delivery status; delivered is final
		if quote.EmailDeliveryStatus.CanTransitionTo(enums.EmailDeliveryFailed) {
			if updateErr := s.repo.UpdateEmailState(ctx, quote.ID, map[string]any{
				"email_delivery_status": enums.EmailDeliveryFailed,
			}); updateErr != nil && s.logg != nil {
				s.logg.Error(s.logg.WithQuoteID(ctx, quote.ID.String()), "quotes.record_email_failure", updateErr)
			}
		}
		s.audit(ctx, actor, quote.ID, enums.AuditActionEmailFailed, false, dispatchErr.Error(), meta, types.JSONMap{
			"attempts": out.Attempts,
		})
		return nil, dispatchErr
	}

	updates := map[string]any{
		"status":                enums.QuoteStatusSent,
		"email_sent":            true,
		"email_sent_at":         now,
		"email_delivery_status": enums.EmailDeliveryDelivered,
		"email_message_id":      out.MessageID,
	}
	// a resend after a view re-exposes the quote, which counts as a revision
	if resendFromViewed {
		updates["version"] = quote.Version + 1
	}
	if err := s.repo.UpdateEmailState(ctx, quote.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record email delivery")
	}

	s.audit(ctx, actor, quote.ID, enums.AuditActionEmailSent, true, "", meta, types.JSONMap{
		"message_id": out.MessageID,
		"attempts":   out.Attempts,
		"resend":     quote.Status != enums.QuoteStatusDraft,
	})

	updated, err := s.load(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	return &SendResult{Quote: updated, MessageID: out.MessageID, Attempts: out.Attempts}, nil
}

func (s *service) RetryEmail(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, meta RequestMeta) (*SendResult, error) {
	if err := s.authorize(ctx, actor, permissions.OpRetryEmail, &quoteID, meta); err != nil {
		return nil, err
	}

	quote, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.ArchivedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "archived quotes cannot be sent")
	}
	if quote.EmailDeliveryStatus == enums.EmailDeliveryDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeEmailAlreadySent, "quote email was already delivered")
	}
	if quote.EmailDeliveryStatus != enums.EmailDeliveryFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no failed delivery to retry")
	}

	token, err := s.tokens.Issue(quote.ID, quote.RecipientEmail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue tracking token")
	}
	msg, err := buildQuoteEmail(quote, s.trackingLink(token))
	if err != nil {
		return nil, err
	}

	out, dispatchErr := s.dispatcher.Dispatch(ctx, email.KindRetry, msg)
	if dispatchErr != nil {
		s.audit(ctx, actor, quote.ID, enums.AuditActionEmailFailed, false, dispatchErr.Error(), meta, types.JSONMap{
			"attempts": out.Attempts,
			"kind":     email.KindRetry,
		})
		return nil, dispatchErr
	}

	updates := map[string]any{
		"email_sent":            true,
		"email_sent_at":         s.now(),
		"email_delivery_status": enums.EmailDeliveryDelivered,
		"email_message_id":      out.MessageID,
	}
	if quote.Status == enums.QuoteStatusDraft {
		updates["status"] = enums.QuoteStatusSent
	}
	if err := s.repo.UpdateEmailState(ctx, quote.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record email delivery")
	}

	s.audit(ctx, actor, quote.ID, enums.AuditActionEmailRetried, true, "", meta, types.JSONMap{
		"message_id": out.MessageID,
		"attempts":   out.Attempts,
	})

	updated, err := s.load(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	return &SendResult{Quote: updated, MessageID: out.MessageID, Attempts: out.Attempts}, nil
}

func (s *service) TransitionStatus(ctx context.Context, actor permissions.Actor, input TransitionInput, meta RequestMeta) (*models.Quote, error) {
	if err := s.authorize(ctx, actor, permissions.OpTransitionStatus, &input.QuoteID, meta); err != nil {
		return nil, err
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status")
	}
	// sent and viewed are owned by the send and tracking flows
	if input.Target == enums.QuoteStatusSent || input.Target == enums.QuoteStatusViewed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is set by the send and tracking flows")
	}

	quote, err := s.load(ctx, input.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote.ArchivedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "archived quotes are read-only")
	}
	if !quote.Status.CanTransitionTo(input.Target) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition disallowed").
			WithDetails(map[string]any{"from": quote.Status, "to": input.Target})
	}

	if err := s.repo.UpdateEmailState(ctx, quote.ID, map[string]any{"status": input.Target}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote status")
	}

	payload := types.JSONMap{"from": string(quote.Status), "to": string(input.Target)}
	if input.Note != "" {
		payload["note"] = input.Note
	}
	s.audit(ctx, actor, quote.ID, enums.AuditActionQuoteStatus, true, "", meta, payload)

	return s.load(ctx, quote.ID)
}

func (s *service) Archive(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, meta RequestMeta) (*models.Quote, error) {
	if err := s.authorize(ctx, actor, permissions.OpArchiveQuote, &quoteID, meta); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, quoteID); err != nil {
		return nil, err
	}

	rows, err := s.repo.Archive(ctx, quoteID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive quote")
	}
	if rows > 0 {
		s.audit(ctx, actor, quoteID, enums.AuditActionQuoteArchived, true, "", meta, nil)
	}
	return s.load(ctx, quoteID)
}

func (s *service) AuditTrail(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	if !permissions.CanPerform(actor, permissions.OpViewAuditTrail) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view the audit trail")
	}
	if _, err := s.load(ctx, quoteID); err != nil {
		return nil, err
	}
	entries, err := s.auditor.ListByQuote(ctx, quoteID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return entries, nil
}

// ExpireStale sweeps quotes whose validity window has lapsed. Called from a
// ticker in the api binary; actor-less, so entries carry the system actor.
func (s *service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.validity)
	ids, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale quotes")
	}
	for _, id := range ids {
		quoteID := id
		s.auditor.Record(ctx, audit.Entry{
			QuoteID:    &quoteID,
			ActorEmail: SystemActor,
			ActorRole:  SystemActor,
			Action:     enums.AuditActionQuoteExpired,
			Success:    true,
			Payload:    types.JSONMap{"cutoff": cutoff.UTC().Format(time.RFC3339)},
		})
	}
	return len(ids), nil
}

// authorize centralizes the permission gate and audits every denial.
func (s *service) authorize(ctx context.Context, actor permissions.Actor, op permissions.Operation, quoteID *uuid.UUID, meta RequestMeta) error {
	if permissions.CanPerform(actor, op) {
		return nil
	}
	actorID := actor.ID
	s.auditor.Record(ctx, audit.Entry{
		QuoteID:       quoteID,
		ActorID:       &actorID,
		ActorEmail:    actor.Email,
		ActorRole:     string(actor.Role),
		Action:        enums.AuditActionPermissionDenied,
		Success:       false,
		FailureReason: string(op),
		ClientIP:      meta.ClientIP,
		UserAgent:     meta.UserAgent,
	})
	return pkgerrors.New(pkgerrors.CodeForbidden, "operation not permitted").
		WithDetails(map[string]any{"operation": op})
}

func (s *service) audit(ctx context.Context, actor permissions.Actor, quoteID uuid.UUID, action enums.AuditAction, success bool, reason string, meta RequestMeta, payload types.JSONMap) {
	actorID := actor.ID
	id := quoteID
	s.auditor.Record(ctx, audit.Entry{
		QuoteID:       &id,
		ActorID:       &actorID,
		ActorEmail:    actor.Email,
		ActorRole:     string(actor.Role),
		Action:        action,
		Success:       success,
		FailureReason: reason,
		ClientIP:      meta.ClientIP,
		UserAgent:     meta.UserAgent,
		Payload:       payload,
	})
}

func (s *service) load(ctx context.Context, quoteID uuid.UUID) (*models.Quote, error) {
	if quoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	return quote, nil
}

func (s *service) trackingLink(token string) string {
	return strings.TrimRight(s.tracking.PublicBaseURL, "/") + "/t/" + token
}

// newReference derives the human-facing quote reference from the row id.
func newReference(id uuid.UUID) string {
	return "ATQ-" + strings.ToUpper(hex.EncodeToString(id[0:4]))
}

func applyUpdate(quote models.Quote, input UpdateQuoteInput) models.Quote {
	if input.CustomerName != nil {
		quote.CustomerName = *input.CustomerName
	}
	if input.RecipientEmail != nil {
		quote.RecipientEmail = strings.ToLower(strings.TrimSpace(*input.RecipientEmail))
	}
	if input.HotelName != nil {
		quote.HotelName = *input.HotelName
	}
	if input.ArrivalDate != nil {
		quote.ArrivalDate = *input.ArrivalDate
	}
	if input.Nights != nil {
		quote.Nights = *input.Nights
	}
	if input.People != nil {
		quote.People = *input.People
	}
	if input.Rooms != nil {
		quote.Rooms = *input.Rooms
	}
	if input.Currency != nil {
		quote.Currency = *input.Currency
	}
	if input.PackagePriceCents != nil {
		quote.PackagePriceCents = *input.PackagePriceCents
	}
	if input.WhatsIncluded != nil {
		quote.WhatsIncluded = *input.WhatsIncluded
	}
	if input.TransferIncluded != nil {
		quote.TransferIncluded = *input.TransferIncluded
	}
	if input.SuperPackage != nil {
		quote.SuperPackage = *input.SuperPackage
	}
	if input.Events != nil {
		quote.Events = *input.Events
	}
	return quote
}
