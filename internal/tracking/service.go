package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/metrics"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// engagementStore is the narrow slice of quote persistence the recorder may
// touch: status (sent→viewed) and the booking-interest sub-object, nothing else.
type engagementStore interface {
	MarkViewed(ctx context.Context, quoteID uuid.UUID) (changed bool, err error)
	ExpressBookingInterest(ctx context.Context, quoteID uuid.UUID, at time.Time) (changed bool, err error)
}

// Result is what the public click handlers get back. Success=false never
// carries an error; the customer is always redirected somewhere safe.
type Result struct {
	Success     bool
	QuoteID     uuid.UUID
	RedirectURL string
}

// Service validates click tokens and records engagement against quotes.
type Service interface {
	RecordClick(ctx context.Context, token, clientIP, userAgent string) Result
	RecordBookingInterest(ctx context.Context, token, clientIP, userAgent string) Result
}

type service struct {
	tokens   *TokenService
	store    engagementStore
	auditor  audit.Recorder
	metrics  *metrics.QuoteMetrics
	logg     *logger.Logger
	interest string
	fallback string
	now      func() time.Time
}

// NewService builds the engagement recorder.
func NewService(tokens *TokenService, store engagementStore, auditor audit.Recorder, qm *metrics.QuoteMetrics, logg *logger.Logger, cfg config.TrackingConfig) (Service, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token service required")
	}
	if store == nil {
		return nil, fmt.Errorf("engagement store required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		tokens:   tokens,
		store:    store,
		auditor:  auditor,
		metrics:  qm,
		logg:     logg,
		interest: cfg.InterestURL,
		fallback: cfg.FallbackURL,
		now:      time.Now,
	}, nil
}

func (s *service) RecordClick(ctx context.Context, token, clientIP, userAgent string) Result {
	validation := s.tokens.Validate(token)
	if !validation.Valid {
		return s.rejected(ctx, validation, clientIP, userAgent)
	}

	changed, err := s.store.MarkViewed(ctx, validation.QuoteID)
	if err != nil {
		// the customer still gets the interest page; the miss is internal
		if s.logg != nil {
			s.logg.Error(s.logg.WithQuoteID(ctx, validation.QuoteID.String()), "tracking.mark_viewed_failed", err)
		}
		return Result{Success: false, QuoteID: validation.QuoteID, RedirectURL: s.interest}
	}

	s.metrics.IncEngagement("view")
	s.auditor.Record(ctx, audit.Entry{
		QuoteID:   &validation.QuoteID,
		Action:    enums.AuditActionQuoteViewed,
		Success:   true,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Payload:   types.JSONMap{"status_changed": changed},
	})

	return Result{Success: true, QuoteID: validation.QuoteID, RedirectURL: s.interest}
}

func (s *service) RecordBookingInterest(ctx context.Context, token, clientIP, userAgent string) Result {
	validation := s.tokens.Validate(token)
	if !validation.Valid {
		return s.rejected(ctx, validation, clientIP, userAgent)
	}

	changed, err := s.store.ExpressBookingInterest(ctx, validation.QuoteID, s.now())
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithQuoteID(ctx, validation.QuoteID.String()), "tracking.booking_interest_failed", err)
		}
		return Result{Success: false, QuoteID: validation.QuoteID, RedirectURL: s.fallback}
	}

	s.metrics.IncEngagement("interest")
	s.auditor.Record(ctx, audit.Entry{
		QuoteID:   &validation.QuoteID,
		Action:    enums.AuditActionBookingInterest,
		Success:   true,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Payload:   types.JSONMap{"already_expressed": !changed},
	})

	return Result{Success: true, QuoteID: validation.QuoteID, RedirectURL: s.interest}
}

// rejected audits the failed validation without ever surfacing it outward.
func (s *service) rejected(ctx context.Context, validation Validation, clientIP, userAgent string) Result {
	s.metrics.IncEngagement("rejected_token")
	s.auditor.Record(ctx, audit.Entry{
		Action:        enums.AuditActionTokenRejected,
		Success:       false,
		FailureReason: string(validation.Reason),
		ClientIP:      clientIP,
		UserAgent:     userAgent,
	})
	return Result{Success: false, RedirectURL: s.fallback}
}
