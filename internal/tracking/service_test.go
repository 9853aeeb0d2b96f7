package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/metrics"
)

type stubEngagementStore struct {
	viewed       map[uuid.UUID]int
	interested   map[uuid.UUID]time.Time
	markErr      error
	interestErr  error
	alreadySeen  map[uuid.UUID]bool
	alreadyKeen  map[uuid.UUID]bool
}

func newStubEngagementStore() *stubEngagementStore {
	return &stubEngagementStore{
		viewed:      map[uuid.UUID]int{},
		interested:  map[uuid.UUID]time.Time{},
		alreadySeen: map[uuid.UUID]bool{},
		alreadyKeen: map[uuid.UUID]bool{},
	}
}

func (s *stubEngagementStore) MarkViewed(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	s.viewed[quoteID]++
	if s.alreadySeen[quoteID] {
		return false, nil
	}
	s.alreadySeen[quoteID] = true
	return true, nil
}

func (s *stubEngagementStore) ExpressBookingInterest(ctx context.Context, quoteID uuid.UUID, at time.Time) (bool, error) {
	if s.interestErr != nil {
		return false, s.interestErr
	}
	if s.alreadyKeen[quoteID] {
		return false, nil
	}
	s.alreadyKeen[quoteID] = true
	s.interested[quoteID] = at
	return true, nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (r *recordingAuditor) Record(ctx context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) ListByQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	return nil, nil
}

func newTestService(t *testing.T, store engagementStore, auditor audit.Recorder) (Service, *TokenService) {
	t.Helper()
	cfg := config.TrackingConfig{
		Secret:      "test-secret",
		TokenTTL:    time.Hour,
		InterestURL: "https://example.test/interested",
		FallbackURL: "https://example.test/enquiries",
	}
	tokens, err := NewTokenService(cfg)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc, err := NewService(tokens, store, auditor, metrics.NewQuoteMetrics(nil), logger.New(logger.Options{ServiceName: "test"}), cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, tokens
}

func TestRecordClickValidToken(t *testing.T) {
	store := newStubEngagementStore()
	auditor := &recordingAuditor{}
	svc, tokens := newTestService(t, store, auditor)

	quoteID := uuid.New()
	token, _ := tokens.Issue(quoteID, "customer@example.com")

	result := svc.RecordClick(context.Background(), token, "1.2.3.4", "mail-client")
	if !result.Success || result.QuoteID != quoteID {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.RedirectURL != "https://example.test/interested" {
		t.Fatalf("expected interest redirect, got %s", result.RedirectURL)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != enums.AuditActionQuoteViewed {
		t.Fatalf("expected one quote_viewed entry, got %+v", auditor.entries)
	}
	if auditor.entries[0].ClientIP != "1.2.3.4" {
		t.Fatalf("audit entry should carry the client ip")
	}
}

func TestRecordClickIdempotentTransition(t *testing.T) {
	store := newStubEngagementStore()
	auditor := &recordingAuditor{}
	svc, tokens := newTestService(t, store, auditor)

	quoteID := uuid.New()
	token, _ := tokens.Issue(quoteID, "customer@example.com")

	first := svc.RecordClick(context.Background(), token, "1.2.3.4", "ua")
	second := svc.RecordClick(context.Background(), token, "1.2.3.4", "ua")
	if !first.Success || !second.Success {
		t.Fatalf("both clicks should succeed")
	}
	if store.viewed[quoteID] != 2 {
		t.Fatalf("expected two store calls, got %d", store.viewed[quoteID])
	}
	// second entry records that the status did not change again
	if changed, ok := auditor.entries[1].Payload["status_changed"].(bool); !ok || changed {
		t.Fatalf("second click should record status_changed=false: %+v", auditor.entries[1].Payload)
	}
}

func TestRecordClickInvalidTokenRedirectsToFallback(t *testing.T) {
	store := newStubEngagementStore()
	auditor := &recordingAuditor{}
	svc, _ := newTestService(t, store, auditor)

	result := svc.RecordClick(context.Background(), "garbage-token", "9.9.9.9", "bot")
	if result.Success {
		t.Fatalf("invalid token must not succeed")
	}
	if result.RedirectURL != "https://example.test/enquiries" {
		t.Fatalf("expected fallback redirect, got %s", result.RedirectURL)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != enums.AuditActionTokenRejected {
		t.Fatalf("expected token_rejected audit entry, got %+v", auditor.entries)
	}
	if auditor.entries[0].FailureReason != string(ReasonMalformed) {
		t.Fatalf("expected MALFORMED reason, got %q", auditor.entries[0].FailureReason)
	}
	if len(store.viewed) != 0 {
		t.Fatalf("store must not be touched on invalid tokens")
	}
}

func TestRecordClickStoreFailureStillRedirects(t *testing.T) {
	store := newStubEngagementStore()
	store.markErr = errors.New("db down")
	svc, tokens := newTestService(t, store, &recordingAuditor{})

	token, _ := tokens.Issue(uuid.New(), "customer@example.com")
	result := svc.RecordClick(context.Background(), token, "1.2.3.4", "ua")
	if result.Success {
		t.Fatalf("store failure should not report success")
	}
	if result.RedirectURL == "" {
		t.Fatalf("customer must always get a redirect")
	}
}

func TestRecordBookingInterest(t *testing.T) {
	store := newStubEngagementStore()
	auditor := &recordingAuditor{}
	svc, tokens := newTestService(t, store, auditor)

	quoteID := uuid.New()
	token, _ := tokens.Issue(quoteID, "customer@example.com")

	result := svc.RecordBookingInterest(context.Background(), token, "1.2.3.4", "ua")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if _, ok := store.interested[quoteID]; !ok {
		t.Fatalf("interest timestamp should be recorded")
	}
	if auditor.entries[0].Action != enums.AuditActionBookingInterest {
		t.Fatalf("expected booking_interest entry, got %s", auditor.entries[0].Action)
	}

	// repeating is a success no-op
	again := svc.RecordBookingInterest(context.Background(), token, "1.2.3.4", "ua")
	if !again.Success {
		t.Fatalf("repeat interest should still succeed")
	}
	if already, ok := auditor.entries[1].Payload["already_expressed"].(bool); !ok || !already {
		t.Fatalf("repeat should record already_expressed=true")
	}
}
