package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/internal/tracking"
)

type stubTrackingService struct {
	clickToken    string
	interestToken string
	result        tracking.Result
}

func (s *stubTrackingService) RecordClick(ctx context.Context, token, clientIP, userAgent string) tracking.Result {
	s.clickToken = token
	return s.result
}

func (s *stubTrackingService) RecordBookingInterest(ctx context.Context, token, clientIP, userAgent string) tracking.Result {
	s.interestToken = token
	return s.result
}

func trackingTestRouter(svc tracking.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/t/{token}", TrackQuoteClick(svc, nil))
	r.Post("/t/{token}/interest", TrackBookingInterest(svc, nil))
	return r
}

func TestTrackQuoteClickRedirects(t *testing.T) {
	svc := &stubTrackingService{result: tracking.Result{
		Success:     true,
		QuoteID:     uuid.New(),
		RedirectURL: "https://www.atlastravel.example/holidays/interested",
	}}
	router := trackingTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/t/some-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://www.atlastravel.example/holidays/interested" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if svc.clickToken != "some-token" {
		t.Fatalf("token not forwarded, got %q", svc.clickToken)
	}
}

func TestTrackQuoteClickRedirectsEvenWhenRejected(t *testing.T) {
	svc := &stubTrackingService{result: tracking.Result{
		Success:     false,
		RedirectURL: "https://www.atlastravel.example/enquiries",
	}}
	router := trackingTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/t/garbage", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("rejected tokens still redirect, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://www.atlastravel.example/enquiries" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestTrackBookingInterestRedirects(t *testing.T) {
	svc := &stubTrackingService{result: tracking.Result{
		Success:     true,
		QuoteID:     uuid.New(),
		RedirectURL: "https://www.atlastravel.example/holidays/interested",
	}}
	router := trackingTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/t/some-token/interest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if svc.interestToken != "some-token" {
		t.Fatalf("token not forwarded, got %q", svc.interestToken)
	}
}
