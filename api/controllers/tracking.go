package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlastravel/backoffice-backend/api/middleware"
	"github.com/atlastravel/backoffice-backend/internal/tracking"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

// TrackQuoteClick handles the link embedded in quote emails. The customer is
// always redirected, whatever the token verdict; failures surface only in the
// audit trail.
func TrackQuoteClick(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		result := svc.RecordClick(r.Context(), token, middleware.ClientIP(r), r.UserAgent())
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// TrackBookingInterest records the customer's intent signal from the interest
// page and redirects back to the public site.
func TrackBookingInterest(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		result := svc.RecordBookingInterest(r.Context(), token, middleware.ClientIP(r), r.UserAgent())
		http.Redirect(w, r, result.RedirectURL, http.StatusSeeOther)
	}
}
