package controllers

import (
	"net/http"
	"strconv"

	"github.com/atlastravel/backoffice-backend/api/responses"
	"github.com/atlastravel/backoffice-backend/api/validators"
	"github.com/atlastravel/backoffice-backend/internal/export"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

// ExportQuotes streams the filtered quote dataset as a CSV or JSON download.
func ExportQuotes(svc export.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := quotes.ExportFilters{}
		if filters.CreatedFrom, err = validators.ParseQueryTime(r, "created_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.CreatedTo, err = validators.ParseQueryTime(r, "created_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.MinTotalCents, err = validators.ParseQueryInt64(r, "min_total_cents"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.MaxTotalCents, err = validators.ParseQueryInt64(r, "max_total_cents"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.BookingInterest, err = validators.ParseQueryBool(r, "booking_interest"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			filters.Status = &raw
		}
		if raw := r.URL.Query().Get("email_status"); raw != "" {
			filters.EmailStatus = &raw
		}

		result, err := svc.Export(r.Context(), actor, export.Request{
			Format:  format,
			Filters: filters,
		}, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
		w.Header().Set("X-Record-Count", strconv.Itoa(result.RecordCount))
		if result.MaxRecordsReached {
			w.Header().Set("X-Max-Records-Reached", "true")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
	}
}
