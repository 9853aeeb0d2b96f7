package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/api/middleware"
	"github.com/atlastravel/backoffice-backend/api/responses"
	"github.com/atlastravel/backoffice-backend/api/validators"
	"github.com/atlastravel/backoffice-backend/internal/permissions"
	"github.com/atlastravel/backoffice-backend/internal/pricing"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/pagination"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

const arrivalDateLayout = "2006-01-02"

type quoteEventRequest struct {
	Name      string `json:"name" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Currency  string `json:"currency" validate:"required"`
	PerPerson bool   `json:"per_person"`
}

type createQuoteRequest struct {
	EnquiryID      string `json:"enquiry_id" validate:"required,uuid"`
	CustomerName   string `json:"customer_name" validate:"required,max=200"`
	RecipientEmail string `json:"recipient_email" validate:"required,email"`

	HotelName        string              `json:"hotel_name" validate:"required,max=200"`
	ArrivalDate      string              `json:"arrival_date" validate:"required"`
	Nights           int                 `json:"nights" validate:"required,min=1"`
	People           int                 `json:"people" validate:"required,min=1"`
	Rooms            int                 `json:"rooms" validate:"required,min=1"`
	Currency         string              `json:"currency" validate:"required"`
	PackagePrice     string              `json:"package_price" validate:"required"`
	WhatsIncluded    string              `json:"whats_included"`
	TransferIncluded bool                `json:"transfer_included"`
	SuperPackage     bool                `json:"super_package"`
	Events           []quoteEventRequest `json:"events" validate:"dive"`
}

type updateQuoteRequest struct {
	ExpectedVersion int `json:"expected_version" validate:"required,min=1"`

	CustomerName   *string `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	RecipientEmail *string `json:"recipient_email,omitempty" validate:"omitempty,email"`

	HotelName        *string              `json:"hotel_name,omitempty" validate:"omitempty,max=200"`
	ArrivalDate      *string              `json:"arrival_date,omitempty"`
	Nights           *int                 `json:"nights,omitempty" validate:"omitempty,min=1"`
	People           *int                 `json:"people,omitempty" validate:"omitempty,min=1"`
	Rooms            *int                 `json:"rooms,omitempty" validate:"omitempty,min=1"`
	Currency         *string              `json:"currency,omitempty"`
	PackagePrice     *string              `json:"package_price,omitempty"`
	WhatsIncluded    *string              `json:"whats_included,omitempty"`
	TransferIncluded *bool                `json:"transfer_included,omitempty"`
	SuperPackage     *bool                `json:"super_package,omitempty"`
	Events           *[]quoteEventRequest `json:"events,omitempty" validate:"omitempty,dive"`
}

type sendQuoteRequest struct {
	Resend bool `json:"resend"`
}

type transitionQuoteRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type quoteEventResponse struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Currency  string `json:"currency"`
	PerPerson bool   `json:"per_person"`
}

type quoteResponse struct {
	ID             uuid.UUID `json:"id"`
	Reference      string    `json:"reference"`
	EnquiryID      uuid.UUID `json:"enquiry_id"`
	CreatedByID    uuid.UUID `json:"created_by_id"`
	CustomerName   string    `json:"customer_name"`
	RecipientEmail string    `json:"recipient_email"`

	HotelName        string               `json:"hotel_name"`
	ArrivalDate      string               `json:"arrival_date"`
	Nights           int                  `json:"nights"`
	People           int                  `json:"people"`
	Rooms            int                  `json:"rooms"`
	Currency         string               `json:"currency"`
	PackagePrice     string               `json:"package_price"`
	TotalPrice       string               `json:"total_price"`
	WhatsIncluded    string               `json:"whats_included,omitempty"`
	TransferIncluded bool                 `json:"transfer_included"`
	SuperPackage     bool                 `json:"super_package"`
	Events           []quoteEventResponse `json:"events,omitempty"`

	Version int    `json:"version"`
	Status  string `json:"status"`

	EmailSent           bool       `json:"email_sent"`
	EmailSentAt         *time.Time `json:"email_sent_at,omitempty"`
	EmailDeliveryStatus string     `json:"email_delivery_status"`

	BookingInterest            bool    `json:"booking_interest"`
	BookingInterestExpressedAt *string `json:"booking_interest_expressed_at,omitempty"`

	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toQuoteResponse(quote *models.Quote) quoteResponse {
	resp := quoteResponse{
		ID:                  quote.ID,
		Reference:           quote.Reference,
		EnquiryID:           quote.EnquiryID,
		CreatedByID:         quote.CreatedByID,
		CustomerName:        quote.CustomerName,
		RecipientEmail:      quote.RecipientEmail,
		HotelName:           quote.HotelName,
		ArrivalDate:         quote.ArrivalDate.UTC().Format(arrivalDateLayout),
		Nights:              quote.Nights,
		People:              quote.People,
		Rooms:               quote.Rooms,
		Currency:            string(quote.Currency),
		PackagePrice:        pricing.FormatCents(quote.PackagePriceCents),
		TotalPrice:          pricing.FormatCents(quote.TotalPriceCents),
		WhatsIncluded:       quote.WhatsIncluded,
		TransferIncluded:    quote.TransferIncluded,
		SuperPackage:        quote.SuperPackage,
		Version:             quote.Version,
		Status:              string(quote.Status),
		EmailSent:           quote.EmailSent,
		EmailSentAt:         quote.EmailSentAt,
		EmailDeliveryStatus: string(quote.EmailDeliveryStatus),
		BookingInterest:     quote.BookingInterest.Expressed,
		ArchivedAt:          quote.ArchivedAt,
		CreatedAt:           quote.CreatedAt,
		UpdatedAt:           quote.UpdatedAt,
	}
	resp.BookingInterestExpressedAt = quote.BookingInterest.ExpressedAt
	for _, event := range quote.Events {
		resp.Events = append(resp.Events, quoteEventResponse{
			Name:      event.Name,
			UnitPrice: pricing.FormatCents(event.UnitPriceCents),
			Currency:  string(event.Currency),
			PerPerson: event.PerPerson,
		})
	}
	return resp
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (permissions.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return permissions.Actor{}, false
	}
	return actor, true
}

func requestMeta(r *http.Request) quotes.RequestMeta {
	return quotes.RequestMeta{
		ClientIP:  middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func quoteIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "quoteId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id must be a uuid").WithDetails(map[string]string{"quote_id": raw})
	}
	return id, nil
}

func parseEvents(events []quoteEventRequest) (types.EventSelections, error) {
	if len(events) == 0 {
		return nil, nil
	}
	parsed := make(types.EventSelections, 0, len(events))
	for _, event := range events {
		cents, err := pricing.ParseAmount(event.UnitPrice)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event price").WithDetails(map[string]string{"event": event.Name})
		}
		currency, err := enums.ParseCurrency(event.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event currency").WithDetails(map[string]string{"event": event.Name})
		}
		parsed = append(parsed, types.EventSelection{
			Name:           event.Name,
			UnitPriceCents: cents,
			Currency:       currency,
			PerPerson:      event.PerPerson,
		})
	}
	return parsed, nil
}

func CreateQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		enquiryID, err := uuid.Parse(body.EnquiryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "enquiry id must be a uuid"))
			return
		}
		arrival, err := time.Parse(arrivalDateLayout, body.ArrivalDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "arrival date must be YYYY-MM-DD"))
			return
		}
		currency, err := enums.ParseCurrency(body.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}
		packageCents, err := pricing.ParseAmount(body.PackagePrice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package price"))
			return
		}
		events, err := parseEvents(body.Events)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Create(r.Context(), actor, quotes.CreateQuoteInput{
			EnquiryID:         enquiryID,
			CustomerName:      body.CustomerName,
			RecipientEmail:    body.RecipientEmail,
			HotelName:         body.HotelName,
			ArrivalDate:       arrival,
			Nights:            body.Nights,
			People:            body.People,
			Rooms:             body.Rooms,
			Currency:          currency,
			PackagePriceCents: packageCents,
			WhatsIncluded:     body.WhatsIncluded,
			TransferIncluded:  body.TransferIncluded,
			SuperPackage:      body.SuperPackage,
			Events:            events,
		}, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toQuoteResponse(quote))
	}
}

func ListQuotes(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := quotes.ListFilters{}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, parseErr := enums.ParseQuoteStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		if raw := r.URL.Query().Get("email_status"); raw != "" {
			status, parseErr := enums.ParseEmailDeliveryStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid email status filter"))
				return
			}
			filters.EmailStatus = &status
		}
		includeArchived, err := validators.ParseQueryBool(r, "include_archived")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if includeArchived != nil {
			filters.IncludeArchived = *includeArchived
		}

		list, err := svc.List(r.Context(), actor, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]quoteResponse, 0, len(list.Quotes))
		for i := range list.Quotes {
			items = append(items, toQuoteResponse(&list.Quotes[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"quotes":      items,
			"next_cursor": list.NextCursor,
		})
	}
}

func GetQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Get(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

func UpdateQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := quotes.UpdateQuoteInput{
			QuoteID:          quoteID,
			ExpectedVersion:  body.ExpectedVersion,
			CustomerName:     body.CustomerName,
			RecipientEmail:   body.RecipientEmail,
			HotelName:        body.HotelName,
			Nights:           body.Nights,
			People:           body.People,
			Rooms:            body.Rooms,
			WhatsIncluded:    body.WhatsIncluded,
			TransferIncluded: body.TransferIncluded,
			SuperPackage:     body.SuperPackage,
		}
		if body.ArrivalDate != nil {
			arrival, parseErr := time.Parse(arrivalDateLayout, *body.ArrivalDate)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "arrival date must be YYYY-MM-DD"))
				return
			}
			input.ArrivalDate = &arrival
		}
		if body.Currency != nil {
			currency, parseErr := enums.ParseCurrency(*body.Currency)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid currency"))
				return
			}
			input.Currency = &currency
		}
		if body.PackagePrice != nil {
			cents, parseErr := pricing.ParseAmount(*body.PackagePrice)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid package price"))
				return
			}
			input.PackagePriceCents = &cents
		}
		if body.Events != nil {
			events, parseErr := parseEvents(*body.Events)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			input.Events = &events
		}

		quote, err := svc.Update(r.Context(), actor, input, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

func SendQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := sendQuoteRequest{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Send(r.Context(), actor, quotes.SendQuoteInput{
			QuoteID: quoteID,
			Resend:  body.Resend,
		}, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"quote":      toQuoteResponse(result.Quote),
			"message_id": result.MessageID,
			"attempts":   result.Attempts,
		})
	}
}

func RetryQuoteEmail(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RetryEmail(r.Context(), actor, quoteID, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"quote":      toQuoteResponse(result.Quote),
			"message_id": result.MessageID,
			"attempts":   result.Attempts,
		})
	}
}

func TransitionQuoteStatus(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseQuoteStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		quote, err := svc.TransitionStatus(r.Context(), actor, quotes.TransitionInput{
			QuoteID: quoteID,
			Target:  target,
			Note:    body.Note,
		}, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

func ArchiveQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Archive(r.Context(), actor, quoteID, requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

func QuoteAuditTrail(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		quoteID, err := quoteIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.AuditTrail(r.Context(), actor, quoteID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			item := map[string]any{
				"id":          entry.ID,
				"action":      string(entry.Action),
				"actor_email": entry.ActorEmail,
				"actor_role":  entry.ActorRole,
				"success":     entry.Success,
				"client_ip":   entry.ClientIP,
				"user_agent":  entry.UserAgent,
				"created_at":  entry.CreatedAt,
			}
			if entry.FailureReason != nil {
				item["failure_reason"] = *entry.FailureReason
			}
			if entry.Payload != nil {
				item["payload"] = entry.Payload
			}
			items = append(items, item)
		}
		responses.WriteSuccess(w, map[string]any{"entries": items})
	}
}
