package quotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// CreateQuoteInput carries everything needed to draft a quote against an enquiry.
type CreateQuoteInput struct {
	EnquiryID      uuid.UUID
	CustomerName   string
	RecipientEmail string

	HotelName         string
	ArrivalDate       time.Time
	Nights            int
	People            int
	Rooms             int
	Currency          enums.Currency
	PackagePriceCents int64
	WhatsIncluded     string
	TransferIncluded  bool
	SuperPackage      bool
	Events            types.EventSelections
}

// UpdateQuoteInput mutates the editable fields of an existing quote.
// ExpectedVersion implements optimistic concurrency: the update is rejected
// with STALE_VERSION when it no longer matches the stored row.
type UpdateQuoteInput struct {
	QuoteID         uuid.UUID
	ExpectedVersion int

	CustomerName   *string
	RecipientEmail *string

	HotelName         *string
	ArrivalDate       *time.Time
	Nights            *int
	People            *int
	Rooms             *int
	Currency          *enums.Currency
	PackagePriceCents *int64
	WhatsIncluded     *string
	TransferIncluded  *bool
	SuperPackage      *bool
	Events            *types.EventSelections
}

// SendQuoteInput dispatches the quote email. Resend must be set to re-send a
// quote the customer has already viewed.
type SendQuoteInput struct {
	QuoteID uuid.UUID
	Resend  bool
}

// TransitionInput moves a quote to a new lifecycle status.
type TransitionInput struct {
	QuoteID uuid.UUID
	Target  enums.QuoteStatus
	Note    string
}

// ListFilters narrows quote listings.
type ListFilters struct {
	Status          *enums.QuoteStatus
	CreatedByID     *uuid.UUID
	EmailStatus     *enums.EmailDeliveryStatus
	IncludeArchived bool
}

// QuoteList is one page of quotes plus the cursor for the next page.
type QuoteList struct {
	Quotes     []models.Quote
	NextCursor string
}

// SendResult reports the outcome of a send or retry.
type SendResult struct {
	Quote     *models.Quote
	MessageID string
	Attempts  int
}
