package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// Quote is the priced, versioned proposal sent to a prospective customer.
// CreatedByID and EnquiryID are immutable after creation. Quotes are never
// physically deleted; archiving sets ArchivedAt.
type Quote struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference string    `gorm:"column:reference;not null;uniqueIndex"`

	CreatedByID uuid.UUID `gorm:"column:created_by_id;type:uuid;not null"`
	EnquiryID   uuid.UUID `gorm:"column:enquiry_id;type:uuid;not null"`

	CustomerName   string `gorm:"column:customer_name;not null"`
	RecipientEmail string `gorm:"column:recipient_email;not null"`

	HotelName        string         `gorm:"column:hotel_name;not null"`
	ArrivalDate      time.Time      `gorm:"column:arrival_date;not null"`
	Nights           int            `gorm:"column:nights;not null"`
	People           int            `gorm:"column:people;not null"`
	Rooms            int            `gorm:"column:rooms;not null"`
	Currency         enums.Currency `gorm:"column:currency;type:text;not null;default:'GBP'"`
	PackagePriceCents int64         `gorm:"column:package_price_cents;not null"`
	TotalPriceCents  int64          `gorm:"column:total_price_cents;not null"`
	WhatsIncluded    string         `gorm:"column:whats_included"`
	TransferIncluded bool           `gorm:"column:transfer_included;not null;default:false"`
	SuperPackage     bool           `gorm:"column:super_package;not null;default:false"`

	Events types.EventSelections `gorm:"column:events;type:jsonb;serializer:json"`

	Version int               `gorm:"column:version;not null;default:1"`
	Status  enums.QuoteStatus `gorm:"column:status;type:text;not null;default:'draft'"`

	EmailSent           bool                      `gorm:"column:email_sent;not null;default:false"`
	EmailSentAt         *time.Time                `gorm:"column:email_sent_at"`
	EmailDeliveryStatus enums.EmailDeliveryStatus `gorm:"column:email_delivery_status;type:text;not null;default:'pending'"`
	EmailMessageID      *string                   `gorm:"column:email_message_id"`

	BookingInterest types.BookingInterest `gorm:"column:booking_interest;type:jsonb;serializer:json"`

	ArchivedAt *time.Time `gorm:"column:archived_at;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
