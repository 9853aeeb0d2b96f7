package types

import "github.com/atlastravel/backoffice-backend/pkg/enums"

// EventSelection is one priced add-on attached to a quote. Per-person events
// contribute UnitPriceCents × people; flat events contribute UnitPriceCents.
type EventSelection struct {
	Name           string         `json:"name"`
	UnitPriceCents int64          `json:"unit_price_cents"`
	Currency       enums.Currency `json:"currency"`
	PerPerson      bool           `json:"per_person"`
}

// EventSelections is the ordered add-on list stored as a jsonb column.
type EventSelections []EventSelection

// BookingInterest records a customer's intent signal against a quote.
type BookingInterest struct {
	Expressed   bool    `json:"expressed"`
	ExpressedAt *string `json:"expressed_at,omitempty"`
}

// JSONMap is a loose jsonb payload, used for audit entry payloads.
type JSONMap map[string]any
