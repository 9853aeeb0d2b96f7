package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/atlastravel/backoffice-backend/pkg/enums"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// MismatchReasonCurrency marks events excluded because their currency differs
// from the quote currency. The platform never auto-converts.
const MismatchReasonCurrency = "currency_mismatch"

// Input carries everything needed to price a quote. All amounts are integer
// minor units (pence/cents); conversion to display form happens at the API
// boundary via ParseAmount/FormatCents.
type Input struct {
	PackagePriceCents int64
	Currency          enums.Currency
	People            int
	Rooms             int
	Nights            int
	Events            types.EventSelections
}

// EventContribution is one event's share of the computed total.
type EventContribution struct {
	Event             types.EventSelection
	ContributionCents int64
}

// MismatchedEvent is an event excluded from totals, flagged for operator review.
type MismatchedEvent struct {
	Event  types.EventSelection
	Reason string
}

// Breakdown is the full pricing result.
type Breakdown struct {
	TotalCents          int64
	EventsSubtotalCents int64
	PerPersonEvents     []EventContribution
	FlatEvents          []EventContribution
	MismatchedEvents    []MismatchedEvent

	PerPersonCents int64
	PerRoomCents   int64
	PerNightCents  int64
}

// ComputeTotal prices a package plus its add-on events. Events priced in a
// different currency are partitioned out rather than converted; per-person
// events scale with the party size. The function is pure.
func ComputeTotal(in Input) (*Breakdown, error) {
	if in.PackagePriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package price must not be negative")
	}
	if !in.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if in.People < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "people count must be at least 1")
	}
	if in.Rooms < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rooms must be at least 1")
	}
	if in.Nights < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nights must be at least 1")
	}

	breakdown := &Breakdown{}

	for _, event := range in.Events {
		if event.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event unit price must not be negative").
				WithDetails(map[string]any{"event": event.Name})
		}
		if event.Currency != in.Currency {
			breakdown.MismatchedEvents = append(breakdown.MismatchedEvents, MismatchedEvent{
				Event:  event,
				Reason: MismatchReasonCurrency,
			})
			continue
		}

		if event.PerPerson {
			contribution := event.UnitPriceCents * int64(in.People)
			breakdown.PerPersonEvents = append(breakdown.PerPersonEvents, EventContribution{
				Event:             event,
				ContributionCents: contribution,
			})
			breakdown.EventsSubtotalCents += contribution
			continue
		}

		breakdown.FlatEvents = append(breakdown.FlatEvents, EventContribution{
			Event:             event,
			ContributionCents: event.UnitPriceCents,
		})
		breakdown.EventsSubtotalCents += event.UnitPriceCents
	}

	breakdown.TotalCents = in.PackagePriceCents + breakdown.EventsSubtotalCents
	breakdown.PerPersonCents = divideCents(breakdown.TotalCents, in.People)
	breakdown.PerRoomCents = divideCents(breakdown.TotalCents, in.Rooms)
	breakdown.PerNightCents = divideCents(breakdown.TotalCents, in.Nights)

	return breakdown, nil
}

// divideCents divides a minor-unit amount by a count, rounding to the nearest
// cent. The divisor is guaranteed >= 1 by the input validation above.
func divideCents(totalCents int64, by int) int64 {
	return decimal.NewFromInt(totalCents).
		DivRound(decimal.NewFromInt(int64(by)), 0).
		IntPart()
}

// ParseAmount converts a display amount such as "1250.50" into minor units.
func ParseAmount(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid monetary amount")
	}
	if d.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "monetary amount must not be negative")
	}
	if d.Exponent() < -2 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "monetary amount has more than two decimal places")
	}
	return d.Shift(2).IntPart(), nil
}

// FormatCents renders minor units as a two-decimal display amount.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}
