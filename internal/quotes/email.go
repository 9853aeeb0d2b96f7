package quotes

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/atlastravel/backoffice-backend/internal/email"
	"github.com/atlastravel/backoffice-backend/internal/pricing"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
)

var quoteEmailTmpl = template.Must(template.New("quote_email").Parse(`<html>
<body>
  <p>Hi {{.CustomerName}},</p>
  <p>Here is your quote <strong>{{.Reference}}</strong> for <strong>{{.HotelName}}</strong>.</p>
  <table>
    <tr><td>Arrival</td><td>{{.Arrival}}</td></tr>
    <tr><td>Nights</td><td>{{.Nights}}</td></tr>
    <tr><td>People</td><td>{{.People}}</td></tr>
    <tr><td>Rooms</td><td>{{.Rooms}}</td></tr>
    {{if .WhatsIncluded}}<tr><td>Included</td><td>{{.WhatsIncluded}}</td></tr>{{end}}
    {{range .Events}}<tr><td>{{.Name}}</td><td>{{.Price}}</td></tr>{{end}}
    <tr><td><strong>Total</strong></td><td><strong>{{.Symbol}}{{.Total}}</strong></td></tr>
  </table>
  <p><a href="{{.TrackingURL}}">View your quote and tell us you're interested</a></p>
  <p>The Atlas Travel team</p>
</body>
</html>`))

type quoteEmailData struct {
	CustomerName  string
	Reference     string
	HotelName     string
	Arrival       string
	Nights        int
	People        int
	Rooms         int
	WhatsIncluded string
	Events        []quoteEmailEvent
	Symbol        string
	Total         string
	TrackingURL   string
}

type quoteEmailEvent struct {
	Name  string
	Price string
}

// buildQuoteEmail renders the customer-facing quote message with the signed
// tracking link embedded.
func buildQuoteEmail(quote *models.Quote, trackingURL string) (email.Message, error) {
	data := quoteEmailData{
		CustomerName:  quote.CustomerName,
		Reference:     quote.Reference,
		HotelName:     quote.HotelName,
		Arrival:       quote.ArrivalDate.Format("Monday 2 January 2006"),
		Nights:        quote.Nights,
		People:        quote.People,
		Rooms:         quote.Rooms,
		WhatsIncluded: quote.WhatsIncluded,
		Symbol:        quote.Currency.Symbol(),
		Total:         pricing.FormatCents(quote.TotalPriceCents),
		TrackingURL:   trackingURL,
	}
	// mismatched-currency events are listed with their own symbol but never
	// contribute to the total
	for _, event := range quote.Events {
		data.Events = append(data.Events, quoteEmailEvent{
			Name:  event.Name,
			Price: event.Currency.Symbol() + pricing.FormatCents(event.UnitPriceCents),
		})
	}

	var body bytes.Buffer
	if err := quoteEmailTmpl.Execute(&body, data); err != nil {
		return email.Message{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render quote email")
	}

	return email.Message{
		To:      quote.RecipientEmail,
		ToName:  quote.CustomerName,
		Subject: fmt.Sprintf("Your %s holiday quote (%s)", quote.HotelName, quote.Reference),
		HTML:    body.String(),
		Text: fmt.Sprintf("Your quote %s for %s: %s%s. View it at %s",
			quote.Reference, quote.HotelName, quote.Currency.Symbol(),
			pricing.FormatCents(quote.TotalPriceCents), trackingURL),
	}, nil
}
