package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/internal/permissions"
	"github.com/atlastravel/backoffice-backend/internal/pricing"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// Format selects the export serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat converts raw input into a Format.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported export format %q", value))
	}
}

// Request describes one export run.
type Request struct {
	Format  Format
	Filters quotes.ExportFilters
}

// Result is the rendered export plus truncation metadata.
type Result struct {
	ContentType       string
	Filename          string
	Data              []byte
	RecordCount       int
	MaxRecordsReached bool
}

type exportStore interface {
	FindForExport(ctx context.Context, filters quotes.ExportFilters, limit int) ([]models.Quote, error)
}

// Service renders filtered quote datasets for reporting. Every run is audited
// regardless of outcome; the row count is capped by configuration.
type Service interface {
	Export(ctx context.Context, actor permissions.Actor, req Request, meta quotes.RequestMeta) (*Result, error)
}

type service struct {
	store      exportStore
	auditor    audit.Recorder
	maxRecords int
	now        func() time.Time
}

// NewService builds the export service.
func NewService(store exportStore, auditor audit.Recorder, cfg config.ExportConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("export store required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	maxRecords := cfg.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &service{
		store:      store,
		auditor:    auditor,
		maxRecords: maxRecords,
		now:        time.Now,
	}, nil
}

func (s *service) Export(ctx context.Context, actor permissions.Actor, req Request, meta quotes.RequestMeta) (*Result, error) {
	if !permissions.CanPerform(actor, permissions.OpExportQuotes) {
		actorID := actor.ID
		s.auditor.Record(ctx, audit.Entry{
			ActorID:       &actorID,
			ActorEmail:    actor.Email,
			ActorRole:     string(actor.Role),
			Action:        enums.AuditActionPermissionDenied,
			Success:       false,
			FailureReason: string(permissions.OpExportQuotes),
			ClientIP:      meta.ClientIP,
			UserAgent:     meta.UserAgent,
		})
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to export quotes")
	}

	// fetch one extra row to detect truncation
	rows, err := s.store.FindForExport(ctx, req.Filters, s.maxRecords+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query export rows")
	}
	truncated := len(rows) > s.maxRecords
	if truncated {
		rows = rows[:s.maxRecords]
	}

	result := &Result{RecordCount: len(rows), MaxRecordsReached: truncated}
	stamp := s.now().UTC().Format("20060102-150405")
	switch req.Format {
	case FormatJSON:
		data, err := renderJSON(rows, truncated)
		if err != nil {
			return nil, err
		}
		result.Data = data
		result.ContentType = "application/json"
		result.Filename = "quotes-" + stamp + ".json"
	default:
		data, err := renderCSV(rows)
		if err != nil {
			return nil, err
		}
		result.Data = data
		result.ContentType = "text/csv"
		result.Filename = "quotes-" + stamp + ".csv"
	}

	actorID := actor.ID
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		ActorEmail: actor.Email,
		ActorRole:  string(actor.Role),
		Action:     enums.AuditActionExport,
		Success:    true,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Payload: types.JSONMap{
			"format":              string(req.Format),
			"record_count":        result.RecordCount,
			"max_records_reached": truncated,
		},
	})
	return result, nil
}

var csvHeader = []string{
	"reference", "customer_name", "recipient_email", "hotel_name", "arrival_date",
	"nights", "people", "rooms", "currency", "package_price", "total_price",
	"status", "version", "email_sent_at", "email_delivery_status",
	"booking_interest", "created_at",
}

func renderCSV(rows []models.Quote) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, row := range rows {
		record := []string{
			row.Reference,
			row.CustomerName,
			row.RecipientEmail,
			row.HotelName,
			row.ArrivalDate.UTC().Format("2006-01-02"),
			strconv.Itoa(row.Nights),
			strconv.Itoa(row.People),
			strconv.Itoa(row.Rooms),
			string(row.Currency),
			pricing.FormatCents(row.PackagePriceCents),
			pricing.FormatCents(row.TotalPriceCents),
			string(row.Status),
			strconv.Itoa(row.Version),
			formatOptionalTime(row.EmailSentAt),
			string(row.EmailDeliveryStatus),
			strconv.FormatBool(row.BookingInterest.Expressed),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return buf.Bytes(), nil
}

type jsonRecord struct {
	ID                  uuid.UUID `json:"id"`
	Reference           string    `json:"reference"`
	CustomerName        string    `json:"customer_name"`
	RecipientEmail      string    `json:"recipient_email"`
	HotelName           string    `json:"hotel_name"`
	ArrivalDate         string    `json:"arrival_date"`
	Nights              int       `json:"nights"`
	People              int       `json:"people"`
	Rooms               int       `json:"rooms"`
	Currency            string    `json:"currency"`
	PackagePrice        string    `json:"package_price"`
	TotalPrice          string    `json:"total_price"`
	Status              string    `json:"status"`
	Version             int       `json:"version"`
	EmailSentAt         string    `json:"email_sent_at,omitempty"`
	EmailDeliveryStatus string    `json:"email_delivery_status"`
	BookingInterest     bool      `json:"booking_interest"`
	CreatedAt           string    `json:"created_at"`
}

type jsonEnvelope struct {
	Quotes            []jsonRecord `json:"quotes"`
	RecordCount       int          `json:"record_count"`
	MaxRecordsReached bool         `json:"max_records_reached"`
}

func renderJSON(rows []models.Quote, truncated bool) ([]byte, error) {
	envelope := jsonEnvelope{
		Quotes:            make([]jsonRecord, 0, len(rows)),
		RecordCount:       len(rows),
		MaxRecordsReached: truncated,
	}
	for _, row := range rows {
		envelope.Quotes = append(envelope.Quotes, jsonRecord{
			ID:                  row.ID,
			Reference:           row.Reference,
			CustomerName:        row.CustomerName,
			RecipientEmail:      row.RecipientEmail,
			HotelName:           row.HotelName,
			ArrivalDate:         row.ArrivalDate.UTC().Format("2006-01-02"),
			Nights:              row.Nights,
			People:              row.People,
			Rooms:               row.Rooms,
			Currency:            string(row.Currency),
			PackagePrice:        pricing.FormatCents(row.PackagePriceCents),
			TotalPrice:          pricing.FormatCents(row.TotalPriceCents),
			Status:              string(row.Status),
			Version:             row.Version,
			EmailSentAt:         formatOptionalTime(row.EmailSentAt),
			EmailDeliveryStatus: string(row.EmailDeliveryStatus),
			BookingInterest:     row.BookingInterest.Expressed,
			CreatedAt:           row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode export json")
	}
	return data, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
