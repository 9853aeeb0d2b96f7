package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/internal/permissions"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
)

type stubExportStore struct {
	rows []models.Quote
	err  error
}

func (s *stubExportStore) FindForExport(ctx context.Context, filters quotes.ExportFilters, limit int) ([]models.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type stubAuditor struct {
	entries []audit.Entry
}

func (s *stubAuditor) Record(ctx context.Context, entry audit.Entry) {
	s.entries = append(s.entries, entry)
}

func (s *stubAuditor) ListByQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	return nil, nil
}

func exportAdmin() permissions.Actor {
	return permissions.Actor{
		ID:                 uuid.New(),
		Email:              "admin@atlastravel.example",
		Role:               enums.MemberRoleAdmin,
		IsApproved:         true,
		RegistrationStatus: enums.RegistrationStatusApproved,
	}
}

func sampleQuotes(n int) []models.Quote {
	rows := make([]models.Quote, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.Quote{
			ID:                  uuid.New(),
			Reference:           "ATQ-TEST",
			CustomerName:        "Sam Carter",
			RecipientEmail:      "sam@example.com",
			HotelName:           "Hotel Mirage",
			ArrivalDate:         time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
			Nights:              3,
			People:              6,
			Rooms:               3,
			Currency:            enums.CurrencyGBP,
			PackagePriceCents:   120000,
			TotalPriceCents:     150000,
			Status:              enums.QuoteStatusSent,
			Version:             2,
			EmailDeliveryStatus: enums.EmailDeliveryDelivered,
			CreatedAt:           time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		})
	}
	return rows
}

func newExportService(t *testing.T, store exportStore, auditor audit.Recorder, maxRecords int) Service {
	t.Helper()
	svc, err := NewService(store, auditor, config.ExportConfig{MaxRecords: maxRecords})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestExportCSV(t *testing.T) {
	auditor := &stubAuditor{}
	svc := newExportService(t, &stubExportStore{rows: sampleQuotes(2)}, auditor, 100)

	result, err := svc.Export(context.Background(), exportAdmin(), Request{Format: FormatCSV}, quotes.RequestMeta{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.ContentType != "text/csv" || result.RecordCount != 2 || result.MaxRecordsReached {
		t.Fatalf("unexpected result %+v", result)
	}

	records, err := csv.NewReader(strings.NewReader(string(result.Data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "reference" {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][10] != "1500.00" {
		t.Fatalf("total price must be formatted as a display amount, got %q", records[1][10])
	}

	if len(auditor.entries) != 1 || auditor.entries[0].Action != enums.AuditActionExport {
		t.Fatalf("export must be audited, got %+v", auditor.entries)
	}
}

func TestExportJSON(t *testing.T) {
	svc := newExportService(t, &stubExportStore{rows: sampleQuotes(1)}, &stubAuditor{}, 100)

	result, err := svc.Export(context.Background(), exportAdmin(), Request{Format: FormatJSON}, quotes.RequestMeta{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.ContentType != "application/json" {
		t.Fatalf("unexpected content type %s", result.ContentType)
	}

	var envelope struct {
		Quotes            []map[string]any `json:"quotes"`
		RecordCount       int              `json:"record_count"`
		MaxRecordsReached bool             `json:"max_records_reached"`
	}
	if err := json.Unmarshal(result.Data, &envelope); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if envelope.RecordCount != 1 || len(envelope.Quotes) != 1 {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Quotes[0]["total_price"] != "1500.00" {
		t.Fatalf("unexpected total price %v", envelope.Quotes[0]["total_price"])
	}
}

func TestExportCapsRecords(t *testing.T) {
	svc := newExportService(t, &stubExportStore{rows: sampleQuotes(5)}, &stubAuditor{}, 3)

	result, err := svc.Export(context.Background(), exportAdmin(), Request{Format: FormatCSV}, quotes.RequestMeta{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.RecordCount != 3 || !result.MaxRecordsReached {
		t.Fatalf("expected capped export with flag set, got %+v", result)
	}
}

func TestExportDeniedForAgent(t *testing.T) {
	auditor := &stubAuditor{}
	svc := newExportService(t, &stubExportStore{rows: sampleQuotes(1)}, auditor, 100)

	agent := permissions.Actor{
		ID:                 uuid.New(),
		Email:              "agent@atlastravel.example",
		Role:               enums.MemberRoleAgent,
		IsApproved:         true,
		RegistrationStatus: enums.RegistrationStatusApproved,
	}
	_, err := svc.Export(context.Background(), agent, Request{Format: FormatCSV}, quotes.RequestMeta{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != enums.AuditActionPermissionDenied {
		t.Fatalf("denial must be audited, got %+v", auditor.entries)
	}
}

func TestParseFormat(t *testing.T) {
	if format, err := ParseFormat(""); err != nil || format != FormatCSV {
		t.Fatalf("empty format should default to csv, got %v %v", format, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
