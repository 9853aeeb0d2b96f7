package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/pagination"
)

// Repository defines persistence operations for the quotes table. MarkViewed
// and ExpressBookingInterest form the narrow engagement surface used by the
// tracking service; they touch status and the booking_interest column only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, quote *models.Quote) (*models.Quote, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*QuoteList, error)

	// UpdateVersioned applies updates only when the stored version still
	// matches expectedVersion. Returns the number of rows changed.
	UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) (int64, error)
	UpdateEmailState(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Archive(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)

	MarkViewed(ctx context.Context, quoteID uuid.UUID) (bool, error)
	ExpressBookingInterest(ctx context.Context, quoteID uuid.UUID, at time.Time) (bool, error)

	// ExpireStale moves sent/viewed quotes whose email went out before the
	// cutoff into expired, returning the affected ids for auditing.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// FindForExport streams up to limit+1 rows matching the filters so the
	// caller can detect truncation.
	FindForExport(ctx context.Context, filters ExportFilters, limit int) ([]models.Quote, error)
}

// ExportFilters narrows the export dataset.
type ExportFilters struct {
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Status          *string
	MinTotalCents   *int64
	MaxTotalCents   *int64
	EmailStatus     *string
	BookingInterest *bool
}
