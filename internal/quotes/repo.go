package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/pagination"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, err
	}
	return quote, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*QuoteList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Quote{})
	if !filters.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *filters.CreatedByID)
	}
	if filters.EmailStatus != nil {
		query = query.Where("email_delivery_status = ?", *filters.EmailStatus)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Quote
	err = query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &QuoteList{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Quotes = rows
	return list, nil
}

func (r *repository) UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND version = ? AND archived_at IS NULL", id, expectedVersion).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateEmailState(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Archive(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND archived_at IS NULL", id).
		Update("archived_at", at)
	return res.RowsAffected, res.Error
}

// MarkViewed flips a sent quote to viewed. The conditional WHERE makes repeat
// clicks no-ops, so the first-view transition is recorded exactly once.
func (r *repository) MarkViewed(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ? AND archived_at IS NULL", quoteID, enums.QuoteStatusSent).
		Update("status", enums.QuoteStatusViewed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ExpressBookingInterest(ctx context.Context, quoteID uuid.UUID, at time.Time) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote models.Quote
		if err := tx.Where("id = ? AND archived_at IS NULL", quoteID).First(&quote).Error; err != nil {
			return err
		}
		if quote.BookingInterest.Expressed {
			return nil
		}
		expressedAt := at.UTC().Format(time.RFC3339)
		res := tx.Model(&models.Quote{}).
			Where("id = ?", quoteID).
			Update("booking_interest", types.BookingInterest{
				Expressed:   true,
				ExpressedAt: &expressedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return nil
	})
	return changed, err
}

func (r *repository) ExpireStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var expired []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		err := tx.Model(&models.Quote{}).
			Where("status IN ? AND email_sent_at < ? AND archived_at IS NULL",
				[]enums.QuoteStatus{enums.QuoteStatusSent, enums.QuoteStatusViewed}, cutoff).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		err = tx.Model(&models.Quote{}).
			Where("id IN ?", ids).
			Update("status", enums.QuoteStatusExpired).Error
		if err != nil {
			return err
		}
		expired = ids
		return nil
	})
	return expired, err
}

// exportScanBatch bounds each keyset page scanned for the booking-interest
// filter, which cannot be pushed into a dialect-portable WHERE clause.
const exportScanBatch = 500

func (r *repository) exportQuery(ctx context.Context, filters ExportFilters) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Quote{}).Where("archived_at IS NULL")
	if filters.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filters.CreatedTo)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.MinTotalCents != nil {
		query = query.Where("total_price_cents >= ?", *filters.MinTotalCents)
	}
	if filters.MaxTotalCents != nil {
		query = query.Where("total_price_cents <= ?", *filters.MaxTotalCents)
	}
	if filters.EmailStatus != nil {
		query = query.Where("email_delivery_status = ?", *filters.EmailStatus)
	}
	return query
}

func (r *repository) FindForExport(ctx context.Context, filters ExportFilters, limit int) ([]models.Quote, error) {
	if filters.BookingInterest == nil {
		var rows []models.Quote
		err := r.exportQuery(ctx, filters).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		return rows, nil
	}

	// booking interest lives inside jsonb; it is matched in memory to stay
	// portable across the postgres runtime and the sqlite test harness. The
	// scan walks keyset pages until limit matching rows are collected, so
	// the row cap and truncation flag are computed over matching rows, not
	// over whatever the first page happened to contain.
	matched := make([]models.Quote, 0, limit)
	var last *models.Quote
	for {
		query := r.exportQuery(ctx, filters).
			Order("created_at DESC, id DESC").
			Limit(exportScanBatch)
		if last != nil {
			query = query.Where(
				"(created_at < ?) OR (created_at = ? AND id < ?)",
				last.CreatedAt, last.CreatedAt, last.ID,
			)
		}
		var batch []models.Quote
		if err := query.Find(&batch).Error; err != nil {
			return nil, err
		}
		for i := range batch {
			if batch[i].BookingInterest.Expressed == *filters.BookingInterest {
				matched = append(matched, batch[i])
				if len(matched) == limit {
					return matched, nil
				}
			}
		}
		if len(batch) < exportScanBatch {
			return matched, nil
		}
		last = &batch[len(batch)-1]
	}
}
