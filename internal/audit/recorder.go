package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/db/models"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// AnonymousActor is recorded for passive engagement events, where the
// initiator is an email recipient rather than an authenticated staff member.
const AnonymousActor = "anonymous"

// Entry is the recorder-facing shape of one audit record.
type Entry struct {
	QuoteID       *uuid.UUID
	ActorID       *uuid.UUID
	ActorEmail    string
	ActorRole     string
	Action        enums.AuditAction
	Success       bool
	FailureReason string
	ClientIP      string
	UserAgent     string
	Payload       types.JSONMap
}

// Recorder appends audit entries. Appends are best-effort: a failed audit
// write is logged but never fails the action it describes.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
	ListByQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

type recorder struct {
	repo Repository
	logg *logger.Logger
}

// NewRecorder builds the audit recorder.
func NewRecorder(repo Repository, logg *logger.Logger) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &recorder{repo: repo, logg: logg}, nil
}

func (r *recorder) Record(ctx context.Context, entry Entry) {
	if !entry.Action.IsValid() {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "action", string(entry.Action)), "audit.unknown_action")
		}
		return
	}

	row := &models.AuditEntry{
		QuoteID:    entry.QuoteID,
		ActorID:    entry.ActorID,
		ActorEmail: entry.ActorEmail,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		Success:    entry.Success,
		ClientIP:   entry.ClientIP,
		UserAgent:  entry.UserAgent,
		Payload:    entry.Payload,
	}
	if entry.ActorEmail == "" {
		row.ActorEmail = AnonymousActor
	}
	if entry.ActorRole == "" {
		row.ActorRole = AnonymousActor
	}
	if entry.FailureReason != "" {
		reason := entry.FailureReason
		row.FailureReason = &reason
	}

	if err := r.repo.Insert(ctx, row); err != nil && r.logg != nil {
		lctx := r.logg.WithFields(ctx, map[string]any{"action": string(entry.Action)})
		r.logg.Error(lctx, "audit.append_failed", err)
	}
}

func (r *recorder) ListByQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	return r.repo.ListByQuote(ctx, quoteID, limit)
}
