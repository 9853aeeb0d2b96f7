package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/types"
)

// AuditEntry is an immutable record of one lifecycle or security-relevant
// action. The application only ever inserts rows; there is no update path.
// QuoteID is nullable because denied operations (e.g. a blocked create) have
// no target row yet.
type AuditEntry struct {
	ID      uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID *uuid.UUID `gorm:"column:quote_id;type:uuid;index:idx_audit_quote_created"`

	// ActorRole is a plain string so passive engagement entries can record
	// "anonymous" alongside the admin/agent member roles.
	ActorID    *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	ActorEmail string     `gorm:"column:actor_email;not null"`
	ActorRole  string     `gorm:"column:actor_role;not null"`

	Action        enums.AuditAction `gorm:"column:action;type:text;not null"`
	Success       bool              `gorm:"column:success;not null"`
	FailureReason *string           `gorm:"column:failure_reason"`

	ClientIP  string `gorm:"column:client_ip"`
	UserAgent string `gorm:"column:user_agent"`

	Payload types.JSONMap `gorm:"column:payload;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_audit_quote_created"`
}
