package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord stores the first response produced under a tenant's key.
// Response is kept as text, not jsonb, so replays return the first bytes unchanged.
type IdempotencyRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_tenant_key,priority:1"`
	IdempotencyKey string    `gorm:"size:255;not null;uniqueIndex:uq_tenant_key,priority:2"`
	PayloadHash    string    `gorm:"size:64;not null"`
	Response       string    `gorm:"type:text;not null"`
	CreatedAt      time.Time
}
