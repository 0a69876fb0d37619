package models

import (
	"time"

	"github.com/google/uuid"
)

const AuditActionConfirm = "confirm"

type MatchAuditLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	MatchID        uuid.UUID `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID `gorm:"type:uuid"`
	Action         string
	PreviousStatus string
	NewStatus      string
	CreatedAt      time.Time
}
