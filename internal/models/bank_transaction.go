package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankTransaction rows are created only by the importer. ExternalID is unique
// per tenant when present.
type BankTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uq_tenant_external,priority:1" json:"tenant_id"`
	ExternalID  *string         `gorm:"size:255;uniqueIndex:uq_tenant_external,priority:2" json:"external_id"`
	PostedAt    *time.Time      `gorm:"column:posted_at" json:"posted_at"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Description *string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
