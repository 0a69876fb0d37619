package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusOpen    = "open"
	InvoiceStatusMatched = "matched"
)

type Invoice struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index;index:idx_invoice_tenant_status,priority:1" json:"tenant_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	InvoiceDate *time.Time      `json:"invoice_date"`
	Description *string         `gorm:"type:text" json:"description"`
	Status      string          `gorm:"size:16;not null;index:idx_invoice_tenant_status,priority:2" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
