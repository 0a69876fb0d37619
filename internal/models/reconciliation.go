package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationRun records one reconcile sweep and the matches it produced.
type ReconciliationRun struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	InvoiceCount     int       `json:"invoice_count"`
	TransactionCount int       `json:"transaction_count"`
	MatchCount       int       `json:"match_count"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}
