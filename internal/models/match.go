package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MatchStatusProposed  = "proposed"
	MatchStatusConfirmed = "confirmed"
)

// Match pairs one invoice with one bank transaction. Several matches may
// reference the same invoice or transaction; sweeps never deduplicate.
type Match struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RunID             uuid.UUID      `gorm:"type:uuid;index" json:"run_id"`
	InvoiceID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"invoice_id"`
	BankTransactionID uuid.UUID      `gorm:"type:uuid;not null;index" json:"bank_transaction_id"`
	Score             int            `gorm:"not null" json:"score"`
	Breakdown         datatypes.JSON `json:"breakdown"`
	Status            string         `gorm:"size:16;not null;index" json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	ConfirmedAt       *time.Time     `json:"confirmed_at,omitempty"`
}
