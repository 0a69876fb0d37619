package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

// InvoiceFilter narrows invoice listings. Nil fields are not applied.
// EndDate is inclusive; EndBefore is exclusive and covers a whole-day bound.
type InvoiceFilter struct {
	Status    *string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
	EndBefore *time.Time
}

// Validate rejects unknown statuses and inverted ranges.
func (f InvoiceFilter) Validate() error {
	if f.Status != nil {
		switch *f.Status {
		case models.InvoiceStatusOpen, models.InvoiceStatusMatched:
		default:
			return fmt.Errorf("status must be %q or %q", models.InvoiceStatusOpen, models.InvoiceStatusMatched)
		}
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.GreaterThan(*f.MaxAmount) {
		return fmt.Errorf("min_amount cannot be greater than max_amount")
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return fmt.Errorf("start_date cannot be after end_date")
	}
	if f.StartDate != nil && f.EndBefore != nil && !f.StartDate.Before(*f.EndBefore) {
		return fmt.Errorf("start_date cannot be after end_date")
	}
	return nil
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// GetByID fetches a single invoice owned by tenantID.
func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByTenant returns every invoice of a tenant in creation order.
func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

// Search lists a tenant's invoices with optional filters and skip/limit bounds.
func (r *InvoiceRepository) Search(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter, skip, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice

	query := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.StartDate != nil {
		query = query.Where("invoice_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("invoice_date <= ?", *filter.EndDate)
	}
	if filter.EndBefore != nil {
		query = query.Where("invoice_date < ?", *filter.EndBefore)
	}

	err := query.Order("created_at ASC, id ASC").Offset(skip).Limit(limit).Find(&invoices).Error
	return invoices, err
}

// UpdateStatus sets the status of one tenant-owned invoice.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("status", status).Error
}

// Delete removes one tenant-owned invoice and reports whether a row was removed.
func (r *InvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Invoice{})
	return result.RowsAffected > 0, result.Error
}
