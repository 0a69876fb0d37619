package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

func (r *MatchRepository) CreateBatch(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(matches, insertBatchSize).Error
}

func (r *MatchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).First(&match, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// List returns a tenant's matches, optionally restricted to one status.
func (r *MatchRepository) List(ctx context.Context, tenantID uuid.UUID, status string) ([]models.Match, error) {
	var matches []models.Match
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at ASC, id ASC").Find(&matches).Error
	return matches, err
}

// ConfirmProposed flips a proposed match to confirmed. It reports false when
// the match was no longer proposed at update time.
func (r *MatchRepository) ConfirmProposed(ctx context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, models.MatchStatusProposed).
		Updates(map[string]interface{}{
			"status":       models.MatchStatusConfirmed,
			"confirmed_at": at,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *MatchRepository) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *MatchRepository) AppendAudit(ctx context.Context, entry *models.MatchAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *MatchRepository) AuditTrail(ctx context.Context, tenantID, matchID uuid.UUID) ([]models.MatchAuditLog, error) {
	var entries []models.MatchAuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND match_id = ?", tenantID, matchID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
