// Package ingestion imports bank transactions under client-supplied
// idempotency keys.
//
// The first successful import under a (tenant, key) pair stores its JSON
// response next to a fingerprint of the submitted batch. A retry with the same
// batch gets the stored bytes back unchanged and persists nothing; a retry with
// a different batch is a Conflict. Concurrent first imports are arbitrated by
// the unique index on (tenant_id, idempotency_key).
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperr"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

const maxKeyLength = 255

// TransactionInput is one submitted bank transaction.
type TransactionInput struct {
	ExternalID  *string         `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description *string         `json:"description"`
	PostedAt    *time.Time      `json:"posted_at"`
}

// ImportResult is the outcome of an import. Raw holds the exact response
// bytes stored under the key; Transactions is Raw decoded.
type ImportResult struct {
	Transactions []models.BankTransaction
	Raw          json.RawMessage
	Replayed     bool
}

type Importer struct {
	db              *gorm.DB
	tenantRepo      *repository.TenantRepository
	transactionRepo *repository.BankTransactionRepository
	idempotencyRepo *repository.IdempotencyRepository
	logger          *zap.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewImporter(db *gorm.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		db:              db,
		tenantRepo:      repository.NewTenantRepository(db),
		transactionRepo: repository.NewBankTransactionRepository(db),
		idempotencyRepo: repository.NewIdempotencyRepository(db),
		logger:          logger.Named("ingestion"),
		metrics:         metrics.New(),
		now:             func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Import persists inputs as bank transactions of tenantID exactly once per key.
func (i *Importer) Import(ctx context.Context, tenantID uuid.UUID, inputs []TransactionInput, key string) (*ImportResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.Validation("idempotency key is required")
	}
	if len(key) > maxKeyLength {
		return nil, apperr.Validation(fmt.Sprintf("idempotency key must be at most %d characters", maxKeyLength))
	}
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one transaction is required")
	}

	items, err := normalize(inputs)
	if err != nil {
		return nil, err
	}
	hash, err := Fingerprint(items)
	if err != nil {
		return nil, fmt.Errorf("fingerprint batch: %w", err)
	}

	log := i.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("idempotency_key", key))

	result, err := i.importOnce(ctx, tenantID, key, hash, items)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Info("import lost a uniqueness race, resolving against stored record")
		result, err = i.resolveCollision(ctx, tenantID, key, hash)
	}
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			i.metrics.ImportsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
			log.Warn("import rejected", zap.String("reason", apperr.Message(err)))
		}
		return nil, err
	}

	if result.Replayed {
		i.metrics.ImportsTotal.WithLabelValues(metrics.OutcomeReplayed).Inc()
		log.Debug("import replayed")
	} else {
		i.metrics.ImportsTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
		i.metrics.ImportedTransactions.Add(float64(len(result.Transactions)))
		log.Info("transactions imported", zap.Int("count", len(result.Transactions)))
	}
	return result, nil
}

// importOnce runs lookup and insert in a single unit of work. Unique
// violations are returned as gorm.ErrDuplicatedKey after rollback.
func (i *Importer) importOnce(ctx context.Context, tenantID uuid.UUID, key, hash string, items []TransactionInput) (*ImportResult, error) {
	var result *ImportResult
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := i.tenantRepo.WithTx(tx).GetByID(ctx, tenantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("tenant not found")
			}
			return fmt.Errorf("get tenant: %w", err)
		}

		idempotency := i.idempotencyRepo.WithTx(tx)
		record, err := idempotency.Find(ctx, tenantID, key)
		if err != nil {
			return fmt.Errorf("find idempotency record: %w", err)
		}
		if record != nil {
			result, err = replay(record, hash)
			return err
		}

		createdAt := i.now()
		rows := make([]models.BankTransaction, len(items))
		for n, item := range items {
			rows[n] = models.BankTransaction{
				ID:          uuid.New(),
				TenantID:    tenantID,
				ExternalID:  item.ExternalID,
				PostedAt:    item.PostedAt,
				Amount:      item.Amount,
				Currency:    item.Currency,
				Description: item.Description,
				CreatedAt:   createdAt,
			}
		}
		if err := i.transactionRepo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			return err
		}

		raw, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode import response: %w", err)
		}
		if err := idempotency.Create(ctx, &models.IdempotencyRecord{
			ID:             uuid.New(),
			TenantID:       tenantID,
			IdempotencyKey: key,
			PayloadHash:    hash,
			Response:       string(raw),
			CreatedAt:      createdAt,
		}); err != nil {
			return err
		}

		result = &ImportResult{Transactions: rows, Raw: raw}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveCollision decides the outcome after the insert hit a unique index.
// A record now stored under the key means a concurrent import won; otherwise
// the batch collided with an existing external_id.
func (i *Importer) resolveCollision(ctx context.Context, tenantID uuid.UUID, key, hash string) (*ImportResult, error) {
	record, err := i.idempotencyRepo.Find(ctx, tenantID, key)
	if err != nil {
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	if record == nil {
		return nil, apperr.Conflict("duplicate bank transaction for tenant/external_id")
	}
	return replay(record, hash)
}

func replay(record *models.IdempotencyRecord, hash string) (*ImportResult, error) {
	if record.PayloadHash != hash {
		return nil, apperr.Conflict("idempotency key already used with a different payload")
	}

	raw := json.RawMessage(record.Response)
	var rows []models.BankTransaction
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode stored import response: %w", err)
	}
	return &ImportResult{Transactions: rows, Raw: raw, Replayed: true}, nil
}

// normalize validates amounts and currencies and fills defaults so that
// equivalent batches fingerprint identically.
func normalize(inputs []TransactionInput) ([]TransactionInput, error) {
	items := make([]TransactionInput, len(inputs))
	for n, in := range inputs {
		if err := models.CheckAmount(in.Amount); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("transaction %d: %v", n, err), err)
		}
		currency, err := models.NormalizeCurrency(in.Currency)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("transaction %d: %v", n, err), err)
		}

		item := TransactionInput{
			ExternalID:  blankToNil(in.ExternalID),
			Amount:      in.Amount,
			Currency:    currency,
			Description: blankToNil(in.Description),
		}
		if in.PostedAt != nil && !in.PostedAt.IsZero() {
			posted := in.PostedAt.UTC()
			item.PostedAt = &posted
		}
		items[n] = item
	}
	return items, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// Fingerprint returns the SHA-256 hex digest of the batch's canonical JSON.
// Items keep their order; keys within an item are sorted by encoding/json.
// Amounts use their shortest decimal form and dates RFC 3339 in UTC.
func Fingerprint(items []TransactionInput) (string, error) {
	canonical := make([]map[string]interface{}, len(items))
	for n, item := range items {
		var posted interface{}
		if item.PostedAt != nil {
			posted = item.PostedAt.UTC().Format(time.RFC3339Nano)
		}
		canonical[n] = map[string]interface{}{
			"amount":      item.Amount.String(),
			"currency":    item.Currency,
			"description": item.Description,
			"external_id": item.ExternalID,
			"posted_at":   posted,
		}
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
