// Package explain produces human-readable explanations of invoice and
// transaction pairs. The model behind it is treated as unreliable: any
// generator failure is replaced by a fixed text carrying the score.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperr"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/matching"
)

type Explanation struct {
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	TransactionID uuid.UUID          `json:"transaction_id"`
	Score         int                `json:"score"`
	Breakdown     matching.Breakdown `json:"breakdown"`
	Explanation   string             `json:"explanation"`
	Source        string             `json:"source"`
}

type Service struct {
	tenantRepo      *repository.TenantRepository
	invoiceRepo     *repository.InvoiceRepository
	transactionRepo *repository.BankTransactionRepository
	generator       Generator
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

func NewService(db *gorm.DB, generator Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = disabledGenerator{}
	}
	return &Service{
		tenantRepo:      repository.NewTenantRepository(db),
		invoiceRepo:     repository.NewInvoiceRepository(db),
		transactionRepo: repository.NewBankTransactionRepository(db),
		generator:       generator,
		logger:          logger.Named("explain"),
		metrics:         metrics.New(),
	}
}

// Explain scores the pair and asks the generator to describe it.
func (s *Service) Explain(ctx context.Context, tenantID, invoiceID, transactionID uuid.UUID) (*Explanation, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tenant not found")
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, tenantID, invoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("invoice not found for tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	tx, err := s.transactionRepo.GetByID(ctx, tenantID, transactionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction not found for tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	breakdown := matching.Explain(invoice, tx)
	result := &Explanation{
		InvoiceID:     invoice.ID,
		TransactionID: tx.ID,
		Score:         breakdown.Total,
		Breakdown:     breakdown,
		Source:        metrics.SourceModel,
	}

	text, err := s.generator.Generate(ctx, buildPrompt(invoice, tx, breakdown.Total))
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			s.logger.Warn("explanation generator failed, using fallback",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
		text = Fallback(breakdown.Total)
		result.Source = metrics.SourceFallback
	}
	result.Explanation = text

	s.metrics.ExplanationsTotal.WithLabelValues(result.Source).Inc()
	return result, nil
}

// Fallback is the deterministic explanation used when the generator fails.
func Fallback(score int) string {
	return fmt.Sprintf("Invoice and transaction show amount and/or date similarity. Deterministic score: %d.", score)
}

func buildPrompt(inv *models.Invoice, tx *models.BankTransaction, score int) string {
	var b strings.Builder
	b.WriteString("Invoice:\n")
	fmt.Fprintf(&b, "Amount: %s\n", inv.Amount.String())
	fmt.Fprintf(&b, "Date: %s\n", formatDate(inv.InvoiceDate))
	fmt.Fprintf(&b, "Description: %s\n\n", sanitize(inv.Description))
	b.WriteString("Transaction:\n")
	fmt.Fprintf(&b, "Amount: %s\n", tx.Amount.String())
	fmt.Fprintf(&b, "Date: %s\n", formatDate(tx.PostedAt))
	fmt.Fprintf(&b, "Description: %s\n\n", sanitize(tx.Description))
	fmt.Fprintf(&b, "Heuristic Score: %d\n", score)
	return b.String()
}

// sanitize strips template braces from user-supplied text.
func sanitize(s *string) string {
	if s == nil {
		return "none"
	}
	return strings.NewReplacer("{", "", "}", "").Replace(*s)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
