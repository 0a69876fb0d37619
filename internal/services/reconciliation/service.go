package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperr"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/matching"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	maxTenantName    = 255
)

type ReconciliationService struct {
	db              *gorm.DB
	tenantRepo      *repository.TenantRepository
	invoiceRepo     *repository.InvoiceRepository
	transactionRepo *repository.BankTransactionRepository
	matchRepo       *repository.MatchRepository
	logger          *zap.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewReconciliationService(db *gorm.DB, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		db:              db,
		tenantRepo:      repository.NewTenantRepository(db),
		invoiceRepo:     repository.NewInvoiceRepository(db),
		transactionRepo: repository.NewBankTransactionRepository(db),
		matchRepo:       repository.NewMatchRepository(db),
		logger:          logger.Named("reconciliation"),
		metrics:         metrics.New(),
		now:             func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// InvoiceInput is the caller-supplied part of a new invoice.
type InvoiceInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description *string
	InvoiceDate *time.Time
}

// CreateTenant creates a tenant with a trimmed, non-empty name.
func (s *ReconciliationService) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("tenant name is required")
	}
	if utf8.RuneCountInString(name) > maxTenantName {
		return nil, apperr.Validation(fmt.Sprintf("tenant name must be at most %d characters", maxTenantName))
	}

	tenant := &models.Tenant{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID.String()))
	return tenant, nil
}

func (s *ReconciliationService) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.tenantRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *ReconciliationService) GetTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	return requireTenant(ctx, s.tenantRepo, tenantID)
}

// CreateInvoice adds an open invoice to a tenant.
func (s *ReconciliationService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	if err := models.CheckAmount(in.Amount); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	currency, err := models.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	invoice := &models.Invoice{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Amount:      in.Amount,
		Currency:    currency,
		InvoiceDate: in.InvoiceDate,
		Description: in.Description,
		Status:      models.InvoiceStatusOpen,
		CreatedAt:   s.now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireTenant(ctx, s.tenantRepo.WithTx(tx), tenantID); err != nil {
			return err
		}
		return s.invoiceRepo.WithTx(tx).Create(ctx, invoice)
	})
	if err != nil {
		return nil, classify("create invoice", err)
	}
	return invoice, nil
}

// ListInvoices returns a tenant's invoices matching filter within skip/limit bounds.
// A zero limit means DefaultListLimit; larger limits are clamped to MaxListLimit.
func (s *ReconciliationService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter repository.InvoiceFilter, skip, limit int) ([]models.Invoice, error) {
	if err := filter.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	skip, limit, err := bounds(skip, limit)
	if err != nil {
		return nil, err
	}
	if _, err := requireTenant(ctx, s.tenantRepo, tenantID); err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.Search(ctx, tenantID, filter, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (s *ReconciliationService) DeleteInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireTenant(ctx, s.tenantRepo.WithTx(tx), tenantID); err != nil {
			return err
		}
		deleted, err := s.invoiceRepo.WithTx(tx).Delete(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound("invoice not found for tenant")
		}
		return nil
	})
	return classify("delete invoice", err)
}

func (s *ReconciliationService) ListTransactions(ctx context.Context, tenantID uuid.UUID, skip, limit int) ([]models.BankTransaction, error) {
	skip, limit, err := bounds(skip, limit)
	if err != nil {
		return nil, err
	}
	if _, err := requireTenant(ctx, s.tenantRepo, tenantID); err != nil {
		return nil, err
	}

	txs, err := s.transactionRepo.List(ctx, tenantID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// ListMatches returns a tenant's matches, optionally filtered by status.
func (s *ReconciliationService) ListMatches(ctx context.Context, tenantID uuid.UUID, status string) ([]models.Match, error) {
	switch status {
	case "", models.MatchStatusProposed, models.MatchStatusConfirmed:
	default:
		return nil, apperr.Validation(fmt.Sprintf("status must be %q or %q", models.MatchStatusProposed, models.MatchStatusConfirmed))
	}
	if _, err := requireTenant(ctx, s.tenantRepo, tenantID); err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.List(ctx, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// Reconcile scores every invoice against every bank transaction of the tenant
// and stores each pair with a positive score as a proposed match. Earlier
// sweeps are not consulted, so repeated calls create duplicate matches.
func (s *ReconciliationService) Reconcile(ctx context.Context, tenantID uuid.UUID) ([]models.Match, error) {
	started := time.Now()
	run := models.ReconciliationRun{
		ID:        uuid.New(),
		TenantID:  tenantID,
		StartedAt: s.now(),
	}

	var matches []models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireTenant(ctx, s.tenantRepo.WithTx(tx), tenantID); err != nil {
			return err
		}

		invoices, err := s.invoiceRepo.WithTx(tx).ListByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return apperr.NotFound("no invoices found for tenant")
		}

		transactions, err := s.transactionRepo.WithTx(tx).ListByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(transactions) == 0 {
			return apperr.NotFound("no bank transactions found for tenant")
		}

		createdAt := s.now()
		for i := range invoices {
			for j := range transactions {
				breakdown := matching.Explain(&invoices[i], &transactions[j])
				if breakdown.Total <= 0 {
					continue
				}
				details, err := json.Marshal(breakdown)
				if err != nil {
					return err
				}
				matches = append(matches, models.Match{
					ID:                uuid.New(),
					TenantID:          tenantID,
					RunID:             run.ID,
					InvoiceID:         invoices[i].ID,
					BankTransactionID: transactions[j].ID,
					Score:             breakdown.Total,
					Breakdown:         datatypes.JSON(details),
					Status:            models.MatchStatusProposed,
					CreatedAt:         createdAt,
				})
			}
		}

		run.InvoiceCount = len(invoices)
		run.TransactionCount = len(transactions)
		run.MatchCount = len(matches)
		run.CompletedAt = s.now()

		matchRepo := s.matchRepo.WithTx(tx)
		if err := matchRepo.CreateRun(ctx, &run); err != nil {
			return err
		}
		return matchRepo.CreateBatch(ctx, matches)
	})
	if err != nil {
		return nil, classify("reconcile", err)
	}

	s.metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	s.metrics.MatchesProposedTotal.Add(float64(len(matches)))
	s.logger.Info("reconciliation completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("invoices", run.InvoiceCount),
		zap.Int("transactions", run.TransactionCount),
		zap.Int("matches", run.MatchCount),
	)

	if matches == nil {
		matches = []models.Match{}
	}
	return matches, nil
}

// ConfirmMatch moves a proposed match to confirmed and marks its invoice
// matched. Confirming an already confirmed match is a Conflict.
func (s *ReconciliationService) ConfirmMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*models.Match, error) {
	var match *models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireTenant(ctx, s.tenantRepo.WithTx(tx), tenantID); err != nil {
			return err
		}

		matchRepo := s.matchRepo.WithTx(tx)
		invoiceRepo := s.invoiceRepo.WithTx(tx)

		var err error
		match, err = matchRepo.GetByID(ctx, tenantID, matchID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("match not found for tenant")
		}
		if err != nil {
			return err
		}
		if match.Status == models.MatchStatusConfirmed {
			return apperr.Conflict("match is already confirmed")
		}

		invoice, err := invoiceRepo.GetByID(ctx, tenantID, match.InvoiceID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("invoice for match not found")
		}
		if err != nil {
			return err
		}

		confirmedAt := s.now()
		confirmed, err := matchRepo.ConfirmProposed(ctx, tenantID, matchID, confirmedAt)
		if err != nil {
			return err
		}
		if !confirmed {
			// Another writer confirmed it between our read and update.
			return apperr.Conflict("match is already confirmed")
		}
		if err := invoiceRepo.UpdateStatus(ctx, tenantID, invoice.ID, models.InvoiceStatusMatched); err != nil {
			return err
		}

		previous := match.Status
		match.Status = models.MatchStatusConfirmed
		match.ConfirmedAt = &confirmedAt

		return matchRepo.AppendAudit(ctx, &models.MatchAuditLog{
			ID:             uuid.New(),
			TenantID:       tenantID,
			MatchID:        match.ID,
			InvoiceID:      invoice.ID,
			Action:         models.AuditActionConfirm,
			PreviousStatus: previous,
			NewStatus:      match.Status,
			CreatedAt:      confirmedAt,
		})
	})
	if err != nil {
		return nil, classify("confirm match", err)
	}

	s.metrics.MatchesConfirmedTotal.Inc()
	s.logger.Info("match confirmed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("match_id", match.ID.String()),
		zap.String("invoice_id", match.InvoiceID.String()),
	)
	return match, nil
}

// requireTenant resolves a tenant or fails with NotFound.
func requireTenant(ctx context.Context, repo *repository.TenantRepository, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := repo.GetByID(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return tenant, nil
}

func bounds(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, apperr.Validation("skip must not be negative")
	}
	if limit < 0 {
		return 0, 0, apperr.Validation("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return skip, limit, nil
}

// classify passes classified errors through and wraps store failures.
func classify(op string, err error) error {
	if err == nil || apperr.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
