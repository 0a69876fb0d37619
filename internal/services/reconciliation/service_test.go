package reconciliation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperr"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/matching"
	"invoice-reconciliation-backend/internal/testutil"
)

func newTestService(t *testing.T) (*ReconciliationService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewReconciliationService(db, nil), db
}

func strPtr(s string) *string { return &s }

func day(d int) *time.Time {
	t := time.Date(2026, time.February, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func mustTenant(t *testing.T, svc *ReconciliationService, name string) *models.Tenant {
	t.Helper()
	tenant, err := svc.CreateTenant(context.Background(), name)
	require.NoError(t, err)
	return tenant
}

func mustInvoice(t *testing.T, svc *ReconciliationService, tenantID uuid.UUID, amount string, date *time.Time, desc *string) *models.Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), tenantID, InvoiceInput{
		Amount:      decimal.RequireFromString(amount),
		InvoiceDate: date,
		Description: desc,
	})
	require.NoError(t, err)
	return inv
}

func seedTransaction(t *testing.T, db *gorm.DB, tenantID uuid.UUID, amount string, posted *time.Time, desc *string) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PostedAt:    posted,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		Description: desc,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func TestCreateTenant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "  Acme  ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)

	got, err := svc.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)

	_, err = svc.CreateTenant(ctx, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateTenant(ctx, strings.Repeat("x", 256))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	accented, err := svc.CreateTenant(ctx, strings.Repeat("é", 255))
	require.NoError(t, err)
	assert.Equal(t, 255, utf8.RuneCountInString(accented.Name))

	_, err = svc.CreateTenant(ctx, strings.Repeat("é", 256))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.GetTenant(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	tenants, err := svc.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}

func TestCreateInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	inv, err := svc.CreateInvoice(ctx, tenant.ID, InvoiceInput{Amount: decimal.NewFromInt(42)})
	require.NoError(t, err)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, models.InvoiceStatusOpen, inv.Status)

	inv, err = svc.CreateInvoice(ctx, tenant.ID, InvoiceInput{Amount: decimal.NewFromInt(1), Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", inv.Currency)

	_, err = svc.CreateInvoice(ctx, tenant.ID, InvoiceInput{Amount: decimal.Zero})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateInvoice(ctx, tenant.ID, InvoiceInput{Amount: decimal.NewFromInt(-5)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	for _, in := range []InvoiceInput{
		{Amount: decimal.RequireFromString("100.005")},
		{Amount: decimal.RequireFromString("1000000000000000000")},
		{Amount: decimal.NewFromInt(10), Currency: "EURO"},
		{Amount: decimal.NewFromInt(10), Currency: "U$D"},
	} {
		_, err = svc.CreateInvoice(ctx, tenant.ID, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "amount %s currency %q", in.Amount, in.Currency)
	}

	inv, err = svc.CreateInvoice(ctx, tenant.ID, InvoiceInput{Amount: decimal.RequireFromString("999999999999999999.99")})
	require.NoError(t, err)
	assert.Equal(t, "999999999999999999.99", inv.Amount.String())

	stored, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	_, err = svc.CreateInvoice(ctx, uuid.New(), InvoiceInput{Amount: decimal.NewFromInt(1)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListInvoices_FiltersAndBounds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	for _, amount := range []string{"10", "50", "100", "500"} {
		mustInvoice(t, svc, tenant.ID, amount, nil, nil)
	}

	all, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	minAmount := decimal.NewFromInt(50)
	maxAmount := decimal.NewFromInt(100)
	ranged, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{MinAmount: &minAmount, MaxAmount: &maxAmount}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	page, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	matched := models.InvoiceStatusMatched
	none, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{Status: &matched}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{MinAmount: &maxAmount, MaxAmount: &minAmount}, 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	bogus := "paid"
	_, err = svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{Status: &bogus}, 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{}, -1, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestBounds(t *testing.T) {
	skip, limit, err := bounds(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	assert.Equal(t, DefaultListLimit, limit)

	_, limit, err = bounds(5, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, limit)

	_, _, err = bounds(0, -1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeleteInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenantA := mustTenant(t, svc, "A")
	tenantB := mustTenant(t, svc, "B")
	inv := mustInvoice(t, svc, tenantA.ID, "10", nil, nil)

	err := svc.DeleteInvoice(ctx, tenantB.ID, inv.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.DeleteInvoice(ctx, tenantA.ID, inv.ID))

	err = svc.DeleteInvoice(ctx, tenantA.ID, inv.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "invoice not found for tenant", apperr.Message(err))
}

func TestReconcile_ProposesScoredMatches(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	inv := mustInvoice(t, svc, tenant.ID, "100", day(20), strPtr("Office Supplies"))
	tx := seedTransaction(t, db, tenant.ID, "100.00", day(21), strPtr("Office Supplies Payment"))

	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, inv.ID, m.InvoiceID)
	assert.Equal(t, tx.ID, m.BankTransactionID)
	assert.Equal(t, 80, m.Score)
	assert.Equal(t, models.MatchStatusProposed, m.Status)
	assert.Nil(t, m.ConfirmedAt)

	var breakdown matching.Breakdown
	require.NoError(t, json.Unmarshal(m.Breakdown, &breakdown))
	assert.Equal(t, matching.Breakdown{Amount: 50, Date: 20, Description: 10, Total: 80}, breakdown)

	var run models.ReconciliationRun
	require.NoError(t, db.First(&run, "id = ?", m.RunID).Error)
	assert.Equal(t, 1, run.InvoiceCount)
	assert.Equal(t, 1, run.TransactionCount)
	assert.Equal(t, 1, run.MatchCount)
}

func TestReconcile_SkipsZeroScores(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	mustInvoice(t, svc, tenant.ID, "100", nil, nil)
	seedTransaction(t, db, tenant.ID, "500", nil, nil)

	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestReconcile_EveryPairScored(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	mustInvoice(t, svc, tenant.ID, "100", nil, nil)
	mustInvoice(t, svc, tenant.ID, "102", nil, nil)
	seedTransaction(t, db, tenant.ID, "100", nil, nil)
	seedTransaction(t, db, tenant.ID, "101", nil, nil)
	seedTransaction(t, db, tenant.ID, "900", nil, nil)

	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 4)

	for _, m := range matches {
		assert.Positive(t, m.Score)
		assert.LessOrEqual(t, m.Score, matching.MaxScore)
	}
}

func TestReconcile_RepeatedSweepsDuplicate(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	mustInvoice(t, svc, tenant.ID, "100", day(20), nil)
	seedTransaction(t, db, tenant.ID, "100", day(20), nil)

	first, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].RunID, second[0].RunID)

	all, err := svc.ListMatches(ctx, tenant.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReconcile_NotFound(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "tenant not found", apperr.Message(err))

	tenant := mustTenant(t, svc, "Acme")
	_, err = svc.Reconcile(ctx, tenant.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "no invoices found for tenant", apperr.Message(err))

	mustInvoice(t, svc, tenant.ID, "100", nil, nil)
	_, err = svc.Reconcile(ctx, tenant.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "no bank transactions found for tenant", apperr.Message(err))

	var count int64
	require.NoError(t, db.Model(&models.ReconciliationRun{}).Count(&count).Error)
	assert.Zero(t, count)

	seedTransaction(t, db, tenant.ID, "100", nil, nil)
	_, err = svc.Reconcile(ctx, tenant.ID)
	assert.NoError(t, err)
}

func TestReconcile_TenantIsolation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenantA := mustTenant(t, svc, "A")
	tenantB := mustTenant(t, svc, "B")

	invA := mustInvoice(t, svc, tenantA.ID, "100", nil, nil)
	txA := seedTransaction(t, db, tenantA.ID, "100", nil, nil)
	mustInvoice(t, svc, tenantB.ID, "100", nil, nil)
	seedTransaction(t, db, tenantB.ID, "100", nil, nil)

	matches, err := svc.Reconcile(ctx, tenantA.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, invA.ID, matches[0].InvoiceID)
	assert.Equal(t, txA.ID, matches[0].BankTransactionID)
	assert.Equal(t, tenantA.ID, matches[0].TenantID)

	bMatches, err := svc.ListMatches(ctx, tenantB.ID, "")
	require.NoError(t, err)
	assert.Empty(t, bMatches)

	_, err = svc.ConfirmMatch(ctx, tenantB.ID, matches[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "match not found for tenant", apperr.Message(err))
}

func TestConfirmMatch(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	inv := mustInvoice(t, svc, tenant.ID, "100", day(20), strPtr("Office Supplies"))
	seedTransaction(t, db, tenant.ID, "100.00", day(21), strPtr("Office Supplies Payment"))

	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	confirmed, err := svc.ConfirmMatch(ctx, tenant.ID, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, 80, confirmed.Score)

	invoices, err := svc.ListInvoices(ctx, tenant.ID, repository.InvoiceFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, inv.ID, invoices[0].ID)
	assert.Equal(t, models.InvoiceStatusMatched, invoices[0].Status)

	confirmedOnly, err := svc.ListMatches(ctx, tenant.ID, models.MatchStatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmedOnly, 1)

	trail, err := repository.NewMatchRepository(db).AuditTrail(ctx, tenant.ID, confirmed.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditActionConfirm, trail[0].Action)
	assert.Equal(t, models.MatchStatusProposed, trail[0].PreviousStatus)
	assert.Equal(t, models.MatchStatusConfirmed, trail[0].NewStatus)
}

func TestConfirmMatch_AlreadyConfirmed(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")

	mustInvoice(t, svc, tenant.ID, "100", nil, nil)
	seedTransaction(t, db, tenant.ID, "100", nil, nil)

	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	first, err := svc.ConfirmMatch(ctx, tenant.ID, matches[0].ID)
	require.NoError(t, err)

	_, err = svc.ConfirmMatch(ctx, tenant.ID, matches[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "match is already confirmed", apperr.Message(err))

	var stored models.Match
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	assert.Equal(t, models.MatchStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, first.ConfirmedAt.Equal(*stored.ConfirmedAt))

	trail, err := repository.NewMatchRepository(db).AuditTrail(ctx, tenant.ID, first.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestConfirmMatch_NotFound(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.ConfirmMatch(ctx, uuid.New(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "tenant not found", apperr.Message(err))

	tenant := mustTenant(t, svc, "Acme")
	_, err = svc.ConfirmMatch(ctx, tenant.ID, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	inv := mustInvoice(t, svc, tenant.ID, "100", nil, nil)
	seedTransaction(t, db, tenant.ID, "100", nil, nil)
	matches, err := svc.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(ctx, tenant.ID, inv.ID))

	_, err = svc.ConfirmMatch(ctx, tenant.ID, matches[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "invoice for match not found", apperr.Message(err))

	var stored models.Match
	require.NoError(t, db.First(&stored, "id = ?", matches[0].ID).Error)
	assert.Equal(t, models.MatchStatusProposed, stored.Status)
}

func TestListMatches_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := mustTenant(t, svc, "Acme")

	_, err := svc.ListMatches(context.Background(), tenant.ID, "rejected")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListTransactions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc, "Acme")
	other := mustTenant(t, svc, "Other")

	seedTransaction(t, db, tenant.ID, "1", nil, nil)
	seedTransaction(t, db, tenant.ID, "2", nil, nil)
	seedTransaction(t, db, other.ID, "3", nil, nil)

	txs, err := svc.ListTransactions(ctx, tenant.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	_, err = svc.ListTransactions(ctx, uuid.New(), 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
