// Package matching scores how likely an invoice was paid by a bank transaction.
//
// Three independent rules are summed:
//   - amount: exact match +50, otherwise within 5 units +20
//   - date: invoice date and posting date at most 3 whole days apart +20
//   - description: invoice description contained in the transaction description +10
//
// Missing fields contribute nothing. Currencies are not compared or converted.
package matching

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
)

const (
	ExactAmountPoints = 50
	NearAmountPoints  = 20
	DatePoints        = 20
	DescriptionPoints = 10

	MaxScore = ExactAmountPoints + DatePoints + DescriptionPoints

	dateWindowDays = 3
)

var amountTolerance = decimal.NewFromInt(5)

// Breakdown is the per-rule contribution to a score.
type Breakdown struct {
	Amount      int `json:"amount"`
	Date        int `json:"date"`
	Description int `json:"description"`
	Total       int `json:"total"`
}

// Score returns the confidence score of the pair, in [0, MaxScore].
func Score(inv *models.Invoice, tx *models.BankTransaction) int {
	return Explain(inv, tx).Total
}

// Explain returns the score of the pair split by rule.
func Explain(inv *models.Invoice, tx *models.BankTransaction) Breakdown {
	b := Breakdown{
		Amount:      amountScore(inv.Amount, tx.Amount),
		Date:        dateScore(inv.InvoiceDate, tx.PostedAt),
		Description: descriptionScore(inv.Description, tx.Description),
	}
	b.Total = b.Amount + b.Date + b.Description
	return b
}

func amountScore(invoiceAmount, txAmount decimal.Decimal) int {
	if invoiceAmount.Equal(txAmount) {
		return ExactAmountPoints
	}
	if invoiceAmount.Sub(txAmount).Abs().LessThanOrEqual(amountTolerance) {
		return NearAmountPoints
	}
	return 0
}

func dateScore(invoiceDate, postedAt *time.Time) int {
	if invoiceDate == nil || postedAt == nil || invoiceDate.IsZero() || postedAt.IsZero() {
		return 0
	}
	diff := invoiceDate.Sub(*postedAt)
	if diff < 0 {
		diff = -diff
	}
	if int(diff/(24*time.Hour)) <= dateWindowDays {
		return DatePoints
	}
	return 0
}

// An empty description counts as absent.
func descriptionScore(invoiceDesc, txDesc *string) int {
	if invoiceDesc == nil || txDesc == nil || *invoiceDesc == "" || *txDesc == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(*txDesc), strings.ToLower(*invoiceDesc)) {
		return DescriptionPoints
	}
	return 0
}
