package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/services/ingestion"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

type transactionPayload struct {
	ExternalID  *string         `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description *string         `json:"description"`
	PostedAt    *string         `json:"posted_at"`
}

// ImportTransactions stores a batch of bank transactions under the request's
// Idempotency-Key. Replays return the first response byte for byte.
func (h *ReconciliationHandler) ImportTransactions(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	var payload []transactionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	inputs := make([]ingestion.TransactionInput, len(payload))
	for i, p := range payload {
		postedAt, err := parseDate(p.PostedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inputs[i] = ingestion.TransactionInput{
			ExternalID:  p.ExternalID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: p.Description,
			PostedAt:    postedAt,
		}
	}

	result, err := h.importer.Import(c.Request.Context(), tenantID, inputs, c.GetHeader(idempotencyKeyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header(replayedHeader, strconv.FormatBool(result.Replayed))
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Raw)
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}

	txs, err := h.service.ListTransactions(c.Request.Context(), tenantID, skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
