package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/repository"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

const dateOnly = "2006-01-02"

// Accepted date layouts, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	dateOnly,
}

// parseDate parses an optional date. Values without a zone are read as UTC.
func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected RFC 3339 or YYYY-MM-DD", *value)
}

// isDateOnly reports whether value names a calendar day without a time of day.
func isDateOnly(value string) bool {
	_, err := time.Parse(dateOnly, value)
	return err == nil
}

func (h *ReconciliationHandler) CreateInvoice(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	var payload struct {
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Description *string         `json:"description"`
		InvoiceDate *string         `json:"invoice_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	invoiceDate, err := parseDate(payload.InvoiceDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), tenantID, service.InvoiceInput{
		Amount:      payload.Amount,
		Currency:    payload.Currency,
		Description: payload.Description,
		InvoiceDate: invoiceDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *ReconciliationHandler) ListInvoices(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	var filter repository.InvoiceFilter
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	for _, q := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name})
			return
		}
		*q.dst = &amount
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		raw := c.Query(q.name)
		date, err := parseDate(&raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name})
			return
		}
		*q.dst = date
	}
	if filter.EndDate != nil && isDateOnly(c.Query("end_date")) {
		next := filter.EndDate.AddDate(0, 0, 1)
		filter.EndDate, filter.EndBefore = nil, &next
	}

	skip, limit, ok := pagination(c)
	if !ok {
		return
	}

	invoices, err := h.service.ListInvoices(c.Request.Context(), tenantID, filter, skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *ReconciliationHandler) DeleteInvoice(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId", "invalid invoice ID")
	if !ok {
		return
	}

	if err := h.service.DeleteInvoice(c.Request.Context(), tenantID, invoiceID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// pagination reads skip and limit. Missing values are zero and the service
// applies its defaults.
func pagination(c *gin.Context) (int, int, bool) {
	var values [2]int
	for i, name := range []string{"skip", "limit"} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return 0, 0, false
		}
		values[i] = n
	}
	return values[0], values[1], true
}
