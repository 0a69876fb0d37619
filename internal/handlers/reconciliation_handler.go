package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/apperr"
	"invoice-reconciliation-backend/internal/services/explain"
	"invoice-reconciliation-backend/internal/services/ingestion"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service   *service.ReconciliationService
	importer  *ingestion.Importer
	explainer *explain.Service
	logger    *zap.Logger
}

func NewReconciliationHandler(s *service.ReconciliationService, importer *ingestion.Importer, explainer *explain.Service, logger *zap.Logger) *ReconciliationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationHandler{service: s, importer: importer, explainer: explainer, logger: logger}
}

// Reconcile runs a matching sweep for the tenant and returns the new matches.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	matches, err := h.service.Reconcile(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *ReconciliationHandler) ListMatches(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	matches, err := h.service.ListMatches(c.Request.Context(), tenantID, c.Query("status"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *ReconciliationHandler) ConfirmMatch(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}
	matchID, ok := pathID(c, "matchId", "invalid match ID")
	if !ok {
		return
	}

	match, err := h.service.ConfirmMatch(c.Request.Context(), tenantID, matchID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// Explain describes why an invoice and a transaction look alike.
func (h *ReconciliationHandler) Explain(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}
	invoiceID, err := uuid.Parse(c.Query("invoice_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
		return
	}
	txID, err := uuid.Parse(c.Query("transaction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	explanation, err := h.explainer.Explain(c.Request.Context(), tenantID, invoiceID, txID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

func pathID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service error kinds to HTTP statuses. Unclassified
// errors are logged and reported without detail.
func (h *ReconciliationHandler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": appErr.Message})
}
