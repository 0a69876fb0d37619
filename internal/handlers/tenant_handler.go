package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *ReconciliationHandler) CreateTenant(c *gin.Context) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	tenant, err := h.service.CreateTenant(c.Request.Context(), payload.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *ReconciliationHandler) ListTenants(c *gin.Context) {
	tenants, err := h.service.ListTenants(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (h *ReconciliationHandler) GetTenant(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantId", "invalid tenant ID")
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}
