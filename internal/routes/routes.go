package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "invoice-reconciliation-backend/internal/handlers"
	"invoice-reconciliation-backend/internal/services/explain"
	"invoice-reconciliation-backend/internal/services/ingestion"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, generator explain.Generator, logger *zap.Logger) {
	reconService := service.NewReconciliationService(db, logger)
	importer := ingestion.NewImporter(db, logger)
	explainer := explain.NewService(db, generator, logger)

	reconHandler := handler.NewReconciliationHandler(reconService, importer, explainer, logger)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/tenants", reconHandler.CreateTenant)
	api.GET("/tenants", reconHandler.ListTenants)

	tenant := api.Group("/tenants/:tenantId")
	tenant.GET("", reconHandler.GetTenant)

	// Invoice routes
	tenant.POST("/invoices", reconHandler.CreateInvoice)
	tenant.GET("/invoices", reconHandler.ListInvoices)
	tenant.DELETE("/invoices/:invoiceId", reconHandler.DeleteInvoice)

	// Bank transaction routes
	tenant.POST("/bank-transactions/import", reconHandler.ImportTransactions)
	tenant.GET("/bank-transactions", reconHandler.ListTransactions)

	// Reconciliation routes
	tenant.POST("/reconcile", reconHandler.Reconcile)
	tenant.GET("/reconcile/explain", reconHandler.Explain)
	tenant.GET("/matches", reconHandler.ListMatches)
	tenant.POST("/matches/:matchId/confirm", reconHandler.ConfirmMatch)
}
