package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giftledger/internal/services"
)

// OpsHandler exposes the maintenance jobs to the sweeper.
type OpsHandler struct {
	expiryService    services.ExpiryServicer
	reconcileService services.ReconcileServicer
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(expiryService services.ExpiryServicer, reconcileService services.ReconcileServicer) *OpsHandler {
	return &OpsHandler{expiryService: expiryService, reconcileService: reconcileService}
}

// CloseExpired handles POST /api/internal/expire.
func (h *OpsHandler) CloseExpired(c *gin.Context) {
	report, err := h.expiryService.CloseExpired(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Reconcile handles GET /api/internal/reconcile. An unbalanced ledger is
// reported with 409.
func (h *OpsHandler) Reconcile(c *gin.Context) {
	report, err := h.reconcileService.Check(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	status := http.StatusOK
	if !report.Balanced {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}
