package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-engine/internal/service"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

// ReconcileHandler exposes the administrative reconciliation trigger.
type ReconcileHandler struct {
	reconciler *service.ReconcileService
}

// NewReconcileHandler constructs a new ReconcileHandler.
func NewReconcileHandler(reconciler *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

// Run godoc
// @Summary Run attendance reconciliation for a date
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.ReconcileRequest true "Reconcile payload"
// @Success 200 {object} response.Envelope
// @Router /admin/reconcile [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	var req service.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}
	result, err := h.reconciler.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
