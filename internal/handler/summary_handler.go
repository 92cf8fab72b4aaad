package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-engine/internal/service"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

// SummaryHandler exposes monthly summary routes.
type SummaryHandler struct {
	summaries *service.SummaryService
}

// NewSummaryHandler constructs a new SummaryHandler.
func NewSummaryHandler(summaries *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Refresh godoc
// @Summary Recompute the monthly summary for a user
// @Tags Summaries
// @Accept json
// @Produce json
// @Param payload body service.RefreshSummaryRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Router /summaries/refresh [post]
func (h *SummaryHandler) Refresh(c *gin.Context) {
	var req service.RefreshSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	summary, err := h.summaries.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Monthly summary for a user
// @Tags Summaries
// @Produce json
// @Param user_id query string true "User ID"
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /summaries [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	summary, err := h.summaries.Get(c.Request.Context(), c.Query("user_id"), c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
