package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-engine/internal/service"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

// TimetableHandler wires the timetable store to HTTP routes.
type TimetableHandler struct {
	timetables *service.TimetableService
}

// NewTimetableHandler constructs a new TimetableHandler.
func NewTimetableHandler(timetables *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables}
}

// List godoc
// @Summary List timetable entries for a teacher
// @Tags Timetables
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Param active query bool false "Only active entries"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	activeOnly := strings.EqualFold(c.Query("active"), "true")
	entries, err := h.timetables.List(c.Request.Context(), c.Query("teacher_id"), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Create godoc
// @Summary Create a timetable entry
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body service.UpsertTimetableRequest true "Timetable payload"
// @Success 201 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req service.UpsertTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	req.ID = ""
	entry, err := h.timetables.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update a timetable entry
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.UpsertTimetableRequest true "Timetable payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var req service.UpsertTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	req.ID = c.Param("id")
	entry, err := h.timetables.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Deactivate godoc
// @Summary Deactivate a timetable entry
// @Tags Timetables
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Deactivate(c *gin.Context) {
	if err := h.timetables.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
