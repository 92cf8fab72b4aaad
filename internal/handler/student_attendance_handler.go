package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-engine/internal/service"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

// StudentAttendanceHandler exposes student attendance recording routes.
type StudentAttendanceHandler struct {
	students *service.StudentAttendanceService
}

// NewStudentAttendanceHandler constructs a new StudentAttendanceHandler.
func NewStudentAttendanceHandler(students *service.StudentAttendanceService) *StudentAttendanceHandler {
	return &StudentAttendanceHandler{students: students}
}

// BulkMark godoc
// @Summary Bulk mark student attendance for a lesson
// @Tags StudentAttendance
// @Accept json
// @Produce json
// @Param payload body service.BulkMarkRequest true "Bulk mark payload"
// @Success 200 {object} response.Envelope
// @Router /student-attendance/bulk-mark [post]
func (h *StudentAttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk mark payload"))
		return
	}
	result, err := h.students.BulkMark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ByDate godoc
// @Summary Student attendance report for a teacher and date
// @Tags StudentAttendance
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /student-attendance/by-date [get]
func (h *StudentAttendanceHandler) ByDate(c *gin.Context) {
	report, err := h.students.ByDate(c.Request.Context(), c.Query("teacher_id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
