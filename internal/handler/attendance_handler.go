package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-engine/internal/service"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

// AttendanceHandler wires the attendance ledger to HTTP routes.
type AttendanceHandler struct {
	attendance   *service.AttendanceService
	verification *service.VerificationService
}

// NewAttendanceHandler constructs a new AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, verification *service.VerificationService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, verification: verification}
}

// MarkPresent godoc
// @Summary Teacher self check-in
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkPresentRequest true "Check-in payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/mark-present [post]
func (h *AttendanceHandler) MarkPresent(c *gin.Context) {
	var req service.MarkPresentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	record, message, err := h.attendance.MarkPresent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil, map[string]interface{}{"message": message})
}

// CheckOut godoc
// @Summary Teacher check-out
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CheckOutRequest true "Check-out payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req service.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-out payload"))
		return
	}
	record, err := h.attendance.CheckOut(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ReportAbsence godoc
// @Summary Report a planned absence over a date range
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.PlannedAbsenceRequest true "Absence payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/report-absence [post]
func (h *AttendanceHandler) ReportAbsence(c *gin.Context) {
	var req service.PlannedAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	records, err := h.attendance.ReportPlannedAbsence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{"days": len(records)})
}

// Today godoc
// @Summary Today's attendance for a teacher
// @Tags Attendance
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	record, err := h.attendance.Today(c.Request.Context(), c.Query("teacher_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.JSON(c, http.StatusOK, nil, nil, map[string]interface{}{"message": "no attendance marked for today"})
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ByTeacher godoc
// @Summary Attendance history with statistics
// @Tags Attendance
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/by-teacher [get]
func (h *AttendanceHandler) ByTeacher(c *gin.Context) {
	req := service.ByTeacherRequest{
		TeacherID: c.Query("teacher_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	records, stats, err := h.attendance.ByTeacherWithStats(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"records": records, "statistics": stats}, nil)
}

// WeeklySchedule godoc
// @Summary Weekly schedule with attendance status
// @Tags Attendance
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Param start_date query string false "Week start (YYYY-MM-DD)"
// @Param end_date query string false "Week end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/weekly-schedule [get]
func (h *AttendanceHandler) WeeklySchedule(c *gin.Context) {
	req := service.WeeklyScheduleRequest{
		TeacherID: c.Query("teacher_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	schedule, err := h.attendance.WeeklySchedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Verify godoc
// @Summary Reviewer verification of an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance record ID"
// @Param payload body service.VerifyRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/verify [post]
func (h *AttendanceHandler) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}
	req.RecordID = c.Param("id")
	record, err := h.verification.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
