package handler

import (
	"github.com/gin-gonic/gin"
)

// Registry groups the handlers mounted on the API router.
type Registry struct {
	Timetables    *TimetableHandler
	Attendance    *AttendanceHandler
	Students      *StudentAttendanceHandler
	Summaries     *SummaryHandler
	Reconcile     *ReconcileHandler
	Notifications *NotificationHandler
}

// RegisterRoutes mounts all application routes under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, reg Registry) {
	api := r.Group(prefix)

	timetables := api.Group("/timetables")
	timetables.GET("", reg.Timetables.List)
	timetables.POST("", reg.Timetables.Create)
	timetables.PUT("/:id", reg.Timetables.Update)
	timetables.DELETE("/:id", reg.Timetables.Deactivate)

	attendance := api.Group("/attendance")
	attendance.POST("/mark-present", reg.Attendance.MarkPresent)
	attendance.POST("/check-out", reg.Attendance.CheckOut)
	attendance.POST("/report-absence", reg.Attendance.ReportAbsence)
	attendance.GET("/today", reg.Attendance.Today)
	attendance.GET("/by-teacher", reg.Attendance.ByTeacher)
	attendance.GET("/weekly-schedule", reg.Attendance.WeeklySchedule)
	attendance.POST("/:id/verify", reg.Attendance.Verify)

	students := api.Group("/student-attendance")
	students.POST("/bulk-mark", reg.Students.BulkMark)
	students.GET("/by-date", reg.Students.ByDate)

	summaries := api.Group("/summaries")
	summaries.GET("", reg.Summaries.Get)
	summaries.POST("/refresh", reg.Summaries.Refresh)

	notifications := api.Group("/notifications")
	notifications.GET("", reg.Notifications.List)
	notifications.POST("/:id/read", reg.Notifications.MarkRead)

	admin := api.Group("/admin")
	admin.POST("/reconcile", reg.Reconcile.Run)
}
