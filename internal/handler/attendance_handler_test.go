package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-engine/internal/service"
	"github.com/noah-isme/attendance-engine/pkg/jobs"
	"github.com/noah-isme/attendance-engine/pkg/response"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	attendance := service.NewAttendanceService(nil, nil, nil, nil, nil, nil)
	verification := service.NewVerificationService(nil, nil, nil, nil, nil)
	students := service.NewStudentAttendanceService(nil, nil, nil, nil)
	timetables := service.NewTimetableService(nil, nil, nil)
	summaries := service.NewSummaryService(nil, nil, 0, nil, nil)
	reconciler := service.NewReconcileService(nil, nil, nil, nil, 15, false)
	notifications := service.NewNotificationService(nil, jobs.QueueConfig{}, nil)

	RegisterRoutes(r, "/api/v1", Registry{
		Timetables:    NewTimetableHandler(timetables),
		Attendance:    NewAttendanceHandler(attendance, verification),
		Students:      NewStudentAttendanceHandler(students),
		Summaries:     NewSummaryHandler(summaries),
		Reconcile:     NewReconcileHandler(reconciler),
		Notifications: NewNotificationHandler(notifications),
	})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestMarkPresentRejectsMalformedBody(t *testing.T) {
	r := testRouter()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/attendance/mark-present", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid check-in payload", envelope.Error.Message)
}

func TestMarkPresentRequiresTeacherID(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodPost, "/api/v1/attendance/mark-present", map[string]string{"date": "2026-03-02"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
}

func TestVerifyRejectsUnknownAuthorityOverHTTP(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodPost, "/api/v1/attendance/rec-1/verify", map[string]interface{}{
		"authority":   "principal",
		"approved":    true,
		"reviewer_id": "reviewer-1",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkMarkRejectsEmptyItems(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodPost, "/api/v1/student-attendance/bulk-mark", map[string]interface{}{
		"teacher_id": "teacher-1",
		"date":       "2026-03-02",
		"items":      []interface{}{},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcileRejectsMalformedDate(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/reconcile", map[string]interface{}{
		"date": "March 2, 2026",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid date format, expected YYYY-MM-DD", envelope.Error.Message)
}

func TestTimetableCreateRejectsBadClock(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodPost, "/api/v1/timetables", map[string]interface{}{
		"teacher_id":  "teacher-1",
		"day_of_week": 0,
		"start_time":  "8am",
		"end_time":    "10:00",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummariesGetRequiresUserID(t *testing.T) {
	r := testRouter()
	w := doJSON(t, r, http.MethodGet, "/api/v1/summaries?month=2026-03", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
