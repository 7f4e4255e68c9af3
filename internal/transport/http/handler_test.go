package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "reminder-service/docs"
	"reminder-service/internal/domain/entity"
	"reminder-service/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminderService struct {
	callbacks   []*entity.Callback
	callbackErr error
	reportDay   time.Time
	events      map[string][]*entity.Event
}

func (f *fakeReminderService) SendSlotReminders(ctx context.Context, slotTime, slotID string) error {
	return nil
}

func (f *fakeReminderService) HandleCallback(ctx context.Context, callback *entity.Callback) (string, error) {
	f.callbacks = append(f.callbacks, callback)
	return "ok", f.callbackErr
}

func (f *fakeReminderService) SweepTimeouts(ctx context.Context) error {
	return nil
}

func (f *fakeReminderService) SendWeeklyReports(ctx context.Context) error {
	return nil
}

func (f *fakeReminderService) WeeklyReport(ctx context.Context, userID string, day time.Time) (*report.Summary, error) {
	f.reportDay = day
	start, end := report.WeekRange(day)
	return report.Summarize(userID, start, end, nil, nil), nil
}

func (f *fakeReminderService) TaskEvents(ctx context.Context, taskID string) ([]*entity.Event, error) {
	events, ok := f.events[taskID]
	if !ok {
		return nil, entity.ErrTaskNotFound
	}
	return events, nil
}

func newTestRouter(t *testing.T, svc *fakeReminderService, secret string, limit int) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	handler := NewHandler(svc, secret, 5*time.Second, shanghai, log)
	handler.now = func() time.Time { return time.Date(2024, 1, 7, 16, 0, 0, 0, time.UTC) }
	return NewRouter(handler, NewRateLimiter(limit, nil), nil, log).Setup()
}

const callbackUpdate = `{
	"update_id": 1001,
	"callback_query": {
		"id": "cbq-1",
		"data": "done:task-1",
		"from": {"id": 7},
		"message": {"chat": {"id": 42}}
	}
}`

func TestWebhook_DeliversCallback(t *testing.T) {
	svc := &fakeReminderService{}
	router := newTestRouter(t, svc, "s3cret", 0)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(callbackUpdate))
	req.Header.Set(secretHeader, "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.Len(t, svc.callbacks, 1)
	assert.Equal(t, &entity.Callback{UpdateID: 1001, CallbackID: "cbq-1", ChatID: "42", Data: "done:task-1"}, svc.callbacks[0])
}

func TestWebhook_FallsBackToSenderChat(t *testing.T) {
	svc := &fakeReminderService{}
	router := newTestRouter(t, svc, "", 0)

	body := `{"update_id": 5, "callback_query": {"id": "x", "data": "skip:t", "from": {"id": 7}}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.callbacks, 1)
	assert.Equal(t, "7", svc.callbacks[0].ChatID)
}

func TestWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		method string
		secret string
		body   string
		want   int
	}{
		{name: "bad secret", method: http.MethodPost, secret: "wrong", body: callbackUpdate, want: http.StatusUnauthorized},
		{name: "missing secret", method: http.MethodPost, body: callbackUpdate, want: http.StatusUnauthorized},
		{name: "malformed json", method: http.MethodPost, secret: "s3cret", body: `{"update_id":`, want: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, secret: "s3cret", want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeReminderService{}
			router := newTestRouter(t, svc, "s3cret", 0)

			req := httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body))
			if tt.secret != "" {
				req.Header.Set(secretHeader, tt.secret)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, svc.callbacks)
		})
	}
}

func TestWebhook_AcknowledgesOtherUpdatesAndFailures(t *testing.T) {
	svc := &fakeReminderService{callbackErr: errors.New("store down")}
	router := newTestRouter(t, svc, "", 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id": 9, "message": {"text": "hi"}}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.callbacks)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(callbackUpdate)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.callbacks, 1)
}

func TestWeeklyReport(t *testing.T) {
	svc := &fakeReminderService{}
	router := newTestRouter(t, svc, "", 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/weekly?user_id=42&date=2024-01-07", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary report.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "42", summary.UserID)
	assert.Equal(t, "2024-01-01", summary.WeekStart)
	assert.Equal(t, "2024-01-07", summary.WeekEnd)

	// default day is today in the configured timezone: 16:00 UTC is already Monday in Shanghai
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/weekly?user_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-08", svc.reportDay.Format("2006-01-02"))
}

func TestWeeklyReport_BadRequests(t *testing.T) {
	router := newTestRouter(t, &fakeReminderService{}, "", 0)

	for _, target := range []string{
		"/api/v1/reports/weekly",
		"/api/v1/reports/weekly?user_id=42&date=07.01.2024",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTaskEvents(t *testing.T) {
	at := time.Date(2024, 1, 8, 2, 30, 0, 0, time.UTC)
	svc := &fakeReminderService{events: map[string][]*entity.Event{
		"task-1": {
			{ID: 1, TaskID: "task-1", UserID: "42", Type: entity.EventCreated, CreatedAt: at},
			{ID: 2, TaskID: "task-1", UserID: "42", Type: entity.EventDone, FromStatus: entity.StatusPending, CreatedAt: at.Add(time.Minute)},
		},
	}}
	router := newTestRouter(t, svc, "", 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/events?task_id=task-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TaskID string          `json:"task_id"`
		Events []eventResponse `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "task-1", body.TaskID)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "created", body.Events[0].EventType)
	assert.Equal(t, "pending", body.Events[1].FromStatus)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/events?task_id=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeReminderService{}, "", 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSwaggerDocs(t *testing.T) {
	router := newTestRouter(t, &fakeReminderService{}, "", 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths["/webhook"], "post")
	assert.Contains(t, doc.Paths["/api/v1/reports/weekly"], "get")
	assert.Contains(t, doc.Paths["/api/v1/tasks/events"], "get")
	assert.Contains(t, doc.Paths["/health"], "get")
}
