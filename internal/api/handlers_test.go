package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jussrz/SOSit/internal/config"
	"github.com/jussrz/SOSit/internal/models"
	"github.com/jussrz/SOSit/internal/ws"
)

type fakeAlertService struct {
	summary models.DispatchSummary
	err     error

	gotAlert   *models.PanicAlert
	gotAlertID string
}

func (f *fakeAlertService) NotifyGuardians(_ context.Context, alert models.PanicAlert) (models.DispatchSummary, error) {
	f.gotAlert = &alert
	return f.summary, f.err
}

func (f *fakeAlertService) NotifyAuthorities(_ context.Context, alertID string) (models.DispatchSummary, error) {
	f.gotAlertID = alertID
	return f.summary, f.err
}

type fakeReader struct {
	notifications []models.FallbackNotification
	err           error
}

func (f *fakeReader) GetNotificationsByRecipient(context.Context, string, int) ([]models.FallbackNotification, error) {
	return f.notifications, f.err
}

func testRouter(svc *fakeAlertService, reader *fakeReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := NewHandler(svc, reader, ws.NewHub(logger), logger)
	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	return NewRouter(logger, cfg, h)
}

func TestSendParentAlerts(t *testing.T) {
	svc := &fakeAlertService{summary: models.DispatchSummary{
		Sent: 2, Failed: 1, Total: 3,
		Results: []models.DeliveryOutcome{{RecipientID: "g1", Channel: models.ChannelPush, Success: true}},
	}}
	router := testRouter(svc, &fakeReader{})

	body := `{"alert": {"id": "alert-1", "user_id": "child-1", "alert_type": "CRITICAL", "latitude": 14.6, "longitude": 121.0}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/send-parent-alerts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"sent":2`)
	assert.Contains(t, w.Body.String(), `"failed":1`)
	require.NotNil(t, svc.gotAlert)
	assert.Equal(t, "child-1", svc.gotAlert.UserID)
	assert.False(t, svc.gotAlert.Timestamp.IsZero(), "missing timestamp defaults to now")
}

func TestSendParentAlertsMissingAlert(t *testing.T) {
	router := testRouter(&fakeAlertService{}, &fakeReader{})

	for _, body := range []string{`{}`, `{"alert": {"id": "alert-1"}}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/functions/send-parent-alerts", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Contains(t, w.Body.String(), `"success":false`)
	}
}

func TestSendParentAlertsServiceError(t *testing.T) {
	svc := &fakeAlertService{err: errors.New("recipient resolution failed")}
	router := testRouter(svc, &fakeReader{})

	body := `{"alert": {"id": "alert-1", "user_id": "child-1"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/send-parent-alerts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "recipient resolution failed")
}

func TestSendStationAlerts(t *testing.T) {
	svc := &fakeAlertService{summary: models.DispatchSummary{Sent: 1, Total: 1,
		Results: []models.DeliveryOutcome{{RecipientID: "s1", Channel: models.ChannelPush, Success: true}}}}
	router := testRouter(svc, &fakeReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/send-station-alerts", strings.NewReader(`{"panic_alert_id": "alert-1"}`))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alert-1", svc.gotAlertID)
	assert.Contains(t, w.Body.String(), `"sent":1`)
}

func TestSendStationAlertsMissingID(t *testing.T) {
	router := testRouter(&fakeAlertService{}, &fakeReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/send-station-alerts", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreflightCORS(t *testing.T) {
	router := testRouter(&fakeAlertService{}, &fakeReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/functions/send-parent-alerts", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "apikey")
}

func TestGetNotificationsByUserID(t *testing.T) {
	reader := &fakeReader{notifications: []models.FallbackNotification{
		{ID: "n1", RecipientID: "g1", AlertID: "alert-1", Title: "⚠️ Alert: Ana Pressed Panic Button"},
	}}
	router := testRouter(&fakeAlertService{}, reader)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v0/notifications/user/g1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alert_id":"alert-1"`)
}

func TestGetNotificationsEmptyIsArray(t *testing.T) {
	router := testRouter(&fakeAlertService{}, &fakeReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v0/notifications/user/g1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestHealth(t *testing.T) {
	router := testRouter(&fakeAlertService{}, &fakeReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
