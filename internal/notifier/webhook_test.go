package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-vital-alert/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAlertEvent() *models.AlertEvent {
	return &models.AlertEvent{
		EventID:     uuid.New().String(),
		TenantID:    uuid.New().String(),
		PatientID:   "patient-1",
		Category:    string(models.CategoryCardiac),
		Condition:   "Heart Rate too high: 130.0",
		AlertStatus: "active",
		TriggeredAt: time.UnixMilli(1700000000000),
	}
}

// ==================== Notify 测试 ====================

func TestNotify_Success(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, 5, zap.NewNop())
	event := testAlertEvent()

	err := notifier.Notify(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, event.EventID, received.EventID)
	assert.Equal(t, event.PatientID, received.PatientID)
	assert.Equal(t, "cardiac", received.Category)
	assert.Equal(t, event.Condition, received.Condition)
	assert.Equal(t, int64(1700000000000), received.TriggeredAt)
}

func TestNotify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, 5, zap.NewNop())

	err := notifier.Notify(context.Background(), testAlertEvent())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned status 500")
}

func TestNotify_NilEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, 5, zap.NewNop())

	err := notifier.Notify(context.Background(), nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event is required")
}

// ==================== 禁用状态测试 ====================

func TestNotify_DisabledWhenURLEmpty(t *testing.T) {
	notifier := NewWebhookNotifier("", 5, zap.NewNop())

	assert.False(t, notifier.Enabled())

	// 禁用时为空操作
	err := notifier.Notify(context.Background(), testAlertEvent())
	assert.NoError(t, err)
}

func TestEnabled_WithURL(t *testing.T) {
	notifier := NewWebhookNotifier("http://localhost:9999/alerts", 5, zap.NewNop())

	assert.True(t, notifier.Enabled())
}
