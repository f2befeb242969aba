package notifier

import (
	"context"
	"fmt"
	"time"

	"wisefido-vital-alert/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 报警 Webhook 通知器
// URL 为空时处于禁用状态，所有调用为空操作
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// webhookPayload Webhook 请求体
type webhookPayload struct {
	EventID     string `json:"event_id"`
	TenantID    string `json:"tenant_id"`
	PatientID   string `json:"patient_id"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	AlertStatus string `json:"alert_status"`
	TriggeredAt int64  `json:"triggered_at"` // 毫秒时间戳
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(url string, timeoutSec int, logger *zap.Logger) *WebhookNotifier {
	if url == "" {
		return &WebhookNotifier{
			url:    "",
			logger: logger,
		}
	}

	client := resty.New().
		SetTimeout(time.Duration(timeoutSec) * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Enabled 是否已配置 Webhook 地址
func (n *WebhookNotifier) Enabled() bool {
	return n.url != ""
}

// Notify 转发单条报警事件到 Webhook
func (n *WebhookNotifier) Notify(ctx context.Context, event *models.AlertEvent) error {
	if !n.Enabled() {
		return nil
	}
	if event == nil {
		return fmt.Errorf("event is required")
	}

	payload := webhookPayload{
		EventID:     event.EventID,
		TenantID:    event.TenantID,
		PatientID:   event.PatientID,
		Category:    event.Category,
		Condition:   event.Condition,
		AlertStatus: event.AlertStatus,
		TriggeredAt: event.TriggeredAt.UnixMilli(),
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)

	if err != nil {
		n.logger.Error("Webhook call failed",
			zap.Error(err),
			zap.String("event_id", event.EventID),
		)
		return fmt.Errorf("failed to call webhook: %w", err)
	}

	if resp.StatusCode() >= 300 {
		n.logger.Error("Webhook returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("event_id", event.EventID),
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	n.logger.Debug("Alert event forwarded to webhook",
		zap.String("event_id", event.EventID),
		zap.String("patient_id", event.PatientID),
		zap.String("condition", event.Condition),
	)

	return nil
}
