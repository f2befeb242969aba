package evaluator

import (
	"time"

	"wisefido-vital-alert/internal/models"

	"github.com/google/uuid"
)

// AlertEventBuilder 报警事件构建器（核心 Alert → alert_events 表行）
type AlertEventBuilder struct {
	tenantID string
}

// NewAlertEventBuilder 创建报警事件构建器
func NewAlertEventBuilder(tenantID string) *AlertEventBuilder {
	return &AlertEventBuilder{
		tenantID: tenantID,
	}
}

// BuildAlertEvent 从核心 Alert 构建持久化事件
// 生成 event_id，盖上租户，初始状态 active
func (b *AlertEventBuilder) BuildAlertEvent(alert models.Alert) *models.AlertEvent {
	now := time.Now()

	return &models.AlertEvent{
		EventID:     uuid.New().String(),
		TenantID:    b.tenantID,
		PatientID:   alert.PatientID,
		Category:    string(alert.Category),
		Condition:   alert.Condition,
		AlertStatus: "active",
		TriggeredAt: time.UnixMilli(alert.Timestamp),
		Metadata:    "{}",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
