package service

import (
	"context"
	"fmt"

	"wisefido-vital-alert/internal/models"
	"wisefido-vital-alert/internal/repository"

	"go.uber.org/zap"
)

// AlertEventService 报警事件服务层
// 职责：
// 1. 业务规则验证
// 2. 业务编排（协调 Repository）
// 3. 状态流转检查（active → acknowledged）
type AlertEventService struct {
	alertEventsRepo *repository.AlertEventsRepository
	logger          *zap.Logger
}

// NewAlertEventService 创建报警事件服务
func NewAlertEventService(
	alertEventsRepo *repository.AlertEventsRepository,
	logger *zap.Logger,
) *AlertEventService {
	return &AlertEventService{
		alertEventsRepo: alertEventsRepo,
		logger:          logger,
	}
}

// ============================================
// 查询相关方法
// ============================================

// ListAlertEvents 查询报警事件列表（支持多条件过滤和分页）
// 业务规则：
// - tenant_id 必填
// - page 和 size 必须 > 0
// - 自动过滤软删除的记录
func (s *AlertEventService) ListAlertEvents(
	ctx context.Context,
	tenantID string,
	filters repository.AlertEventFilters,
	page, size int,
) ([]*models.AlertEvent, int, error) {
	// 业务规则验证
	if tenantID == "" {
		return nil, 0, fmt.Errorf("tenant_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20 // 默认每页 20 条
	}
	if size > 100 {
		size = 100 // 最大每页 100 条
	}

	// 调用 Repository
	events, total, err := s.alertEventsRepo.ListAlertEvents(ctx, tenantID, filters, page, size)
	if err != nil {
		s.logger.Error("Failed to list alert events",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("failed to list alert events: %w", err)
	}

	return events, total, nil
}

// GetAlertEvent 获取单个报警事件
// 业务规则：
// - tenant_id 和 event_id 必填
// - 自动过滤软删除的记录
func (s *AlertEventService) GetAlertEvent(
	ctx context.Context,
	tenantID, eventID string,
) (*models.AlertEvent, error) {
	// 业务规则验证
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	// 调用 Repository
	event, err := s.alertEventsRepo.GetAlertEvent(ctx, tenantID, eventID)
	if err != nil {
		s.logger.Error("Failed to get alert event",
			zap.String("tenant_id", tenantID),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get alert event: %w", err)
	}

	return event, nil
}

// GetActiveAlertEvents 获取活跃的报警事件
func (s *AlertEventService) GetActiveAlertEvents(
	ctx context.Context,
	tenantID string,
	filters repository.AlertEventFilters,
	page, size int,
) ([]*models.AlertEvent, int, error) {
	status := "active"
	filters.AlertStatus = &status
	return s.ListAlertEvents(ctx, tenantID, filters, page, size)
}

// GetAlertEventsByPatient 根据患者ID获取报警事件
func (s *AlertEventService) GetAlertEventsByPatient(
	ctx context.Context,
	tenantID, patientID string,
	filters repository.AlertEventFilters,
	page, size int,
) ([]*models.AlertEvent, int, error) {
	if patientID == "" {
		return nil, 0, fmt.Errorf("patient_id is required")
	}
	filters.PatientID = &patientID
	return s.ListAlertEvents(ctx, tenantID, filters, page, size)
}

// GetAlertEventsByCategory 根据分类获取报警事件
func (s *AlertEventService) GetAlertEventsByCategory(
	ctx context.Context,
	tenantID, category string,
	filters repository.AlertEventFilters,
	page, size int,
) ([]*models.AlertEvent, int, error) {
	if category == "" {
		return nil, 0, fmt.Errorf("category is required")
	}
	filters.Category = &category
	return s.ListAlertEvents(ctx, tenantID, filters, page, size)
}

// CountActiveAlerts 统计患者当前活跃报警数
func (s *AlertEventService) CountActiveAlerts(
	ctx context.Context,
	tenantID, patientID string,
) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return 0, fmt.Errorf("patient_id is required")
	}

	count, err := s.alertEventsRepo.CountActiveAlerts(ctx, tenantID, patientID)
	if err != nil {
		s.logger.Error("Failed to count active alerts",
			zap.String("tenant_id", tenantID),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}

	return count, nil
}

// CheckDuplicate 检查近期是否已有同类报警事件
// 用于上游判断是否重复入库（评估本身不去重）
func (s *AlertEventService) CheckDuplicate(
	ctx context.Context,
	tenantID, patientID, category, condition string,
	withinMinutes int,
) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return false, fmt.Errorf("patient_id is required")
	}
	if withinMinutes <= 0 {
		withinMinutes = 60
	}

	event, err := s.alertEventsRepo.GetRecentAlertEvent(ctx, tenantID, patientID, category, condition, withinMinutes)
	if err != nil {
		s.logger.Error("Failed to check duplicate alert event",
			zap.String("tenant_id", tenantID),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return false, fmt.Errorf("failed to check duplicate alert event: %w", err)
	}

	return event != nil, nil
}

// ============================================
// 状态管理方法
// ============================================

// AcknowledgeAlertEvent 确认报警事件
// 业务规则：
// - tenant_id 和 event_id 必填
// - handler 必填（确认人）
// - 只能确认状态为 'active' 的报警
// - 自动设置 hand_time 为当前时间
func (s *AlertEventService) AcknowledgeAlertEvent(
	ctx context.Context,
	tenantID, eventID, handler string,
	notes *string,
) error {
	// 业务规则验证
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if handler == "" {
		return fmt.Errorf("handler is required")
	}

	// 先获取报警事件，检查状态
	event, err := s.alertEventsRepo.GetAlertEvent(ctx, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("failed to get alert event: %w", err)
	}

	// 业务规则：只能确认状态为 'active' 的报警
	if event.AlertStatus != "active" {
		return fmt.Errorf("can only acknowledge active alerts, current status: %s", event.AlertStatus)
	}

	// 调用 Repository
	if err := s.alertEventsRepo.AcknowledgeAlertEvent(ctx, tenantID, eventID, handler, notes); err != nil {
		s.logger.Error("Failed to acknowledge alert event",
			zap.String("tenant_id", tenantID),
			zap.String("event_id", eventID),
			zap.String("handler", handler),
			zap.Error(err),
		)
		return fmt.Errorf("failed to acknowledge alert event: %w", err)
	}

	s.logger.Info("Alert event acknowledged",
		zap.String("tenant_id", tenantID),
		zap.String("event_id", eventID),
		zap.String("handler", handler),
	)

	return nil
}

// ============================================
// CRUD 方法
// ============================================

// CreateAlertEvent 创建报警事件
// 业务规则：
// - tenant_id 必填
// - event 必填且 tenant_id 必须匹配
// - event_id 必须已生成（由 builder 生成）
// - triggered_at 必须设置
// - alert_status 默认为 'active'
func (s *AlertEventService) CreateAlertEvent(
	ctx context.Context,
	tenantID string,
	event *models.AlertEvent,
) error {
	// 业务规则验证
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.TenantID != tenantID {
		return fmt.Errorf("event tenant_id (%s) does not match provided tenant_id (%s)", event.TenantID, tenantID)
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required (should be generated by builder)")
	}
	if event.TriggeredAt.IsZero() {
		return fmt.Errorf("triggered_at is required")
	}
	if event.AlertStatus == "" {
		event.AlertStatus = "active" // 默认状态
	}

	// 调用 Repository
	if err := s.alertEventsRepo.CreateAlertEvent(ctx, tenantID, event); err != nil {
		s.logger.Error("Failed to create alert event",
			zap.String("tenant_id", tenantID),
			zap.String("event_id", event.EventID),
			zap.String("condition", event.Condition),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	s.logger.Info("Alert event created",
		zap.String("tenant_id", tenantID),
		zap.String("event_id", event.EventID),
		zap.String("category", event.Category),
		zap.String("condition", event.Condition),
	)

	return nil
}
