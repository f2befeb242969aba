package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"wisefido-vital-alert/internal/models"

	"go.uber.org/zap"
)

// AlertEventsRepository 报警事件仓库（alert_events 表）
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建报警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// AlertEventFilters 报警事件过滤条件
type AlertEventFilters struct {
	// 时间段过滤
	StartTime *time.Time // 开始时间（triggered_at >= StartTime）
	EndTime   *time.Time // 结束时间（triggered_at <= EndTime）

	// 患者过滤
	PatientID *string

	// 类别过滤
	Category   *string  // blood_pressure, blood_oxygen, cardiac, manual
	Categories []string // 类别列表（IN 查询）

	// 状态过滤
	AlertStatus   *string  // active, acknowledged
	AlertStatuses []string // 状态列表（IN 查询）

	// 处理人过滤
	HandlerID *string
}

// ============================================
// 基础 CRUD 操作
// ============================================

// CreateAlertEvent 创建报警事件（需验证 tenant_id）
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, tenantID string, event *models.AlertEvent) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.TenantID != tenantID {
		return fmt.Errorf("event.tenant_id must match tenant_id parameter")
	}

	query := `
		INSERT INTO alert_events (
			event_id,
			tenant_id,
			patient_id,
			category,
			condition,
			alert_status,
			triggered_at,
			hand_time,
			handler,
			notes,
			metadata,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	metadata := event.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.TenantID,
		event.PatientID,
		event.Category,
		event.Condition,
		event.AlertStatus,
		event.TriggeredAt,
		event.HandTime,
		event.Handler,
		event.Notes,
		metadata,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	return nil
}

// GetAlertEvent 根据 event_id 获取单个报警事件（需验证 tenant_id）
func (r *AlertEventsRepository) GetAlertEvent(ctx context.Context, tenantID, eventID string) (*models.AlertEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `
		SELECT
			event_id,
			tenant_id,
			patient_id,
			category,
			condition,
			alert_status,
			triggered_at,
			hand_time,
			handler,
			notes,
			metadata,
			created_at,
			updated_at
		FROM alert_events
		WHERE event_id = $1
		  AND tenant_id = $2
		  AND (metadata->>'deleted_at' IS NULL)
	`

	event, err := r.scanAlertEvent(r.db.QueryRowContext(ctx, query, eventID, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert event not found: event_id=%s, tenant_id=%s", eventID, tenantID)
		}
		return nil, fmt.Errorf("failed to get alert event: %w", err)
	}

	return event, nil
}

// AcknowledgeAlertEvent 确认报警事件（active → acknowledged）
func (r *AlertEventsRepository) AcknowledgeAlertEvent(ctx context.Context, tenantID, eventID, handler string, notes *string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if handler == "" {
		return fmt.Errorf("handler is required")
	}

	query := `
		UPDATE alert_events
		SET alert_status = 'acknowledged',
		    hand_time = CURRENT_TIMESTAMP,
		    handler = $1,
		    notes = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $3
		  AND tenant_id = $4
		  AND alert_status = 'active'
		  AND (metadata->>'deleted_at' IS NULL)
	`

	result, err := r.db.ExecContext(ctx, query, handler, notes, eventID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert event not found or already acknowledged: event_id=%s, tenant_id=%s", eventID, tenantID)
	}

	return nil
}

// ============================================
// 查询操作
// ============================================

// buildWhereClause 构建 WHERE 子句（用于 ListAlertEvents 等查询方法）
func (r *AlertEventsRepository) buildWhereClause(tenantID string, filters AlertEventFilters, args *[]interface{}, argN *int) []string {
	where := []string{fmt.Sprintf("tenant_id = $%d", *argN)}
	*args = append(*args, tenantID)
	*argN++

	// 软删除过滤
	where = append(where, "(metadata->>'deleted_at' IS NULL)")

	// 时间段过滤
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("triggered_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("triggered_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	// 患者过滤
	if filters.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", *argN))
		*args = append(*args, *filters.PatientID)
		*argN++
	}

	// 类别过滤
	if filters.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", *argN))
		*args = append(*args, *filters.Category)
		*argN++
	}
	if len(filters.Categories) > 0 {
		placeholders := make([]string, len(filters.Categories))
		for i := range filters.Categories {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Categories[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ", ")))
	}

	// 状态过滤
	if filters.AlertStatus != nil {
		where = append(where, fmt.Sprintf("alert_status = $%d", *argN))
		*args = append(*args, *filters.AlertStatus)
		*argN++
	}
	if len(filters.AlertStatuses) > 0 {
		placeholders := make([]string, len(filters.AlertStatuses))
		for i := range filters.AlertStatuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.AlertStatuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("alert_status IN (%s)", strings.Join(placeholders, ", ")))
	}

	// 处理人过滤
	if filters.HandlerID != nil {
		where = append(where, fmt.Sprintf("handler = $%d", *argN))
		*args = append(*args, *filters.HandlerID)
		*argN++
	}

	return where
}

// ListAlertEvents 列表查询（支持多条件过滤、分页）
// 返回事件列表和总数
func (r *AlertEventsRepository) ListAlertEvents(ctx context.Context, tenantID string, filters AlertEventFilters, page, size int) ([]*models.AlertEvent, int, error) {
	if tenantID == "" {
		return nil, 0, fmt.Errorf("tenant_id is required")
	}
	if page <= 0 || size <= 0 {
		return nil, 0, fmt.Errorf("page and size must be positive")
	}

	var args []interface{}
	argN := 1
	where := r.buildWhereClause(tenantID, filters, &args, &argN)
	whereClause := strings.Join(where, " AND ")

	// 总数查询
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM alert_events WHERE %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alert events: %w", err)
	}

	// 分页查询
	listQuery := fmt.Sprintf(`
		SELECT
			event_id,
			tenant_id,
			patient_id,
			category,
			condition,
			alert_status,
			triggered_at,
			hand_time,
			handler,
			notes,
			metadata,
			created_at,
			updated_at
		FROM alert_events
		WHERE %s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		event, err := r.scanAlertEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, total, nil
}

// GetRecentAlertEvent 查询患者同类别同条件的最近报警（withinMinutes 分钟内）
// 不存在时返回 (nil, nil)，供重复报警检查使用
func (r *AlertEventsRepository) GetRecentAlertEvent(ctx context.Context, tenantID, patientID, category, condition string, withinMinutes int) (*models.AlertEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT
			event_id,
			tenant_id,
			patient_id,
			category,
			condition,
			alert_status,
			triggered_at,
			hand_time,
			handler,
			notes,
			metadata,
			created_at,
			updated_at
		FROM alert_events
		WHERE tenant_id = $1
		  AND patient_id = $2
		  AND category = $3
		  AND condition = $4
		  AND triggered_at >= $5
		  AND (metadata->>'deleted_at' IS NULL)
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	since := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)
	event, err := r.scanAlertEvent(r.db.QueryRowContext(ctx, query, tenantID, patientID, category, condition, since))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recent alert event: %w", err)
	}

	return event, nil
}

// CountActiveAlerts 统计租户下患者的活跃报警数
func (r *AlertEventsRepository) CountActiveAlerts(ctx context.Context, tenantID, patientID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return 0, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT COUNT(*)
		FROM alert_events
		WHERE tenant_id = $1
		  AND patient_id = $2
		  AND alert_status = 'active'
		  AND (metadata->>'deleted_at' IS NULL)
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, patientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}

	return count, nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanAlertEvent 扫描单行报警事件（处理可空字段）
func (r *AlertEventsRepository) scanAlertEvent(row scanner) (*models.AlertEvent, error) {
	var event models.AlertEvent
	var handTime sql.NullTime
	var handler, notes sql.NullString
	var metadata []byte

	err := row.Scan(
		&event.EventID,
		&event.TenantID,
		&event.PatientID,
		&event.Category,
		&event.Condition,
		&event.AlertStatus,
		&event.TriggeredAt,
		&handTime,
		&handler,
		&notes,
		&metadata,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if handTime.Valid {
		event.HandTime = &handTime.Time
	}
	if handler.Valid {
		event.Handler = &handler.String
	}
	if notes.Valid {
		event.Notes = &notes.String
	}

	if len(metadata) > 0 {
		event.Metadata = string(metadata)
	} else {
		event.Metadata = "{}"
	}

	return &event, nil
}
