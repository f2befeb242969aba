package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-vital-alert/internal/models"

	"go.uber.org/zap"
)

// VitalSignRepository 生命体征测量仓库（vital_signs 表）
// 毫秒时间戳与 TIMESTAMPTZ 的转换只发生在这一层
type VitalSignRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVitalSignRepository 创建生命体征测量仓库
func NewVitalSignRepository(db *sql.DB, logger *zap.Logger) *VitalSignRepository {
	return &VitalSignRepository{
		db:     db,
		logger: logger,
	}
}

// GetPatientWindow 查询患者在时间窗口内的测量（按时间升序）
func (r *VitalSignRepository) GetPatientWindow(ctx context.Context, tenantID, patientID string, startMs, endMs int64) ([]models.VitalSample, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT
			patient_id,
			metric_type,
			value,
			recorded_at
		FROM vital_signs
		WHERE tenant_id = $1
		  AND patient_id = $2
		  AND recorded_at >= $3
		  AND recorded_at <= $4
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		tenantID,
		patientID,
		time.UnixMilli(startMs).UTC(),
		time.UnixMilli(endMs).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital signs: %w", err)
	}
	defer rows.Close()

	var samples []models.VitalSample
	for rows.Next() {
		var sample models.VitalSample
		var recordedAt time.Time

		if err := rows.Scan(
			&sample.PatientID,
			&sample.MetricType,
			&sample.Value,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vital sign: %w", err)
		}

		sample.Timestamp = recordedAt.UnixMilli()
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vital signs: %w", err)
	}

	return samples, nil
}

// InsertVitalSign 插入一条测量（采集链路写入）
func (r *VitalSignRepository) InsertVitalSign(ctx context.Context, msg *models.VitalSignMessage) (int64, error) {
	if msg == nil {
		return 0, fmt.Errorf("message is required")
	}
	if msg.TenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	if msg.PatientID == "" {
		return 0, fmt.Errorf("patient_id is required")
	}
	if msg.MetricType == "" {
		return 0, fmt.Errorf("metric_type is required")
	}

	query := `
		INSERT INTO vital_signs (
			tenant_id,
			patient_id,
			metric_type,
			value,
			recorded_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		msg.TenantID,
		msg.PatientID,
		msg.MetricType,
		msg.Value,
		time.UnixMilli(msg.Timestamp).UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vital sign: %w", err)
	}

	return id, nil
}

// ForTenant 绑定租户，返回评估器使用的窗口查询视图
func (r *VitalSignRepository) ForTenant(tenantID string) *TenantVitalSignStore {
	return &TenantVitalSignStore{
		repo:     r,
		tenantID: tenantID,
	}
}

// TenantVitalSignStore 绑定了租户的记录仓库视图（实现 evaluator.RecordStore）
type TenantVitalSignStore struct {
	repo     *VitalSignRepository
	tenantID string
}

// GetPatientWindow 查询绑定租户下患者的时间窗口
func (s *TenantVitalSignStore) GetPatientWindow(ctx context.Context, patientID string, startMs, endMs int64) ([]models.VitalSample, error) {
	return s.repo.GetPatientWindow(ctx, s.tenantID, patientID, startMs, endMs)
}
