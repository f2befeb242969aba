package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vital-alert/internal/models"

	"go.uber.org/zap"
)

// PatientRepository 患者仓库（patients 表）
type PatientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientRepository 创建患者仓库
func NewPatientRepository(db *sql.DB, logger *zap.Logger) *PatientRepository {
	return &PatientRepository{
		db:     db,
		logger: logger,
	}
}

// GetPatient 根据 patient_id 获取患者（需验证 tenant_id）
func (r *PatientRepository) GetPatient(ctx context.Context, tenantID, patientID string) (*models.PatientInfo, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT
			patient_id,
			tenant_id,
			patient_name,
			monitoring_enabled
		FROM patients
		WHERE patient_id = $1
		  AND tenant_id = $2
	`

	var patient models.PatientInfo
	err := r.db.QueryRowContext(ctx, query, patientID, tenantID).Scan(
		&patient.PatientID,
		&patient.TenantID,
		&patient.PatientName,
		&patient.MonitoringEnabled,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("patient not found: patient_id=%s, tenant_id=%s", patientID, tenantID)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return &patient, nil
}

// ListMonitoredPatients 获取租户下所有开启监测的患者（轮询评估的输入）
func (r *PatientRepository) ListMonitoredPatients(ctx context.Context, tenantID string) ([]models.PatientInfo, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT
			patient_id,
			tenant_id,
			patient_name,
			monitoring_enabled
		FROM patients
		WHERE tenant_id = $1
		  AND monitoring_enabled = TRUE
		ORDER BY patient_id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientInfo
	for rows.Next() {
		var patient models.PatientInfo
		if err := rows.Scan(
			&patient.PatientID,
			&patient.TenantID,
			&patient.PatientName,
			&patient.MonitoringEnabled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, patient)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}

	return patients, nil
}
