package models

// PatientInfo 患者信息（patients 表的评估侧子集）
type PatientInfo struct {
	PatientID         string `json:"patient_id" db:"patient_id"`
	TenantID          string `json:"tenant_id" db:"tenant_id"`
	PatientName       string `json:"patient_name" db:"patient_name"`
	MonitoringEnabled bool   `json:"monitoring_enabled" db:"monitoring_enabled"`
}
