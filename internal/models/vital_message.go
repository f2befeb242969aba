package models

// VitalSignMessage 网关上报的单条测量（MQTT → Redis Streams → PostgreSQL）
type VitalSignMessage struct {
	TenantID   string  `json:"tenant_id"`
	PatientID  string  `json:"patient_id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	Timestamp  int64   `json:"timestamp"` // Unix 毫秒
}
