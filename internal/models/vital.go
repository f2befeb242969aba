package models

// 指标类型（策略注册表的键与窗口分桶的依据）
const (
	MetricSystolicBloodPressure  = "SystolicBloodPressure"
	MetricDiastolicBloodPressure = "DiastolicBloodPressure"
	MetricHeartRate              = "HeartRate"
	MetricOxygenLevel            = "OxygenLevel"
	MetricECG                    = "ECG"
	MetricTriggeredAlert         = "TriggeredAlert"
)

// VitalSample 单条生命体征测量（从记录仓库读取，只读）
// 窗口内按 Timestamp 升序排列（由仓库保证，核心不重新排序）
type VitalSample struct {
	PatientID  string  `json:"patient_id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	Timestamp  int64   `json:"timestamp"` // Unix 毫秒
}
