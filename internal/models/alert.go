package models

// AlertCategory 报警类别（固定枚举，不做子串匹配）
type AlertCategory string

const (
	CategoryBloodPressure AlertCategory = "blood_pressure"
	CategoryBloodOxygen   AlertCategory = "blood_oxygen"
	CategoryCardiac       AlertCategory = "cardiac"
	CategoryManual        AlertCategory = "manual"
)

// Alert 报警事件（核心领域对象，构建后不可变）
// 由策略/工厂或窗口级检测器产生，仅追加到触发列表，不修改不删除
type Alert struct {
	PatientID string        `json:"patient_id"`
	Condition string        `json:"condition"`
	Timestamp int64         `json:"timestamp"` // Unix 毫秒
	Category  AlertCategory `json:"category"`
}
