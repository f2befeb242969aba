package factory

import (
	"wisefido-vital-alert/internal/models"
)

// AlertFactory 报警构建器（为新建 Alert 盖上类别标记）
type AlertFactory interface {
	CreateAlert(patientID, condition string, timestamp int64) models.Alert
}

// BloodPressureAlertFactory 血压类报警工厂
type BloodPressureAlertFactory struct{}

func (BloodPressureAlertFactory) CreateAlert(patientID, condition string, timestamp int64) models.Alert {
	return models.Alert{
		PatientID: patientID,
		Condition: condition,
		Timestamp: timestamp,
		Category:  models.CategoryBloodPressure,
	}
}

// BloodOxygenAlertFactory 血氧类报警工厂
type BloodOxygenAlertFactory struct{}

func (BloodOxygenAlertFactory) CreateAlert(patientID, condition string, timestamp int64) models.Alert {
	return models.Alert{
		PatientID: patientID,
		Condition: condition,
		Timestamp: timestamp,
		Category:  models.CategoryBloodOxygen,
	}
}

// CardiacAlertFactory 心律类报警工厂
type CardiacAlertFactory struct{}

func (CardiacAlertFactory) CreateAlert(patientID, condition string, timestamp int64) models.Alert {
	return models.Alert{
		PatientID: patientID,
		Condition: condition,
		Timestamp: timestamp,
		Category:  models.CategoryCardiac,
	}
}

// ForMetricType 按指标类型选择工厂
// 固定映射表，穷举枚举而非子串匹配：新增指标类型不影响已有策略
// 未知类型返回 false，调用方静默跳过该报警
func ForMetricType(metricType string) (AlertFactory, bool) {
	switch metricType {
	case models.MetricHeartRate:
		return CardiacAlertFactory{}, true
	case models.MetricOxygenLevel:
		return BloodOxygenAlertFactory{}, true
	case models.MetricSystolicBloodPressure, models.MetricDiastolicBloodPressure:
		return BloodPressureAlertFactory{}, true
	default:
		return nil, false
	}
}
