package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wisefido-vital-alert/internal/models"
)

func TestCreateAlert_CategoryStamping(t *testing.T) {
	tests := []struct {
		name     string
		factory  AlertFactory
		category models.AlertCategory
	}{
		{"blood pressure", BloodPressureAlertFactory{}, models.CategoryBloodPressure},
		{"blood oxygen", BloodOxygenAlertFactory{}, models.CategoryBloodOxygen},
		{"cardiac", CardiacAlertFactory{}, models.CategoryCardiac},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := tt.factory.CreateAlert("patient-1", "some condition", 1700000000000)

			assert.Equal(t, "patient-1", alert.PatientID)
			assert.Equal(t, "some condition", alert.Condition)
			assert.Equal(t, int64(1700000000000), alert.Timestamp)
			assert.Equal(t, tt.category, alert.Category)
		})
	}
}

func TestForMetricType_DispatchTable(t *testing.T) {
	f, ok := ForMetricType(models.MetricHeartRate)
	require.True(t, ok)
	assert.Equal(t, models.CategoryCardiac, f.CreateAlert("p", "c", 0).Category)

	f, ok = ForMetricType(models.MetricOxygenLevel)
	require.True(t, ok)
	assert.Equal(t, models.CategoryBloodOxygen, f.CreateAlert("p", "c", 0).Category)

	f, ok = ForMetricType(models.MetricSystolicBloodPressure)
	require.True(t, ok)
	assert.Equal(t, models.CategoryBloodPressure, f.CreateAlert("p", "c", 0).Category)

	f, ok = ForMetricType(models.MetricDiastolicBloodPressure)
	require.True(t, ok)
	assert.Equal(t, models.CategoryBloodPressure, f.CreateAlert("p", "c", 0).Category)
}

func TestForMetricType_Unknown(t *testing.T) {
	// 穷举映射：名字包含保留子串的新类型也不会被误派发
	for _, metricType := range []string{"ECG", "TriggeredAlert", "Temperature", "FetalBloodPressureIndex"} {
		f, ok := ForMetricType(metricType)
		assert.False(t, ok, "metric type %s should have no factory", metricType)
		assert.Nil(t, f)
	}
}
