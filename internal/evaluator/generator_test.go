package evaluator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"wisefido-vital-alert/internal/models"
	"wisefido-vital-alert/internal/strategy"
)

// stubRecordStore 固定窗口内容的记录仓库
type stubRecordStore struct {
	samples []models.VitalSample
	err     error

	lastStartMs int64
	lastEndMs   int64
}

func (s *stubRecordStore) GetPatientWindow(ctx context.Context, patientID string, startMs, endMs int64) ([]models.VitalSample, error) {
	s.lastStartMs = startMs
	s.lastEndMs = endMs
	if s.err != nil {
		return nil, s.err
	}
	return s.samples, nil
}

var testEvalTime = time.UnixMilli(1700003600000)

func setupGenerator(t *testing.T, samples []models.VitalSample) (*AlertGenerator, *stubRecordStore) {
	store := &stubRecordStore{samples: samples}
	gen, err := NewAlertGenerator(store, strategy.NewDefaultRegistry(), zap.NewNop())
	require.NoError(t, err)
	gen.now = func() time.Time { return testEvalTime }
	return gen, store
}

func sample(metricType string, value float64, timestamp int64) models.VitalSample {
	return models.VitalSample{
		PatientID:  "patient-1",
		MetricType: metricType,
		Value:      value,
		Timestamp:  timestamp,
	}
}

// t0 是窗口内靠前的一个基准时刻
var t0 = testEvalTime.UnixMilli() - 50*60*1000

// ============================================
// 构造和窗口边界
// ============================================

func TestNewAlertGenerator_NilStore(t *testing.T) {
	gen, err := NewAlertGenerator(nil, strategy.NewDefaultRegistry(), zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, gen)
	assert.Contains(t, err.Error(), "record store is required")
}

func TestNewAlertGenerator_NilRegistry(t *testing.T) {
	gen, err := NewAlertGenerator(&stubRecordStore{}, nil, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, gen)
	assert.Contains(t, err.Error(), "strategy registry is required")
}

func TestEvaluate_QueriesTrailingHour(t *testing.T) {
	gen, store := setupGenerator(t, nil)

	_, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	assert.Equal(t, testEvalTime.UnixMilli(), store.lastEndMs)
	assert.Equal(t, testEvalTime.UnixMilli()-60*60*1000, store.lastStartMs)
}

func TestEvaluate_EmptyWindow(t *testing.T) {
	gen, _ := setupGenerator(t, nil)

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, gen.TriggeredAlerts())
}

func TestEvaluate_StoreError(t *testing.T) {
	store := &stubRecordStore{err: fmt.Errorf("connection refused")}
	gen, err := NewAlertGenerator(store, strategy.NewDefaultRegistry(), zap.NewNop())
	require.NoError(t, err)

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	assert.Error(t, err)
	assert.Nil(t, alerts)
	assert.Contains(t, err.Error(), "failed to get patient window")
}

// ============================================
// 策略路径
// ============================================

func TestEvaluate_HighHeartRate_CardiacAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 130, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, models.CategoryCardiac, alerts[0].Category)
	assert.Contains(t, alerts[0].Condition, "Heart Rate above 120")
	assert.Contains(t, alerts[0].Condition, "130.0")
	assert.Equal(t, t0, alerts[0].Timestamp)
}

func TestEvaluate_LowOxygen_BloodOxygenAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricOxygenLevel, 88, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	// 88 < 90 触发策略报警；88 < 92 只置位组合布尔量，单独不触发
	require.Len(t, alerts, 1)
	assert.Equal(t, models.CategoryBloodOxygen, alerts[0].Category)
	assert.Contains(t, alerts[0].Condition, "Oxygen Saturation below 90")
}

func TestEvaluate_SystolicOutOfRange_BloodPressureAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricSystolicBloodPressure, 190, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, models.CategoryBloodPressure, alerts[0].Category)
	assert.Contains(t, alerts[0].Condition, "Systolic Blood Pressure too high")
}

func TestEvaluate_NormalSamples_NoAlerts(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 72, t0),
		sample(models.MetricOxygenLevel, 98, t0+60*1000),
		sample(models.MetricSystolicBloodPressure, 120, t0+120*1000),
		sample(models.MetricDiastolicBloodPressure, 80, t0+180*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_UnknownMetricType_Ignored(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample("Temperature", 41.5, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_SetStrategy_AffectsNextEvaluation(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 110, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts, "110 is below the default 120 threshold")

	gen.SetStrategy(models.MetricHeartRate, strategy.NewBoundStrategy(100, strategy.Above, "Heart Rate"))

	alerts, err = gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.CategoryCardiac, alerts[0].Category)
}

// ============================================
// 快速下降检测
// ============================================

func TestEvaluate_RapidOxygenDrop(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricOxygenLevel, 97, t0),
		sample(models.MetricOxygenLevel, 91, t0+5*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	// 91 < 92 只置位布尔量；91 >= 90 不触发策略；仅快速下降报警
	require.Len(t, alerts, 1)
	assert.Equal(t, models.CategoryBloodOxygen, alerts[0].Category)
	assert.Equal(t, "Rapid Oxygen Drop: -6.0%", alerts[0].Condition)
	assert.Equal(t, t0+5*60*1000, alerts[0].Timestamp)
}

func TestEvaluate_OxygenDropTooSlow_NoRapidDropAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricOxygenLevel, 97, t0),
		sample(models.MetricOxygenLevel, 91, t0+15*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts, "15 minute gap must not fire the rapid drop path")
}

// ============================================
// 手动触发
// ============================================

func TestEvaluate_ManualTriggeredAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricTriggeredAlert, 1.0, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, models.CategoryManual, alerts[0].Category)
	assert.Equal(t, "Manual Triggered Alert", alerts[0].Condition)
	assert.Equal(t, t0, alerts[0].Timestamp)
}

func TestEvaluate_ManualTriggeredAlert_CaseInsensitive(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample("triggeredalert", 1.0, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.CategoryManual, alerts[0].Category)
}

func TestEvaluate_ManualTriggeredAlert_RequiresValueOne(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricTriggeredAlert, 0.0, t0),
		sample(models.MetricTriggeredAlert, 2.0, t0+60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

// ============================================
// 窗口级检测
// ============================================

func TestEvaluate_SystolicTrendAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricSystolicBloodPressure, 100, t0),
		sample(models.MetricSystolicBloodPressure, 115, t0+10*60*1000),
		sample(models.MetricSystolicBloodPressure, 130, t0+20*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, "Trend Alert: Systolic Blood Pressure", alerts[0].Condition)
	assert.Equal(t, models.CategoryBloodPressure, alerts[0].Category)
	assert.Equal(t, testEvalTime.UnixMilli(), alerts[0].Timestamp)
}

func TestEvaluate_SystolicGradualRise_NoTrendAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricSystolicBloodPressure, 100, t0),
		sample(models.MetricSystolicBloodPressure, 105, t0+10*60*1000),
		sample(models.MetricSystolicBloodPressure, 108, t0+20*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_DiastolicTrendAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricDiastolicBloodPressure, 110, t0),
		sample(models.MetricDiastolicBloodPressure, 95, t0+10*60*1000),
		sample(models.MetricDiastolicBloodPressure, 80, t0+20*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Trend Alert: Diastolic Blood Pressure", alerts[0].Condition)
}

func TestEvaluate_HypotensiveHypoxemia_ExactlyOne(t *testing.T) {
	// 多个满足条件的样本也只发出一条组合报警
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricSystolicBloodPressure, 85, t0),
		sample(models.MetricSystolicBloodPressure, 88, t0+5*60*1000),
		sample(models.MetricOxygenLevel, 91, t0+10*60*1000),
		sample(models.MetricOxygenLevel, 91, t0+20*60*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	var combined []models.Alert
	for _, a := range alerts {
		if a.Condition == "Hypotensive Hypoxemia Alert" {
			combined = append(combined, a)
		}
	}
	require.Len(t, combined, 1)
	assert.Equal(t, models.CategoryBloodPressure, combined[0].Category)
	assert.Equal(t, testEvalTime.UnixMilli(), combined[0].Timestamp)
}

func TestEvaluate_LowBPAlone_NoCombinedAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricSystolicBloodPressure, 85, t0),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	for _, a := range alerts {
		assert.NotEqual(t, "Hypotensive Hypoxemia Alert", a.Condition)
	}
}

func TestEvaluate_ECGDeviationAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricECG, 1, t0),
		sample(models.MetricECG, 1, t0+60*1000),
		sample(models.MetricECG, 1, t0+120*1000),
		sample(models.MetricECG, 10, t0+180*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, "Abnormal ECG Activity Detected", alerts[0].Condition)
	assert.Equal(t, models.CategoryCardiac, alerts[0].Category)
	assert.Equal(t, testEvalTime.UnixMilli(), alerts[0].Timestamp)
}

func TestEvaluate_UniformECG_NoDeviationAlert(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricECG, 1, t0),
		sample(models.MetricECG, 1, t0+60*1000),
		sample(models.MetricECG, 1, t0+120*1000),
		sample(models.MetricECG, 1, t0+180*1000),
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

// ============================================
// 触发列表和非幂等性
// ============================================

func TestEvaluate_TwiceDuplicatesAlerts(t *testing.T) {
	// 跨调用不去重是既定行为：重复评估重叠窗口会重复报警
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 130, t0),
	})

	first, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0], second[0])
	assert.Len(t, gen.TriggeredAlerts(), 2)
}

func TestTriggeredAlerts_Snapshot(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 130, t0),
	})

	_, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	snapshot := gen.TriggeredAlerts()
	require.Len(t, snapshot, 1)

	// 修改快照不影响内部列表
	snapshot[0].Condition = "mutated"
	assert.NotEqual(t, "mutated", gen.TriggeredAlerts()[0].Condition)
}

func TestEvaluate_MixedWindow(t *testing.T) {
	gen, _ := setupGenerator(t, []models.VitalSample{
		sample(models.MetricHeartRate, 130, t0),                          // 策略：心律报警
		sample(models.MetricOxygenLevel, 97, t0+60*1000),                 //
		sample(models.MetricOxygenLevel, 91, t0+5*60*1000),               // 快速下降 + lowOxygen
		sample(models.MetricSystolicBloodPressure, 85, t0+6*60*1000),     // 策略：血压过低 + lowBP
		sample(models.MetricTriggeredAlert, 1.0, t0+7*60*1000),           // 手动
		sample("Temperature", 41.5, t0+8*60*1000),                        // 未知类型，忽略
	})

	alerts, err := gen.Evaluate(context.Background(), "patient-1")
	require.NoError(t, err)

	conditions := make(map[string]int)
	for _, a := range alerts {
		conditions[a.Condition]++
	}

	assert.Equal(t, 1, conditions["Heart Rate above 120: 130.0"])
	assert.Equal(t, 1, conditions["Rapid Oxygen Drop: -6.0%"])
	assert.Equal(t, 1, conditions["Systolic Blood Pressure too low: 85.0"])
	assert.Equal(t, 1, conditions["Manual Triggered Alert"])
	assert.Equal(t, 1, conditions["Hypotensive Hypoxemia Alert"])
	assert.Len(t, alerts, 5)
}
