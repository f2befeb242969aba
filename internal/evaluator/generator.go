package evaluator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisefido-vital-alert/internal/detector"
	"wisefido-vital-alert/internal/factory"
	"wisefido-vital-alert/internal/models"
	"wisefido-vital-alert/internal/strategy"

	"go.uber.org/zap"
)

const (
	// windowMinutes 评估窗口：截至评估时刻的最近60分钟（固定常量，不可配置）
	windowMinutes = 60

	// 组合报警的窗口级阈值（独立于策略阈值）
	lowSystolicThreshold = 90
	lowOxygenThreshold   = 92
)

// RecordStore 测量历史仓库接口（由 repository 层按租户实现）
// 返回的窗口按时间升序排列
type RecordStore interface {
	GetPatientWindow(ctx context.Context, patientID string, startMs, endMs int64) ([]models.VitalSample, error)
}

// AlertGenerator 报警生成器（核心编排器）
// 拉取患者的最近窗口，驱动策略和检测器，构建并发出 Alert
// 单个患者的评估是顺序且跨调用无状态的：重复评估重叠窗口会重复报警（见 Evaluate）
type AlertGenerator struct {
	store    RecordStore
	registry *strategy.Registry
	logger   *zap.Logger
	now      func() time.Time

	// 报警工厂
	bloodPressureFactory factory.BloodPressureAlertFactory
	bloodOxygenFactory   factory.BloodOxygenAlertFactory
	cardiacFactory       factory.CardiacAlertFactory

	// 触发列表（只追加；多患者并发评估时加锁追加）
	mu        sync.Mutex
	triggered []models.Alert
}

// NewAlertGenerator 创建报警生成器
// store 和 registry 必填（前置条件）；logger 为 nil 时使用 Nop
func NewAlertGenerator(store RecordStore, registry *strategy.Registry, logger *zap.Logger) (*AlertGenerator, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("strategy registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AlertGenerator{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetStrategy 替换或新增某指标类型的策略，对后续评估立即生效
func (g *AlertGenerator) SetStrategy(metricType string, s strategy.AlertStrategy) {
	g.registry.SetStrategy(metricType, s)
}

// Evaluate 评估单个患者的最近窗口，返回本次评估产生的报警
//
// 算法：按时间顺序单遍扫描窗口内的测量
//  1. 逐样本运行已注册的策略；命中时按指标类型查工厂表构建报警
//  2. 同时把收缩压/舒张压/ECG 分桶，并记录窗口级布尔量
//     （出现过收缩压 < 90、出现过血氧 < 92）
//  3. 血氧样本额外做快速下降检测（相对前一个血氧样本）
//  4. TriggeredAlert 类型（忽略大小写）且值恰为 1.0 时立即发出手动报警
//  5. 扫描结束后：收缩压/舒张压趋势检测、低血压+低血氧组合报警（至多一条）、
//     ECG 偏差检测（至多一条）；窗口级报警的时间戳取评估时刻
//
// 跨调用不去重：重复评估重叠窗口会重复报出同一事件
// 未知指标类型静默忽略；空窗口返回空列表和 nil
func (g *AlertGenerator) Evaluate(ctx context.Context, patientID string) ([]models.Alert, error) {
	evalTime := g.now()
	endMs := evalTime.UnixMilli()
	startMs := endMs - windowMinutes*60*1000

	samples, err := g.store.GetPatientWindow(ctx, patientID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient window: %w", err)
	}

	var alerts []models.Alert
	emit := func(alert models.Alert) {
		alerts = append(alerts, alert)
		g.triggerAlert(alert)
	}

	var systolic, diastolic, ecg []float64
	rapidDrop := detector.NewRapidDropDetector()
	lowBP := false
	lowOxygen := false

	for _, sample := range samples {
		// 逐样本策略：未注册的类型不是错误，直接跳过
		if strat, ok := g.registry.Get(sample.MetricType); ok {
			if strat.CheckAlert(sample.PatientID, sample.Value, sample.Timestamp) {
				// 工厂映射表查不到时该报警静默不发出
				if f, ok := factory.ForMetricType(sample.MetricType); ok {
					emit(f.CreateAlert(patientID, strat.DescribeCondition(sample.Value), sample.Timestamp))
				}
			}
		}

		switch sample.MetricType {
		case models.MetricSystolicBloodPressure:
			systolic = append(systolic, sample.Value)
			if sample.Value < lowSystolicThreshold {
				lowBP = true
			}
		case models.MetricDiastolicBloodPressure:
			diastolic = append(diastolic, sample.Value)
		case models.MetricOxygenLevel:
			if sample.Value < lowOxygenThreshold {
				lowOxygen = true
			}
			if drop, ok := rapidDrop.Observe(sample); ok {
				emit(g.bloodOxygenFactory.CreateAlert(
					patientID,
					fmt.Sprintf("Rapid Oxygen Drop: -%.1f%%", drop),
					sample.Timestamp,
				))
			}
		case models.MetricECG:
			ecg = append(ecg, sample.Value)
		default:
			// 手动触发：绕过注册表和工厂
			if strings.EqualFold(sample.MetricType, models.MetricTriggeredAlert) && sample.Value == 1.0 {
				emit(models.Alert{
					PatientID: patientID,
					Condition: "Manual Triggered Alert",
					Timestamp: sample.Timestamp,
					Category:  models.CategoryManual,
				})
			}
		}
	}

	// 窗口级检测，时间戳取评估时刻
	if detector.DetectTrend(systolic, detector.DefaultTrendThreshold) {
		emit(g.bloodPressureFactory.CreateAlert(patientID, "Trend Alert: Systolic Blood Pressure", endMs))
	}
	if detector.DetectTrend(diastolic, detector.DefaultTrendThreshold) {
		emit(g.bloodPressureFactory.CreateAlert(patientID, "Trend Alert: Diastolic Blood Pressure", endMs))
	}

	// 无论多少样本满足条件，组合报警每窗口恰好一条
	if lowBP && lowOxygen {
		emit(g.bloodPressureFactory.CreateAlert(patientID, "Hypotensive Hypoxemia Alert", endMs))
	}

	if len(ecg) > 0 && detector.DetectDeviation(ecg, detector.DefaultDeviationFactor) {
		emit(g.cardiacFactory.CreateAlert(patientID, "Abnormal ECG Activity Detected", endMs))
	}

	return alerts, nil
}

// triggerAlert 记录触发的报警（追加到持有的触发列表并打日志）
func (g *AlertGenerator) triggerAlert(alert models.Alert) {
	g.mu.Lock()
	g.triggered = append(g.triggered, alert)
	g.mu.Unlock()

	g.logger.Info("Alert triggered",
		zap.String("patient_id", alert.PatientID),
		zap.String("condition", alert.Condition),
		zap.String("category", string(alert.Category)),
		zap.Int64("timestamp", alert.Timestamp),
	)
}

// TriggeredAlerts 返回已触发报警的只读快照
func (g *AlertGenerator) TriggeredAlerts() []models.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := make([]models.Alert, len(g.triggered))
	copy(snapshot, g.triggered)
	return snapshot
}
