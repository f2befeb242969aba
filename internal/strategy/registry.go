package strategy

import (
	"sync"

	"wisefido-vital-alert/internal/models"
)

// Registry 策略注册表（指标类型 → 策略）
// 读多写少：评估路径并发读取，配置阶段通过 SetStrategy 替换
// 条目只覆盖不删除
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]AlertStrategy
}

// NewDefaultRegistry 创建带默认条目的注册表
// 默认阈值：收缩压 90-180、舒张压 60-120、心率 >120、血氧 <90
func NewDefaultRegistry() *Registry {
	return &Registry{
		strategies: map[string]AlertStrategy{
			models.MetricSystolicBloodPressure:  NewRangeStrategy(90, 180, "Systolic Blood Pressure"),
			models.MetricDiastolicBloodPressure: NewRangeStrategy(60, 120, "Diastolic Blood Pressure"),
			models.MetricHeartRate:              NewBoundStrategy(120, Above, "Heart Rate"),
			models.MetricOxygenLevel:            NewBoundStrategy(90, Below, "Oxygen Saturation"),
		},
	}
}

// Get 查找指标类型对应的策略
func (r *Registry) Get(metricType string) (AlertStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[metricType]
	return s, ok
}

// SetStrategy 替换或新增策略，对后续评估立即生效
func (r *Registry) SetStrategy(metricType string, s AlertStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[metricType] = s
}
