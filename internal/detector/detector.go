package detector

import (
	"math"

	"wisefido-vital-alert/internal/models"
)

// 检测器的固定参数
const (
	// DefaultTrendThreshold 趋势检测的单步幅度阈值（mmHg）
	DefaultTrendThreshold = 10.0
	// DefaultDeviationFactor 偏差检测的均值比例系数
	DefaultDeviationFactor = 0.5
	// RapidDropMaxGapMs 快速下降检测的最大采样间隔（10分钟，毫秒）
	RapidDropMaxGapMs = 10 * 60 * 1000
	// RapidDropMinDelta 快速下降检测的最小降幅（百分点）
	RapidDropMinDelta = 5.0
)

// DetectTrend 检测3个连续样本的单调趋势
// 扫描相邻三元组 (a,b,c)：两个增量同向且都超过阈值时触发
// 首个命中即停止；样本数 < 3 时不触发
func DetectTrend(values []float64, threshold float64) bool {
	for i := 0; i+2 < len(values); i++ {
		a, b, c := values[i], values[i+1], values[i+2]
		if (b-a > threshold && c-b > threshold) || (a-b > threshold && b-c > threshold) {
			return true
		}
	}
	return false
}

// DetectDeviation 检测批量值相对均值的离群
// 首个 |v − mean| > factor × mean 的值触发；首个命中即停止
func DetectDeviation(values []float64, factor float64) bool {
	if len(values) == 0 {
		return false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	for _, v := range values {
		if math.Abs(v-mean) > mean*factor {
			return true
		}
	}
	return false
}

// RapidDropDetector 血氧快速下降检测器
// 窗口内单遍扫描，维护前一个血氧样本的游标；游标在每个血氧样本上前移
type RapidDropDetector struct {
	prev *models.VitalSample
}

// NewRapidDropDetector 创建快速下降检测器（每个评估窗口一个实例）
func NewRapidDropDetector() *RapidDropDetector {
	return &RapidDropDetector{}
}

// Observe 前移游标并判断当前样本是否构成快速下降
// 触发条件：与前一个血氧样本间隔 ≤ 10 分钟且降幅 ≥ 5 个百分点
// 触发时返回精确降幅
func (d *RapidDropDetector) Observe(sample models.VitalSample) (float64, bool) {
	var drop float64
	fired := false

	if d.prev != nil && sample.Timestamp-d.prev.Timestamp <= RapidDropMaxGapMs {
		drop = d.prev.Value - sample.Value
		if drop >= RapidDropMinDelta {
			fired = true
		}
	}

	prev := sample
	d.prev = &prev

	if !fired {
		return 0, false
	}
	return drop, true
}
