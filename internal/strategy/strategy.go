package strategy

import (
	"fmt"
)

// AlertStrategy 单样本阈值判定策略
// CheckAlert 和 DescribeCondition 都是纯函数，无副作用
type AlertStrategy interface {
	// CheckAlert 判断单条测量是否触发报警
	CheckAlert(patientID string, value float64, timestamp int64) bool
	// DescribeCondition 生成可读的报警条件描述
	DescribeCondition(value float64) string
}

// RangeStrategy 区间阈值策略（低于下限或高于上限触发）
// 用于收缩压/舒张压
type RangeStrategy struct {
	low   float64
	high  float64
	label string
}

// NewRangeStrategy 创建区间阈值策略
func NewRangeStrategy(low, high float64, label string) *RangeStrategy {
	return &RangeStrategy{
		low:   low,
		high:  high,
		label: label,
	}
}

// CheckAlert 低于下限或高于上限时触发
func (s *RangeStrategy) CheckAlert(patientID string, value float64, timestamp int64) bool {
	return value < s.low || value > s.high
}

// DescribeCondition 描述越界方向和原始值
func (s *RangeStrategy) DescribeCondition(value float64) string {
	if value < s.low {
		return fmt.Sprintf("%s too low: %.1f", s.label, value)
	}
	if value > s.high {
		return fmt.Sprintf("%s too high: %.1f", s.label, value)
	}
	return fmt.Sprintf("%s within range: %.1f", s.label, value)
}

// Direction 单边阈值的比较方向
// 心率和血氧饱和度对各自阈值使用相反方向，必须显式指定
type Direction int

const (
	Below Direction = iota // value < threshold 触发
	Above                  // value > threshold 触发
)

// BoundStrategy 单边阈值策略（显式比较方向）
// 用于心率（Above）和血氧饱和度（Below）
type BoundStrategy struct {
	threshold float64
	direction Direction
	label     string
}

// NewBoundStrategy 创建单边阈值策略
func NewBoundStrategy(threshold float64, direction Direction, label string) *BoundStrategy {
	return &BoundStrategy{
		threshold: threshold,
		direction: direction,
		label:     label,
	}
}

// CheckAlert 按比较方向判断是否越界
func (s *BoundStrategy) CheckAlert(patientID string, value float64, timestamp int64) bool {
	if s.direction == Above {
		return value > s.threshold
	}
	return value < s.threshold
}

// DescribeCondition 描述越界方向、阈值和原始值
func (s *BoundStrategy) DescribeCondition(value float64) string {
	if s.direction == Above {
		return fmt.Sprintf("%s above %.0f: %.1f", s.label, s.threshold, value)
	}
	return fmt.Sprintf("%s below %.0f: %.1f", s.label, s.threshold, value)
}
