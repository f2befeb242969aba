package consumer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 评估统计
	PatientsEvaluated int64 // 评估的患者总数
	AlertsEmitted     int64 // 发出的报警总数

	// 错误分类统计
	ErrorsEvaluate int64 // 评估失败
	ErrorsPersist  int64 // 持久化失败
	ErrorsCache    int64 // 缓存更新失败
	ErrorsNotify   int64 // Webhook 通知失败

	// 性能指标
	TotalEvaluationTime time.Duration // 总评估时间
	LastEvaluationTime  time.Time     // 最后评估时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		PatientsEvaluated:   m.PatientsEvaluated,
		AlertsEmitted:       m.AlertsEmitted,
		ErrorsEvaluate:      m.ErrorsEvaluate,
		ErrorsPersist:       m.ErrorsPersist,
		ErrorsCache:         m.ErrorsCache,
		ErrorsNotify:        m.ErrorsNotify,
		TotalEvaluationTime: m.TotalEvaluationTime,
		LastEvaluationTime:  m.LastEvaluationTime,
		StartTime:           m.StartTime,
	}
}

// IncrementEvaluated 增加评估计数
func (m *Metrics) IncrementEvaluated(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PatientsEvaluated++
	m.TotalEvaluationTime += duration
	m.LastEvaluationTime = time.Now()
}

// AddAlertsEmitted 增加报警计数
func (m *Metrics) AddAlertsEmitted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertsEmitted += int64(n)
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch errorType {
	case "evaluate":
		m.ErrorsEvaluate++
	case "persist":
		m.ErrorsPersist++
	case "cache":
		m.ErrorsCache++
	case "notify":
		m.ErrorsNotify++
	}
}

// Report 定期报告指标（每60秒）
func (m *Metrics) Report(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := m.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgEvaluationTime time.Duration
			if snapshot.PatientsEvaluated > 0 {
				avgEvaluationTime = snapshot.TotalEvaluationTime / time.Duration(snapshot.PatientsEvaluated)
			}

			logger.Info("Metrics report",
				zap.Int64("patients_evaluated", snapshot.PatientsEvaluated),
				zap.Int64("alerts_emitted", snapshot.AlertsEmitted),
				zap.Int64("errors_evaluate", snapshot.ErrorsEvaluate),
				zap.Int64("errors_persist", snapshot.ErrorsPersist),
				zap.Int64("errors_cache", snapshot.ErrorsCache),
				zap.Int64("errors_notify", snapshot.ErrorsNotify),
				zap.Duration("avg_evaluation_time", avgEvaluationTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
