package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-vital-alert/internal/config"
	"wisefido-vital-alert/internal/evaluator"
	"wisefido-vital-alert/internal/models"
	"wisefido-vital-alert/internal/repository"

	"go.uber.org/zap"
)

// Evaluator 报警评估器接口
type Evaluator interface {
	// Evaluate 评估单个患者的最近窗口，返回本次评估产生的报警
	Evaluate(ctx context.Context, patientID string) ([]models.Alert, error)
}

// Notifier 报警下游通知接口
type Notifier interface {
	// Notify 转发单条报警事件；未配置时应为空操作
	Notify(ctx context.Context, event *models.AlertEvent) error
	// Enabled 是否已配置
	Enabled() bool
}

// EvaluationPoller 评估轮询器
// 定期列出租户下开启监测的患者，分批并发评估，
// 持久化报警事件、更新活跃报警缓存、转发到 Webhook
type EvaluationPoller struct {
	config          *config.Config
	patientRepo     *repository.PatientRepository
	alertEventsRepo *repository.AlertEventsRepository
	builder         *evaluator.AlertEventBuilder
	cache           *CacheManager
	notifier        Notifier
	logger          *zap.Logger
	tenantID        string
	metrics         *Metrics
}

// NewEvaluationPoller 创建评估轮询器
func NewEvaluationPoller(
	cfg *config.Config,
	patientRepo *repository.PatientRepository,
	alertEventsRepo *repository.AlertEventsRepository,
	builder *evaluator.AlertEventBuilder,
	cache *CacheManager,
	notifier Notifier,
	logger *zap.Logger,
	tenantID string,
) *EvaluationPoller {
	return &EvaluationPoller{
		config:          cfg,
		patientRepo:     patientRepo,
		alertEventsRepo: alertEventsRepo,
		builder:         builder,
		cache:           cache,
		notifier:        notifier,
		logger:          logger,
		tenantID:        tenantID,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Start 启动轮询器（阻塞直到 ctx 取消）
func (p *EvaluationPoller) Start(ctx context.Context, eval Evaluator) error {
	p.logger.Info("Evaluation poller started",
		zap.String("tenant_id", p.tenantID),
		zap.Int("poll_interval", p.config.Alert.PollInterval),
		zap.Int("batch_size", p.config.Alert.Evaluation.BatchSize),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go p.metrics.Report(metricsCtx, p.logger)

	ticker := time.NewTicker(time.Duration(p.config.Alert.PollInterval) * time.Second)
	defer ticker.Stop()

	// 立即执行一次
	if err := p.evaluateAllPatients(ctx, eval); err != nil {
		p.logger.Error("Failed to evaluate patients on startup",
			zap.Error(err),
		)
	}

	// 定期轮询
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Evaluation poller stopped")
			return nil
		case <-ticker.C:
			if err := p.evaluateAllPatients(ctx, eval); err != nil {
				p.logger.Error("Failed to evaluate patients",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// evaluateAllPatients 评估租户下所有开启监测的患者
func (p *EvaluationPoller) evaluateAllPatients(ctx context.Context, eval Evaluator) error {
	patients, err := p.patientRepo.ListMonitoredPatients(ctx, p.tenantID)
	if err != nil {
		return fmt.Errorf("failed to list monitored patients: %w", err)
	}

	p.logger.Debug("Evaluating patients",
		zap.Int("patient_count", len(patients)),
	)

	// 分批评估，批内每个患者一个 goroutine
	batchSize := p.config.Alert.Evaluation.BatchSize
	for i := 0; i < len(patients); i += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + batchSize
		if end > len(patients) {
			end = len(patients)
		}

		p.evaluateBatch(ctx, patients[i:end], eval)
	}

	return nil
}

// evaluateBatch 并发评估一批患者（WaitGroup 汇合）
func (p *EvaluationPoller) evaluateBatch(ctx context.Context, patients []models.PatientInfo, eval Evaluator) {
	var wg sync.WaitGroup
	for _, patient := range patients {
		wg.Add(1)
		go func(patient models.PatientInfo) {
			defer wg.Done()
			p.evaluatePatient(ctx, patient, eval)
		}(patient)
	}
	wg.Wait()
}

// evaluatePatient 评估单个患者并处理产生的报警
// 每个环节失败只记日志并继续，不影响其他患者
func (p *EvaluationPoller) evaluatePatient(ctx context.Context, patient models.PatientInfo, eval Evaluator) {
	startTime := time.Now()

	alerts, err := eval.Evaluate(ctx, patient.PatientID)
	if err != nil {
		p.metrics.IncrementFailed("evaluate")
		p.logger.Error("Failed to evaluate patient",
			zap.String("patient_id", patient.PatientID),
			zap.Error(err),
		)
		return
	}

	p.metrics.IncrementEvaluated(time.Since(startTime))

	if len(alerts) == 0 {
		return
	}
	p.metrics.AddAlertsEmitted(len(alerts))

	// 构建并持久化报警事件
	events := make([]models.AlertEvent, 0, len(alerts))
	for _, alert := range alerts {
		event := p.builder.BuildAlertEvent(alert)
		if err := p.alertEventsRepo.CreateAlertEvent(ctx, p.tenantID, event); err != nil {
			p.metrics.IncrementFailed("persist")
			p.logger.Error("Failed to create alert event",
				zap.String("event_id", event.EventID),
				zap.String("patient_id", patient.PatientID),
				zap.String("condition", event.Condition),
				zap.Error(err),
			)
			// 继续处理其他报警，不中断
			continue
		}

		p.logger.Info("Alert event created",
			zap.String("event_id", event.EventID),
			zap.String("patient_id", patient.PatientID),
			zap.String("category", event.Category),
			zap.String("condition", event.Condition),
		)
		events = append(events, *event)
	}

	if len(events) == 0 {
		return
	}

	// 更新活跃报警缓存
	if err := p.cache.UpdateAlertCache(ctx, patient.PatientID, events); err != nil {
		p.metrics.IncrementFailed("cache")
		p.logger.Error("Failed to update alert cache",
			zap.String("patient_id", patient.PatientID),
			zap.Error(err),
		)
	}

	// 转发到 Webhook（可选）
	if p.notifier != nil && p.notifier.Enabled() {
		for i := range events {
			if err := p.notifier.Notify(ctx, &events[i]); err != nil {
				p.metrics.IncrementFailed("notify")
				p.logger.Error("Failed to notify alert event",
					zap.String("event_id", events[i].EventID),
					zap.Error(err),
				)
			}
		}
	}
}
