package service

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vital-alert/internal/config"
	"wisefido-vital-alert/internal/consumer"
	"wisefido-vital-alert/internal/database"
	"wisefido-vital-alert/internal/evaluator"
	"wisefido-vital-alert/internal/ingest"
	"wisefido-vital-alert/internal/mqtt"
	"wisefido-vital-alert/internal/notifier"
	rediscommon "wisefido-vital-alert/internal/redis"
	"wisefido-vital-alert/internal/repository"
	"wisefido-vital-alert/internal/strategy"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VitalAlertService 生命体征报警服务（整合各层）
type VitalAlertService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger
	tenantID    string

	// 各层组件
	vitalRepo       *repository.VitalSignRepository
	patientRepo     *repository.PatientRepository
	alertEventsRepo *repository.AlertEventsRepository
	registry        *strategy.Registry
	generator       *evaluator.AlertGenerator
	builder         *evaluator.AlertEventBuilder
	cacheManager    *consumer.CacheManager
	webhookNotifier *notifier.WebhookNotifier
	poller          *consumer.EvaluationPoller
	mqttConsumer    *ingest.MQTTConsumer
	streamConsumer  *ingest.StreamConsumer
}

// NewVitalAlertService 创建报警服务
func NewVitalAlertService(cfg *config.Config, logger *zap.Logger, tenantID string) (*VitalAlertService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	ctx := context.Background()
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（Broker 为空时不启用采集上游）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
	}

	// 4. 创建 Repository 层
	vitalRepo := repository.NewVitalSignRepository(db, logger)
	patientRepo := repository.NewPatientRepository(db, logger)
	alertEventsRepo := repository.NewAlertEventsRepository(db, logger)

	// 5. 创建 Evaluator 层
	registry := strategy.NewDefaultRegistry()
	generator, err := evaluator.NewAlertGenerator(vitalRepo.ForTenant(tenantID), registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert generator: %w", err)
	}
	builder := evaluator.NewAlertEventBuilder(tenantID)

	// 6. 创建 Consumer 层
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	webhookNotifier := notifier.NewWebhookNotifier(cfg.Alert.Webhook.URL, cfg.Alert.Webhook.TimeoutSec, logger)
	poller := consumer.NewEvaluationPoller(
		cfg,
		patientRepo,
		alertEventsRepo,
		builder,
		cacheManager,
		webhookNotifier,
		logger,
		tenantID,
	)

	// 7. 创建采集链路（MQTT → Streams → PostgreSQL）
	var mqttConsumer *ingest.MQTTConsumer
	if mqttClient != nil {
		mqttConsumer = ingest.NewMQTTConsumer(cfg, mqttClient, redisClient, logger, tenantID)
	}
	streamConsumer := ingest.NewStreamConsumer(cfg, redisClient, vitalRepo, logger)

	return &VitalAlertService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		logger:          logger,
		tenantID:        tenantID,
		vitalRepo:       vitalRepo,
		patientRepo:     patientRepo,
		alertEventsRepo: alertEventsRepo,
		registry:        registry,
		generator:       generator,
		builder:         builder,
		cacheManager:    cacheManager,
		webhookNotifier: webhookNotifier,
		poller:          poller,
		mqttConsumer:    mqttConsumer,
		streamConsumer:  streamConsumer,
	}, nil
}

// Start 启动服务（阻塞直到 ctx 取消或出错）
func (s *VitalAlertService) Start(ctx context.Context) error {
	s.logger.Info("Starting vital alert service",
		zap.String("tenant_id", s.tenantID),
		zap.Bool("ingest_enabled", s.mqttConsumer != nil),
		zap.Bool("webhook_enabled", s.webhookNotifier.Enabled()),
	)

	// 启动 Streams 消费者（采集落库，独立 goroutine）
	streamErrChan := make(chan error, 1)
	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			streamErrChan <- err
		}
	}()

	// 启动 MQTT 消费者（订阅采集主题）
	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt consumer: %w", err)
		}
	}

	// 启动评估轮询器（阻塞）
	pollerErrChan := make(chan error, 1)
	go func() {
		if err := s.poller.Start(ctx, s.generator); err != nil {
			pollerErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-streamErrChan:
		return fmt.Errorf("stream consumer failed: %w", err)
	case err := <-pollerErrChan:
		return fmt.Errorf("evaluation poller failed: %w", err)
	}
}

// Stop 停止服务
func (s *VitalAlertService) Stop() error {
	s.logger.Info("Stopping vital alert service")

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(); err != nil {
			s.logger.Error("Failed to stop mqtt consumer",
				zap.Error(err),
			)
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
