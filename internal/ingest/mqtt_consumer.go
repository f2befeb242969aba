package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-vital-alert/internal/config"
	"wisefido-vital-alert/internal/models"
	"wisefido-vital-alert/internal/mqtt"
	rediscommon "wisefido-vital-alert/internal/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MQTTConsumer MQTT消息消费者
// 订阅网关的生命体征主题，把每条测量转发到 Redis Stream
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqtt.Client
	redisClient *redis.Client
	logger      *zap.Logger
	tenantID    string
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
	tenantID string,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
		tenantID:    tenantID,
	}
}

// Start 启动消费者（订阅主题）
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.Ingest.VitalsTopic

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT vitals consumer started",
		zap.String("topic", topic),
		zap.String("stream", c.config.Ingest.Stream),
	)

	return nil
}

// Stop 停止消费者（取消订阅）
func (c *MQTTConsumer) Stop() error {
	return c.mqttClient.Unsubscribe(c.config.Ingest.VitalsTopic)
}

// handleMessage 处理单条MQTT消息
// 载荷是网关批量上报的测量数组，逐条转发到 Redis Stream
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	var batch []models.VitalSignMessage
	if err := json.Unmarshal(payload, &batch); err != nil {
		c.logger.Error("Failed to parse vitals payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal vitals payload: %w", err)
	}

	ctx := context.Background()
	for _, msg := range batch {
		// 网关可能不带租户，用服务自身的租户补全
		if msg.TenantID == "" {
			msg.TenantID = c.tenantID
		}
		if msg.PatientID == "" || msg.MetricType == "" {
			c.logger.Warn("Skipping incomplete vital sign message",
				zap.String("topic", topic),
				zap.String("patient_id", msg.PatientID),
				zap.String("metric_type", msg.MetricType),
			)
			continue
		}

		if _, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Ingest.Stream, msg); err != nil {
			c.logger.Error("Failed to publish vital sign to stream",
				zap.String("patient_id", msg.PatientID),
				zap.String("metric_type", msg.MetricType),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
			continue
		}
	}

	c.logger.Debug("Forwarded vitals batch to stream",
		zap.String("topic", topic),
		zap.Int("message_count", len(batch)),
	)

	return nil
}
