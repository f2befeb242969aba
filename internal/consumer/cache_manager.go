package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vital-alert/internal/config"
	"wisefido-vital-alert/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器（按患者缓存活跃报警，供前端轮询）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// alertKey 构建患者活跃报警的缓存键
func (c *CacheManager) alertKey(patientID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Alert.Cache.AlertKeyPrefix,
		patientID,
		c.config.Alert.Cache.AlertSuffix,
	)
}

// UpdateAlertCache 更新患者的活跃报警缓存（带 TTL）
func (c *CacheManager) UpdateAlertCache(ctx context.Context, patientID string, alerts []models.AlertEvent) error {
	key := c.alertKey(patientID)

	// 序列化数据
	jsonData, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alert data: %w", err)
	}

	// 写入 Redis（设置 TTL）
	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Alert.Cache.AlertTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated alert cache",
		zap.String("patient_id", patientID),
		zap.String("key", key),
		zap.Int("alert_count", len(alerts)),
	)

	return nil
}

// GetActiveAlerts 读取患者的活跃报警缓存
func (c *CacheManager) GetActiveAlerts(ctx context.Context, patientID string) ([]models.AlertEvent, error) {
	key := c.alertKey(patientID)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("active alerts not found for patient: %s", patientID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var alerts []models.AlertEvent
	if err := json.Unmarshal([]byte(val), &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert data: %w", err)
	}

	return alerts, nil
}
