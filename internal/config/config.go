package config

import (
	"fmt"
	"os"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载数据库配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Port)
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_DATABASE"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

// Config 生命体征报警服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 报警服务特定配置
	Alert struct {
		// Redis 缓存配置
		Cache struct {
			AlertKeyPrefix string // 活跃报警缓存键前缀，如 "vital-alert:patient:"
			AlertSuffix    string // 活跃报警缓存键后缀，如 ":alerts"
			AlertTTL       int    // 活跃报警 TTL（秒），默认 60秒
		}

		// 轮询配置
		PollInterval int // 轮询间隔（秒），默认 30秒

		// 评估配置
		Evaluation struct {
			BatchSize int // 每批并发评估的患者数量，默认 10
		}

		// Webhook 通知配置（URL 为空时禁用）
		Webhook struct {
			URL        string
			TimeoutSec int
		}
	}

	// 采集链路配置（MQTT → Redis Streams → PostgreSQL）
	Ingest struct {
		VitalsTopic   string // MQTT 订阅主题
		Stream        string // Redis Stream 名称
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int64
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 数据库默认值
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vitalrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	// Redis 默认值
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Password = ""
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	// MQTT 默认值（Broker 为空时不启用采集）
	cfg.MQTT.ClientID = "wisefido-vital-alert"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// 报警服务配置
	cfg.Alert.Cache.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "vital-alert:patient:")
	cfg.Alert.Cache.AlertSuffix = ":alerts"
	cfg.Alert.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 60)

	cfg.Alert.PollInterval = getEnvInt("POLL_INTERVAL", 30)
	cfg.Alert.Evaluation.BatchSize = getEnvInt("EVALUATION_BATCH_SIZE", 10)

	cfg.Alert.Webhook.URL = getEnv("ALERT_WEBHOOK_URL", "")
	cfg.Alert.Webhook.TimeoutSec = getEnvInt("ALERT_WEBHOOK_TIMEOUT", 10)

	// 采集链路配置
	cfg.Ingest.VitalsTopic = getEnv("INGEST_VITALS_TOPIC", "vitals/+/measurements")
	cfg.Ingest.Stream = getEnv("INGEST_STREAM", "vital-alert:stream:vitals")
	cfg.Ingest.ConsumerGroup = getEnv("INGEST_CONSUMER_GROUP", "vital-alert-writers")
	cfg.Ingest.ConsumerName = getEnv("INGEST_CONSUMER_NAME", "writer-1")
	cfg.Ingest.BatchSize = 10

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
