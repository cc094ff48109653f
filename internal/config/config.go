package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "wisefido-patient-status/owl-common/config"
)

// Config wisefido-patient-status（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	// DBEnabled: identities come from Postgres users table; otherwise the demo users are seeded in memory
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	Log       struct {
		Level  string
		Format string
	}
	Auth   AuthConfig
	Events EventsConfig
	MQTT   MQTTConfig
}

// AuthConfig 令牌配置；TokenSecret 为空时只签发 demo token
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	// AllowDemoTokens 配置了 TokenSecret 时是否仍接受 demo token（仅开发环境）
	AllowDemoTokens bool
}

// EventsConfig 状态变更事件输出
type EventsConfig struct {
	Stream         string // 空字符串关闭 Redis Streams 输出
	StreamMaxLen   int64
	WebhookURL     string
	WebhookTimeout time.Duration
}

// MQTTConfig MQTT 输出（默认禁用）
type MQTTConfig struct {
	Enabled     bool
	Broker      commoncfg.MQTTConfig
	TopicPrefix string
	Timeout     time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":3000")
	cfg.HTTP.ShutdownTimeout = parseDuration(getEnv("HTTP_SHUTDOWN_TIMEOUT", "10s"), 10*time.Second)

	cfg.DBEnabled = parseBool(getEnv("DB_ENABLED", "false"), false)
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "owlrd",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{
		Addr:         "localhost:6379",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Auth.TokenSecret = getEnv("AUTH_TOKEN_SECRET", "")
	cfg.Auth.TokenIssuer = getEnv("AUTH_TOKEN_ISSUER", "wisefido-patient-status")
	cfg.Auth.TokenTTL = parseDuration(getEnv("AUTH_TOKEN_TTL", "8h"), 8*time.Hour)
	cfg.Auth.AllowDemoTokens = parseBool(getEnv("AUTH_ALLOW_DEMO_TOKENS", "false"), false)

	cfg.Events.Stream = getEnv("EVENTS_STREAM", "patient_status:events")
	cfg.Events.StreamMaxLen = int64(parseInt(getEnv("EVENTS_STREAM_MAXLEN", "10000"), 10000))
	cfg.Events.WebhookURL = getEnv("WEBHOOK_URL", "")
	cfg.Events.WebhookTimeout = parseDuration(getEnv("WEBHOOK_TIMEOUT", "5s"), 5*time.Second)

	cfg.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", "false"), false)
	cfg.MQTT.Broker = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-patient-status",
		QoS:      1,
	}
	cfg.MQTT.Broker.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "wisefido/patient-status")
	cfg.MQTT.Timeout = parseDuration(getEnv("MQTT_TIMEOUT", "3s"), 3*time.Second)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
