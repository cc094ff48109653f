package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_ENABLED", "REDIS_ADDR", "AUTH_TOKEN_SECRET", "AUTH_ALLOW_DEMO_TOKENS", "EVENTS_STREAM", "MQTT_ENABLED", "WEBHOOK_URL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)
	assert.Empty(t, cfg.Auth.TokenSecret)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.AllowDemoTokens)
	assert.Equal(t, "patient_status:events", cfg.Events.Stream)
	assert.Equal(t, int64(10000), cfg.Events.StreamMaxLen)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.Broker.QoS)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("AUTH_TOKEN_SECRET", "s3cret")
	t.Setenv("AUTH_TOKEN_TTL", "15m")
	t.Setenv("AUTH_ALLOW_DEMO_TOKENS", "true")
	t.Setenv("EVENTS_STREAM_MAXLEN", "500")
	t.Setenv("WEBHOOK_TIMEOUT", "bogus")
	t.Setenv("MQTT_ENABLED", "1")
	t.Setenv("MQTT_BROKER", "tcp://mqtt:1883")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "s3cret", cfg.Auth.TokenSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.AllowDemoTokens)
	assert.Equal(t, int64(500), cfg.Events.StreamMaxLen)
	assert.Equal(t, 5*time.Second, cfg.Events.WebhookTimeout)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://mqtt:1883", cfg.MQTT.Broker.Broker)
}
