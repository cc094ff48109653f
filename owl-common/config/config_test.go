package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_MAX_RETRIES", "5")

	cfg := RedisConfig{Addr: "localhost:6379", MaxRetries: 3}
	cfg.LoadFromEnv("REDIS")

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "simrs", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=simrs sslmode=disable", cfg.GetDSN())
}

func TestMQTTConfig_LoadFromEnv_IgnoresInvalidQoS(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "7")

	cfg := MQTTConfig{QoS: 1}
	cfg.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, byte(1), cfg.QoS)
}
