package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	owlredis "wisefido-patient-status/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RedisStreamPublisher 写入 Redis Streams（XADD MAXLEN ~），供下游消费者订阅
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Name() string { return "redis_stream" }

func (p *RedisStreamPublisher) Publish(ctx context.Context, evt StatusEvent) error {
	_, err := owlredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, evt)
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// MQTTBroker is satisfied by owl-common/mqtt.Client.
type MQTTBroker interface {
	Publish(topic string, retained bool, payload []byte, timeout time.Duration) error
}

// MQTTPublisher 发布到 <prefix>/<department>/<recordId>
type MQTTPublisher struct {
	broker      MQTTBroker
	topicPrefix string
	timeout     time.Duration
}

func NewMQTTPublisher(broker MQTTBroker, topicPrefix string, timeout time.Duration) *MQTTPublisher {
	return &MQTTPublisher{broker: broker, topicPrefix: topicPrefix, timeout: timeout}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Topic(evt StatusEvent) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, topicSegment(evt.Department), evt.RecordID)
}

func (p *MQTTPublisher) Publish(_ context.Context, evt StatusEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.broker.Publish(p.Topic(evt), false, payload, p.timeout)
}

// topicSegment strips MQTT wildcard and separator characters.
func topicSegment(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '+', '#', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

// WebhookPublisher POST 事件 JSON 到外部 URL
type WebhookPublisher struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookPublisher(url string, timeout time.Duration, logger *zap.Logger) *WebhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookPublisher{httpClient: client, url: url, logger: logger}
}

func (p *WebhookPublisher) Name() string { return "webhook" }

func (p *WebhookPublisher) Publish(ctx context.Context, evt StatusEvent) error {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", evt.Type).
		SetBody(evt).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	p.logger.Debug("Delivered patient status webhook",
		zap.String("type", evt.Type),
		zap.String("record_id", evt.RecordID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
