package service

import (
	"context"
	"errors"
	"fmt"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/metrics"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventCreated     = "patient_status.created"
	EventUpdated     = "patient_status.updated"
	EventSoftDeleted = "patient_status.soft_deleted"
	EventRestored    = "patient_status.restored"
)

// StatusEvent 状态变更事件（成功写入后发布，发布失败不影响业务结果）
type StatusEvent struct {
	Type           string                    `json:"type"`
	RecordID       string                    `json:"recordId"`
	PatientID      string                    `json:"patientId"`
	Department     string                    `json:"department"`
	Status         domain.PatientStatusType  `json:"status"`
	PreviousStatus *domain.PatientStatusType `json:"previousStatus,omitempty"`
	StatusChanged  bool                      `json:"statusChanged"`
	ActorID        string                    `json:"actorId"`
	OccurredAt     string                    `json:"occurredAt"`
}

func newStatusEvent(eventType string, rec *domain.PatientStatus, statusChanged bool) StatusEvent {
	return StatusEvent{
		Type:           eventType,
		RecordID:       rec.ID,
		PatientID:      rec.PatientID,
		Department:     rec.Department,
		Status:         rec.Status,
		PreviousStatus: rec.PreviousStatus,
		StatusChanged:  statusChanged,
		ActorID:        rec.UpdatedBy,
		OccurredAt:     rec.UpdatedAt,
	}
}

// EventPublisher 事件发布接口
type EventPublisher interface {
	Name() string
	Publish(ctx context.Context, evt StatusEvent) error
}

// FanoutPublisher delivers every event to each sink in order. A failing sink does
// not stop the others.
type FanoutPublisher struct {
	sinks   []EventPublisher
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewFanoutPublisher(logger *zap.Logger, m *metrics.Collector, sinks ...EventPublisher) *FanoutPublisher {
	return &FanoutPublisher{sinks: sinks, metrics: m, logger: logger}
}

func (f *FanoutPublisher) Name() string { return "fanout" }

func (f *FanoutPublisher) Len() int { return len(f.sinks) }

func (f *FanoutPublisher) Publish(ctx context.Context, evt StatusEvent) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			f.metrics.PublishFailed(sink.Name())
			f.logger.Warn("Failed to publish patient status event",
				zap.String("sink", sink.Name()),
				zap.String("type", evt.Type),
				zap.String("record_id", evt.RecordID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
