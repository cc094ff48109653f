package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/metrics"
	"wisefido-patient-status/internal/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PatientStatusKey Redis hash，field = record id，value = record JSON
const PatientStatusKey = "patient_status"

// PatientStatusService 患者状态记录服务：CRUD + 软删除/恢复 + 统计
//
// 每个操作由 1-3 个独立的后端调用组成（hash 写、索引 add、索引 remove），
// 调用之间没有原子性；索引是记录 isDeleted 标志的派生缓存，不一致时由 Reconciler 修复。
type PatientStatusService struct {
	kv      store.KV
	index   *store.RecordIndex
	events  EventPublisher
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
	locks   *keyedMutex
}

type Option func(*PatientStatusService)

func WithEventPublisher(p EventPublisher) Option {
	return func(s *PatientStatusService) { s.events = p }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *PatientStatusService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *PatientStatusService) { s.now = now }
}

// NewPatientStatusService 创建患者状态服务
func NewPatientStatusService(kv store.KV, logger *zap.Logger, opts ...Option) *PatientStatusService {
	s := &PatientStatusService{
		kv:     kv,
		index:  store.NewRecordIndex(kv, PatientStatusKey),
		logger: logger,
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index exposes the active/deleted id sets.
func (s *PatientStatusService) Index() *store.RecordIndex { return s.index }

// Create 创建记录并加入 active 索引
func (s *PatientStatusService) Create(ctx context.Context, input domain.CreatePatientStatusInput, actorID string) (rec *domain.PatientStatus, err error) {
	defer s.observe("create", time.Now(), &err)

	now := domain.FormatTimestamp(s.now())
	rec = &domain.PatientStatus{
		ID:                  uuid.NewString(),
		PatientID:           input.PatientID,
		PatientName:         input.PatientName,
		MedicalRecordNumber: input.MedicalRecordNumber,
		Status:              input.Status,
		Department:          input.Department,
		RoomNumber:          optionalString(input.RoomNumber),
		DoctorName:          optionalString(input.DoctorName),
		Notes:               optionalString(input.Notes),
		CreatedAt:           now,
		UpdatedAt:           now,
		CreatedBy:           actorID,
		UpdatedBy:           actorID,
		IsDeleted:           false,
	}

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.index.Add(ctx, store.IndexActive, rec.ID); err != nil {
		return nil, internalError("add to active index", err)
	}

	s.logger.Info("Created patient status",
		zap.String("id", rec.ID),
		zap.String("patient_id", rec.PatientID),
		zap.String("status", string(rec.Status)),
		zap.String("actor_id", actorID),
	)
	s.publish(ctx, newStatusEvent(EventCreated, rec, true))
	return rec, nil
}

// FindAll 按过滤条件查询，按 updatedAt 倒序
func (s *PatientStatusService) FindAll(ctx context.Context, filter domain.PatientStatusFilter) (out []domain.PatientStatus, err error) {
	defer s.observe("find_all", time.Now(), &err)

	ids, err := s.index.Members(ctx, store.IndexActive)
	if err != nil {
		return nil, internalError("list active index", err)
	}
	if filter.IncludeDeleted {
		deletedIDs, err := s.index.Members(ctx, store.IndexDeleted)
		if err != nil {
			return nil, internalError("list deleted index", err)
		}
		ids = lo.Uniq(append(ids, deletedIDs...))
	}

	department := strings.ToLower(filter.Department)
	out = make([]domain.PatientStatus, 0, len(ids))
	for _, id := range ids {
		rec, err := s.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		if rec.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if department != "" && !strings.Contains(strings.ToLower(rec.Department), department) {
			continue
		}
		if filter.PatientID != "" && rec.PatientID != filter.PatientID {
			continue
		}
		out = append(out, *rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].UpdatedTime(), out[j].UpdatedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindOne 按 id 查询；已删除记录仅在 includeDeleted 时返回
func (s *PatientStatusService) FindOne(ctx context.Context, id string, includeDeleted bool) (rec *domain.PatientStatus, err error) {
	defer s.observe("find_one", time.Now(), &err)

	rec, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted && !includeDeleted {
		return nil, newError(KindNotFound, "Patient status with ID %q has been deleted", id)
	}
	return rec, nil
}

// Update 部分更新；已删除记录需先恢复
func (s *PatientStatusService) Update(ctx context.Context, id string, patch domain.UpdatePatientStatusPatch, actorID string) (rec *domain.PatientStatus, err error) {
	defer s.observe("update", time.Now(), &err)

	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsDeleted {
		return nil, newError(KindConflict, "Cannot update a deleted record. Please restore it first.")
	}

	updated := *existing
	statusChanged := false
	if patch.Status != nil && *patch.Status != existing.Status {
		prev := existing.Status
		updated.PreviousStatus = &prev
		updated.Status = *patch.Status
		statusChanged = true
	}
	if patch.Department != nil {
		updated.Department = *patch.Department
	}
	updated.RoomNumber = applyOptional(existing.RoomNumber, patch.RoomNumber)
	updated.DoctorName = applyOptional(existing.DoctorName, patch.DoctorName)
	updated.Notes = applyOptional(existing.Notes, patch.Notes)
	updated.UpdatedAt = s.stamp(existing.UpdatedAt)
	updated.UpdatedBy = actorID

	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("Updated patient status",
		zap.String("id", id),
		zap.String("status", string(updated.Status)),
		zap.Bool("status_changed", statusChanged),
		zap.String("actor_id", actorID),
	)
	s.publish(ctx, newStatusEvent(EventUpdated, &updated, statusChanged))
	return &updated, nil
}

// SoftDelete 软删除：打标记并从 active 移到 deleted 索引
func (s *PatientStatusService) SoftDelete(ctx context.Context, id string, actorID string) (rec *domain.PatientStatus, err error) {
	defer s.observe("soft_delete", time.Now(), &err)

	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsDeleted {
		return nil, newError(KindConflict, "Record is already deleted")
	}

	stamp := s.stamp(existing.UpdatedAt)
	actor := actorID
	deleted := *existing
	deleted.IsDeleted = true
	deleted.DeletedAt = &stamp
	deleted.DeletedBy = &actor
	deleted.UpdatedAt = stamp
	deleted.UpdatedBy = actorID

	if err := s.save(ctx, &deleted); err != nil {
		return nil, err
	}
	if err := s.index.Move(ctx, id, store.IndexActive, store.IndexDeleted); err != nil {
		return nil, internalError("move to deleted index", err)
	}

	s.logger.Info("Soft deleted patient status", zap.String("id", id), zap.String("actor_id", actorID))
	s.publish(ctx, newStatusEvent(EventSoftDeleted, &deleted, false))
	return &deleted, nil
}

// Restore 恢复软删除的记录
func (s *PatientStatusService) Restore(ctx context.Context, id string, actorID string) (rec *domain.PatientStatus, err error) {
	defer s.observe("restore", time.Now(), &err)

	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsDeleted {
		return nil, newError(KindConflict, "Record is not deleted")
	}

	restored := *existing
	restored.IsDeleted = false
	restored.DeletedAt = nil
	restored.DeletedBy = nil
	restored.UpdatedAt = s.stamp(existing.UpdatedAt)
	restored.UpdatedBy = actorID

	if err := s.save(ctx, &restored); err != nil {
		return nil, err
	}
	if err := s.index.Move(ctx, id, store.IndexDeleted, store.IndexActive); err != nil {
		return nil, internalError("move to active index", err)
	}

	s.logger.Info("Restored patient status", zap.String("id", id), zap.String("actor_id", actorID))
	s.publish(ctx, newStatusEvent(EventRestored, &restored, false))
	return &restored, nil
}

// GetStatistics active/deleted 取索引基数，byStatus 只统计 active 记录
func (s *PatientStatusService) GetStatistics(ctx context.Context) (stats *domain.PatientStatusStatistics, err error) {
	defer s.observe("statistics", time.Now(), &err)

	activeIDs, err := s.index.Members(ctx, store.IndexActive)
	if err != nil {
		return nil, internalError("list active index", err)
	}
	deletedCount, err := s.index.Count(ctx, store.IndexDeleted)
	if err != nil {
		return nil, internalError("count deleted index", err)
	}

	// counts come from the index; byStatus skips drifted entries until Reconciler repairs them
	byStatus := map[string]int{}
	for _, id := range activeIDs {
		rec, err := s.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.IsDeleted {
			continue
		}
		byStatus[string(rec.Status)]++
	}

	return &domain.PatientStatusStatistics{
		Total:    len(activeIDs) + deletedCount,
		Active:   len(activeIDs),
		Deleted:  deletedCount,
		ByStatus: byStatus,
	}, nil
}

// load reads one record; a missing field is NotFound.
func (s *PatientStatusService) load(ctx context.Context, id string) (*domain.PatientStatus, error) {
	raw, err := s.kv.HGet(ctx, PatientStatusKey, id)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, newError(KindNotFound, "Patient status with ID %q not found", id)
		}
		return nil, internalError("hget "+id, err)
	}
	var rec domain.PatientStatus
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, internalError("decode "+id, err)
	}
	return &rec, nil
}

// fetch is load for scans: missing or unparseable entries yield (nil, nil).
func (s *PatientStatusService) fetch(ctx context.Context, id string) (*domain.PatientStatus, error) {
	raw, err := s.kv.HGet(ctx, PatientStatusKey, id)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, nil
		}
		return nil, internalError("hget "+id, err)
	}
	var rec domain.PatientStatus
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Debug("Skipping unparseable patient status", zap.String("id", id), zap.Error(err))
		return nil, nil
	}
	return &rec, nil
}

func (s *PatientStatusService) save(ctx context.Context, rec *domain.PatientStatus) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return internalError("encode "+rec.ID, err)
	}
	if err := s.kv.HSet(ctx, PatientStatusKey, rec.ID, string(b)); err != nil {
		return internalError("hset "+rec.ID, err)
	}
	return nil
}

// stamp returns now, never earlier than prev, so updatedAt stays non-decreasing
// even if the wall clock steps back.
func (s *PatientStatusService) stamp(prev string) string {
	now := s.now()
	if p, err := time.Parse(time.RFC3339Nano, prev); err == nil && now.Before(p) {
		now = p
	}
	return domain.FormatTimestamp(now)
}

func (s *PatientStatusService) publish(ctx context.Context, evt StatusEvent) {
	if s.events == nil {
		return
	}
	// sinks log their own failures
	_ = s.events.Publish(ctx, evt)
}

func (s *PatientStatusService) observe(op string, started time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		e := AsError(*errp)
		outcome = string(e.Kind)
		if e.Kind == KindInternal {
			s.logger.Error("Patient status operation failed", zap.String("operation", op), zap.Error(*errp))
		}
	}
	s.metrics.ObserveStore(op, outcome, started)
}

// optionalString treats "" as absent.
func optionalString(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	out := *v
	return &out
}

// applyOptional: nil patch keeps the old value, "" clears it, anything else replaces it.
func applyOptional(old, patch *string) *string {
	if patch == nil {
		return old
	}
	return optionalString(patch)
}
