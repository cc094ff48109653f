package service

import (
	"context"
	"encoding/json"
	"sort"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/metrics"
	"wisefido-patient-status/internal/store"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// IndexReconciler rebuilds index membership from the authoritative isDeleted flag.
type IndexReconciler interface {
	Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error)
}

// ReconcileReport 一次修复的结果
type ReconcileReport struct {
	Scanned     int      `json:"scanned"`
	Unparseable []string `json:"unparseable"`

	AddedToActive      []string `json:"addedToActive"`
	AddedToDeleted     []string `json:"addedToDeleted"`
	RemovedFromActive  []string `json:"removedFromActive"`
	RemovedFromDeleted []string `json:"removedFromDeleted"`

	DryRun bool `json:"dryRun"`
}

// Changes counts membership corrections (planned when DryRun).
func (r *ReconcileReport) Changes() int {
	return len(r.AddedToActive) + len(r.AddedToDeleted) + len(r.RemovedFromActive) + len(r.RemovedFromDeleted)
}

// Reconciler 扫描 hash 中全部记录，按 isDeleted 修正 active/deleted 索引
//
// 索引中存在但 hash 中没有记录的 id 会被移除（create 先写 hash 后写索引，
// 因此这类 id 不可能是进行中的创建）。不可解析的记录只报告，不改动其索引成员关系。
type Reconciler struct {
	kv      store.KV
	index   *store.RecordIndex
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewReconciler(kv store.KV, m *metrics.Collector, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		kv:      kv,
		index:   store.NewRecordIndex(kv, PatientStatusKey),
		metrics: m,
		logger:  logger,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	records, err := r.kv.HGetAll(ctx, PatientStatusKey)
	if err != nil {
		return nil, internalError("hgetall", err)
	}
	activeIDs, err := r.index.Members(ctx, store.IndexActive)
	if err != nil {
		return nil, internalError("list active index", err)
	}
	deletedIDs, err := r.index.Members(ctx, store.IndexDeleted)
	if err != nil {
		return nil, internalError("list deleted index", err)
	}

	inActive := lo.SliceToMap(activeIDs, func(id string) (string, bool) { return id, true })
	inDeleted := lo.SliceToMap(deletedIDs, func(id string) (string, bool) { return id, true })

	report := &ReconcileReport{Scanned: len(records), DryRun: dryRun}

	for id, raw := range records {
		var rec domain.PatientStatus
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			report.Unparseable = append(report.Unparseable, id)
			continue
		}
		if rec.IsDeleted {
			if !inDeleted[id] {
				report.AddedToDeleted = append(report.AddedToDeleted, id)
			}
			if inActive[id] {
				report.RemovedFromActive = append(report.RemovedFromActive, id)
			}
		} else {
			if !inActive[id] {
				report.AddedToActive = append(report.AddedToActive, id)
			}
			if inDeleted[id] {
				report.RemovedFromDeleted = append(report.RemovedFromDeleted, id)
			}
		}
	}

	// orphans: indexed ids without a record
	for _, id := range activeIDs {
		if _, ok := records[id]; !ok {
			report.RemovedFromActive = append(report.RemovedFromActive, id)
		}
	}
	for _, id := range deletedIDs {
		if _, ok := records[id]; !ok {
			report.RemovedFromDeleted = append(report.RemovedFromDeleted, id)
		}
	}

	for _, ids := range [][]string{report.Unparseable, report.AddedToActive, report.AddedToDeleted, report.RemovedFromActive, report.RemovedFromDeleted} {
		sort.Strings(ids)
	}

	if dryRun {
		r.logger.Info("Index reconcile dry run",
			zap.Int("scanned", report.Scanned),
			zap.Int("planned_changes", report.Changes()),
		)
		return report, nil
	}

	if err := r.apply(ctx, report); err != nil {
		return report, err
	}

	r.logger.Info("Index reconciled",
		zap.Int("scanned", report.Scanned),
		zap.Int("changes", report.Changes()),
		zap.Int("unparseable", len(report.Unparseable)),
	)
	return report, nil
}

func (r *Reconciler) apply(ctx context.Context, report *ReconcileReport) error {
	steps := []struct {
		action string
		ids    []string
		fn     func(context.Context, string) error
	}{
		{"added_active", report.AddedToActive, func(ctx context.Context, id string) error { return r.index.Add(ctx, store.IndexActive, id) }},
		{"added_deleted", report.AddedToDeleted, func(ctx context.Context, id string) error { return r.index.Add(ctx, store.IndexDeleted, id) }},
		{"removed_active", report.RemovedFromActive, func(ctx context.Context, id string) error { return r.index.Remove(ctx, store.IndexActive, id) }},
		{"removed_deleted", report.RemovedFromDeleted, func(ctx context.Context, id string) error { return r.index.Remove(ctx, store.IndexDeleted, id) }},
	}
	for _, step := range steps {
		for _, id := range step.ids {
			if err := step.fn(ctx, id); err != nil {
				return internalError("reconcile "+step.action, err)
			}
		}
		r.metrics.IndexRepaired(step.action, len(step.ids))
	}
	return nil
}
