package store

import (
	"context"
	"errors"
	"fmt"
)

// IndexSet 索引集合名
type IndexSet string

const (
	IndexActive  IndexSet = "active"
	IndexDeleted IndexSet = "deleted"
)

// RecordIndex 维护 active / deleted 两个互斥的 id 集合，不保存记录内容
type RecordIndex struct {
	kv         KV
	activeKey  string
	deletedKey string
}

// NewRecordIndex keys are "<collection>:active" and "<collection>:deleted".
func NewRecordIndex(kv KV, collection string) *RecordIndex {
	return &RecordIndex{
		kv:         kv,
		activeKey:  collection + ":active",
		deletedKey: collection + ":deleted",
	}
}

func (i *RecordIndex) key(set IndexSet) string {
	if set == IndexDeleted {
		return i.deletedKey
	}
	return i.activeKey
}

// Key returns the backend key of a set.
func (i *RecordIndex) Key(set IndexSet) string { return i.key(set) }

func (i *RecordIndex) Add(ctx context.Context, set IndexSet, id string) error {
	if err := i.kv.SAdd(ctx, i.key(set), id); err != nil {
		return fmt.Errorf("failed to add %s to %s index: %w", id, set, err)
	}
	return nil
}

func (i *RecordIndex) Remove(ctx context.Context, set IndexSet, id string) error {
	if err := i.kv.SRem(ctx, i.key(set), id); err != nil {
		return fmt.Errorf("failed to remove %s from %s index: %w", id, set, err)
	}
	return nil
}

func (i *RecordIndex) Members(ctx context.Context, set IndexSet) ([]string, error) {
	ids, err := i.kv.SMembers(ctx, i.key(set))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s index: %w", set, err)
	}
	return ids, nil
}

func (i *RecordIndex) Count(ctx context.Context, set IndexSet) (int, error) {
	n, err := i.kv.SCard(ctx, i.key(set))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s index: %w", set, err)
	}
	return int(n), nil
}

func (i *RecordIndex) Contains(ctx context.Context, set IndexSet, id string) (bool, error) {
	ok, err := i.kv.SIsMember(ctx, i.key(set), id)
	if err != nil {
		return false, fmt.Errorf("failed to check %s index: %w", set, err)
	}
	return ok, nil
}

// Move removes id from one set and adds it to the other. Both calls are always
// attempted so a retry after a partial failure converges.
func (i *RecordIndex) Move(ctx context.Context, id string, from, to IndexSet) error {
	remErr := i.Remove(ctx, from, id)
	addErr := i.Add(ctx, to, id)
	return errors.Join(remErr, addErr)
}
