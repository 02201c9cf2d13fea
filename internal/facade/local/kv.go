// Package local implements the cloud-capability façade (spec §4.1) for the Local
// runtime: an in-process KV store, an afero-backed object store, an os/exec-based
// Exec, an in-memory log store, and a NATS-backed Notify bus. It exists for
// single-binary development and for integration tests that should not depend on a
// real cloud account.
package local

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// KVStore is a mutex-guarded in-memory implementation of facade.KV. Rows are keyed by
// (PK, SK); operationID dedupes repeated writes the way a real backend's idempotency
// token would, so retried callers observe the same effect exactly once.
type KVStore struct {
	mu      sync.Mutex
	rows    map[string]map[string]facade.Item // PK -> SK -> Item
	applied map[string]bool                   // operationID -> seen
}

func NewKVStore() *KVStore {
	return &KVStore{
		rows:    make(map[string]map[string]facade.Item),
		applied: make(map[string]bool),
	}
}

func (s *KVStore) Put(_ context.Context, item facade.Item, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenLocked(operationID) {
		return nil
	}
	s.putLocked(item)
	return nil
}

func (s *KVStore) putLocked(item facade.Item) {
	bucket, ok := s.rows[item.PK]
	if !ok {
		bucket = make(map[string]facade.Item)
		s.rows[item.PK] = bucket
	}
	bucket[item.SK] = item
}

func (s *KVStore) Get(_ context.Context, pk, sk string) (facade.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.rows[pk]
	if !ok {
		return facade.Item{}, false, nil
	}
	item, ok := bucket[sk]
	return item, ok, nil
}

func (s *KVStore) Delete(_ context.Context, pk, sk string, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenLocked(operationID) {
		return nil
	}
	if bucket, ok := s.rows[pk]; ok {
		delete(bucket, sk)
	}
	return nil
}

func (s *KVStore) Query(_ context.Context, in facade.QueryInput) ([]facade.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.rows[in.PK]
	if !ok {
		return nil, nil
	}
	var out []facade.Item
	for sk, item := range bucket {
		if in.SKPrefix != "" && !strings.HasPrefix(sk, in.SKPrefix) {
			continue
		}
		if in.SKGreaterEq != "" && sk < in.SKGreaterEq {
			continue
		}
		if in.SKLessEq != "" && sk > in.SKLessEq {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	if in.Limit > 0 && len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

// TransactWrite applies all writes atomically under the single process mutex,
// failing the whole batch with Conflict if any conditional precondition fails —
// mirroring the cloud backends' transact-write semantics (spec §4.1, §4.2 step 4).
func (s *KVStore) TransactWrite(_ context.Context, writes []facade.Write, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if operationID != "" && s.applied[operationID] {
		return nil
	}

	for _, w := range writes {
		target := w.Put
		if target == nil {
			target = w.Delete
		}
		if target == nil {
			continue
		}
		if w.ConditionAttribute == "" {
			continue
		}
		current, _, _ := s.getLocked(target.PK, target.SK)
		val, hasAttr := current.Attributes[w.ConditionAttribute]
		if w.ConditionAbsent {
			if hasAttr {
				return apperrors.New(apperrors.Conflict, "attribute %q already present on %s/%s", w.ConditionAttribute, target.PK, target.SK)
			}
			continue
		}
		if !hasAttr || val != w.ConditionValue {
			return apperrors.New(apperrors.Conflict, "attribute %q on %s/%s is %v, expected %v", w.ConditionAttribute, target.PK, target.SK, val, w.ConditionValue)
		}
	}

	// Only a batch that passed its preconditions consumes operationID, so a caller
	// retrying after Conflict with the same ID is evaluated again.
	if operationID != "" {
		s.applied[operationID] = true
	}
	for _, w := range writes {
		if w.Put != nil {
			s.putLocked(*w.Put)
		}
		if w.Delete != nil {
			if bucket, ok := s.rows[w.Delete.PK]; ok {
				delete(bucket, w.Delete.SK)
			}
		}
	}
	return nil
}

func (s *KVStore) ConditionalUpdate(_ context.Context, pk, sk, attribute string, expect, next any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok, _ := s.getLocked(pk, sk)
	if !ok {
		return apperrors.New(apperrors.NotFound, "no row at %s/%s", pk, sk)
	}
	if item.Attributes[attribute] != expect {
		return apperrors.New(apperrors.Conflict, "attribute %q on %s/%s is %v, expected %v", attribute, pk, sk, item.Attributes[attribute], expect)
	}
	item.Attributes[attribute] = next
	s.putLocked(item)
	return nil
}

func (s *KVStore) getLocked(pk, sk string) (facade.Item, bool, error) {
	bucket, ok := s.rows[pk]
	if !ok {
		return facade.Item{}, false, nil
	}
	item, ok := bucket[sk]
	return item, ok, nil
}

func (s *KVStore) seenLocked(operationID string) bool {
	if operationID == "" {
		return false
	}
	if s.applied[operationID] {
		return true
	}
	s.applied[operationID] = true
	return false
}
