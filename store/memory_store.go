// Package store implements the in-memory data store (C3) and its event-broadcasting
// decorator (C8).
package store

import (
	"sync"

	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/ldstoretypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// MemoryStore is the in-memory implementation of the data store described by C3: a
// versioned key/value cache keyed by (kind, key), with tombstones and a single mutex
// serializing all reads and writes.
type MemoryStore struct {
	mu          sync.Mutex
	initialized bool
	data        map[string]map[string]ldstoretypes.ItemDescriptor
}

// NewMemoryStore creates an empty, uninitialized store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]ldstoretypes.ItemDescriptor)}
}

// Init atomically replaces the store's entire contents and marks it initialized.
// Previous data is discarded, matching the invariant that after init the store's
// contents equal the provided snapshot exactly.
func (s *MemoryStore) Init(allData []ldstoretypes.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make(map[string]map[string]ldstoretypes.ItemDescriptor, len(allData))
	for _, coll := range allData {
		items := make(map[string]ldstoretypes.ItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			items[item.Key] = deepCopyDescriptor(item.Item)
		}
		replacement[coll.Kind.Name] = items
	}
	s.data = replacement
	s.initialized = true
	return nil
}

// Get returns the item for a key, or a nil-Item descriptor if the key is missing or
// tombstoned: tombstones are indistinguishable from absence on reads.
func (s *MemoryStore) Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data[kind.Name][key]
	if !ok || item.IsDeleted() {
		return ldstoretypes.ItemDescriptor{}, nil
	}
	return deepCopyDescriptor(item), nil
}

// GetAll returns every live (non-tombstoned) item of a kind.
func (s *MemoryStore) GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.data[kind.Name]
	result := make([]ldstoretypes.KeyedItemDescriptor, 0, len(items))
	for key, item := range items {
		if item.IsDeleted() {
			continue
		}
		result = append(result, ldstoretypes.KeyedItemDescriptor{Key: key, Item: deepCopyDescriptor(item)})
	}
	return result, nil
}

// Upsert applies an item if its version is strictly greater than what's stored (or
// nothing is stored yet); otherwise it is a silent no-op, including when a
// non-tombstone item tries to overwrite a newer tombstone.
func (s *MemoryStore) Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(kind, key, item), nil
}

func (s *MemoryStore) upsertLocked(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) bool {
	items, ok := s.data[kind.Name]
	if !ok {
		items = make(map[string]ldstoretypes.ItemDescriptor)
		s.data[kind.Name] = items
	}
	existing, exists := items[key]
	if exists && existing.Version >= item.Version {
		return false
	}
	items[key] = deepCopyDescriptor(item)
	return true
}

// IsInitialized reports whether Init has been called at least once.
func (s *MemoryStore) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Close releases the store's resources. For the in-memory variant this is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// GetFlag implements eval.DataProvider, decoding the stored item as a flag.
func (s *MemoryStore) GetFlag(key string) (*ldmodel.FeatureFlag, bool) {
	item, err := s.Get(ldmodel.Features, key)
	if err != nil || item.Item == nil {
		return nil, false
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	return flag, ok
}

// GetSegment implements eval.DataProvider, decoding the stored item as a segment.
func (s *MemoryStore) GetSegment(key string) (*ldmodel.Segment, bool) {
	item, err := s.Get(ldmodel.Segments, key)
	if err != nil || item.Item == nil {
		return nil, false
	}
	segment, ok := item.Item.(*ldmodel.Segment)
	return segment, ok
}

// deepCopyDescriptor defensively copies an item so that later mutation of the
// caller's original value, or of the store's internal copy, cannot alias across the
// store boundary.
func deepCopyDescriptor(item ldstoretypes.ItemDescriptor) ldstoretypes.ItemDescriptor {
	switch v := item.Item.(type) {
	case *ldmodel.FeatureFlag:
		if v == nil {
			return item
		}
		cp := *v
		cp.Variations = append([]ldvalue.Value(nil), v.Variations...)
		cp.Prerequisites = append([]ldmodel.Prerequisite(nil), v.Prerequisites...)
		cp.Targets = copyTargets(v.Targets)
		cp.Rules = copyRules(v.Rules)
		return ldstoretypes.ItemDescriptor{Version: item.Version, Item: &cp}
	case *ldmodel.Segment:
		if v == nil {
			return item
		}
		cp := *v
		cp.Included = append([]string(nil), v.Included...)
		cp.Excluded = append([]string(nil), v.Excluded...)
		cp.Rules = copySegmentRules(v.Rules)
		return ldstoretypes.ItemDescriptor{Version: item.Version, Item: &cp}
	default:
		return item
	}
}

func copyTargets(targets []ldmodel.Target) []ldmodel.Target {
	if targets == nil {
		return nil
	}
	cp := make([]ldmodel.Target, len(targets))
	for i, t := range targets {
		cp[i] = ldmodel.Target{Variation: t.Variation, Values: append([]string(nil), t.Values...)}
	}
	return cp
}

func copyClauses(clauses []ldmodel.Clause) []ldmodel.Clause {
	if clauses == nil {
		return nil
	}
	cp := make([]ldmodel.Clause, len(clauses))
	for i, c := range clauses {
		cp[i] = ldmodel.Clause{
			Attribute: c.Attribute,
			Op:        c.Op,
			Values:    append([]ldvalue.Value(nil), c.Values...),
			Negate:    c.Negate,
		}
	}
	return cp
}

func copyRollout(r *ldmodel.Rollout) *ldmodel.Rollout {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Variations = append([]ldmodel.WeightedVariation(nil), r.Variations...)
	return &cp
}

func copyRules(rules []ldmodel.FlagRule) []ldmodel.FlagRule {
	if rules == nil {
		return nil
	}
	cp := make([]ldmodel.FlagRule, len(rules))
	for i, r := range rules {
		cp[i] = ldmodel.FlagRule{
			ID:      r.ID,
			Clauses: copyClauses(r.Clauses),
			VariationOrRollout: ldmodel.VariationOrRollout{
				Variation: copyIntPtr(r.Variation),
				Rollout:   copyRollout(r.Rollout),
			},
		}
	}
	return cp
}

func copySegmentRules(rules []ldmodel.SegmentRule) []ldmodel.SegmentRule {
	if rules == nil {
		return nil
	}
	cp := make([]ldmodel.SegmentRule, len(rules))
	for i, r := range rules {
		cp[i] = ldmodel.SegmentRule{
			Clauses:  copyClauses(r.Clauses),
			Weight:   copyIntPtr(r.Weight),
			BucketBy: r.BucketBy,
		}
	}
	return cp
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
