package store

import (
	"github.com/launchdarkly/go-flagcore/ldmodel"
)

// Provider adapts any DataStore (an inner MemoryStore, or one wrapped by a
// BroadcastingStore) into an eval.DataProvider, decoding stored items as flags or
// segments.
type Provider struct {
	Store DataStore
}

// NewProvider returns a DataProvider backed by store.
func NewProvider(store DataStore) Provider {
	return Provider{Store: store}
}

// GetFlag implements eval.DataProvider.
func (p Provider) GetFlag(key string) (*ldmodel.FeatureFlag, bool) {
	item, err := p.Store.Get(ldmodel.Features, key)
	if err != nil || item.Item == nil {
		return nil, false
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	return flag, ok
}

// GetSegment implements eval.DataProvider.
func (p Provider) GetSegment(key string) (*ldmodel.Segment, bool) {
	item, err := p.Store.Get(ldmodel.Segments, key)
	if err != nil || item.Item == nil {
		return nil, false
	}
	segment, ok := item.Item.(*ldmodel.Segment)
	return segment, ok
}
