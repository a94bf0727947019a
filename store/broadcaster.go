package store

import (
	"sync"

	"github.com/launchdarkly/go-flagcore/ldstoretypes"
)

// ChangeEvent is published by a BroadcastingStore after a write actually changes the
// inner store's contents. Key is empty for the store-wide event that every Init and
// every effective Upsert publishes first; the per-item events that follow carry Kind
// and Key.
type ChangeEvent struct {
	Kind ldstoretypes.DataKind
	Key  string
}

// BroadcastingStore decorates a DataStore and publishes a ChangeEvent to every current
// subscriber after each successful Init and each upsert that the inner store reports
// as a real change (C8). An upsert that loses its version check publishes nothing. A
// successful Init always publishes; it does not compare the new snapshot with the old
// contents, so an Init with identical data still produces events.
type BroadcastingStore struct {
	inner DataStore

	mu          sync.Mutex
	subscribers map[chan ChangeEvent]struct{}
}

// DataStore is the surface a BroadcastingStore wraps. It is declared locally with the
// same method set as subsystems.DataStore, which therefore satisfies it structurally.
type DataStore interface {
	Init(allData []ldstoretypes.Collection) error
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error)
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error)
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error)
	IsInitialized() bool
	Close() error
}

// NewBroadcastingStore wraps inner, an already-constructed store, with change
// notification.
func NewBroadcastingStore(inner DataStore) *BroadcastingStore {
	return &BroadcastingStore{inner: inner, subscribers: make(map[chan ChangeEvent]struct{})}
}

// Subscribe registers a channel to receive future change events. The caller owns the
// channel and must keep draining it; Unsubscribe removes it again. Publishes are
// non-blocking and drop events for a full channel rather than block, so a reasonably
// buffered channel (e.g. size 10) keeps a slow subscriber from missing events.
func (b *BroadcastingStore) Subscribe(ch chan ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

// Unsubscribe removes a previously registered channel. It does not close the channel;
// the caller owns its lifecycle.
func (b *BroadcastingStore) Unsubscribe(ch chan ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, ch)
}

func (b *BroadcastingStore) publish(event ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Init forwards to the inner store and publishes a store-wide change event followed
// by one event per item. This happens unconditionally on a successful Init: replacing
// a store's full contents is always treated as a change even if the new snapshot
// happens to be identical to the old one.
func (b *BroadcastingStore) Init(allData []ldstoretypes.Collection) error {
	if err := b.inner.Init(allData); err != nil {
		return err
	}
	b.publish(ChangeEvent{})
	for _, coll := range allData {
		for _, item := range coll.Items {
			b.publish(ChangeEvent{Kind: coll.Kind, Key: item.Key})
		}
	}
	return nil
}

func (b *BroadcastingStore) Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	return b.inner.Get(kind, key)
}

func (b *BroadcastingStore) GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error) {
	return b.inner.GetAll(kind)
}

// Upsert forwards to the inner store and, only if the write actually took effect,
// publishes an update event and an update:<key>-scoped event.
func (b *BroadcastingStore) Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error) {
	updated, err := b.inner.Upsert(kind, key, item)
	if err != nil || !updated {
		return updated, err
	}
	b.publish(ChangeEvent{})
	b.publish(ChangeEvent{Kind: kind, Key: key})
	return true, nil
}

func (b *BroadcastingStore) IsInitialized() bool {
	return b.inner.IsInitialized()
}

func (b *BroadcastingStore) Close() error {
	return b.inner.Close()
}
