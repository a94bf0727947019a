// Package subsystems defines the interface seam between the data store (C3/C8), the
// evaluation engine's data provider (C4), and the update processors (C5/C6/C7). This
// mirrors the store/data-source contract used throughout the teacher SDK's own
// component model, so a caller can substitute their own store or data source without
// touching the evaluator.
package subsystems

import "github.com/launchdarkly/go-flagcore/ldstoretypes"

// DataStore is the full read/write surface described by C3: atomic bulk init,
// per-kind get/all, version-gated upsert, and lifecycle queries.
type DataStore interface {
	// Init atomically replaces the store's entire contents and marks it initialized.
	Init(allData []ldstoretypes.Collection) error

	// Get returns the item for a key, or a zero ItemDescriptor with Item == nil if the
	// key is missing or tombstoned.
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error)

	// GetAll returns every live (non-tombstoned) item of a kind.
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error)

	// Upsert applies an item if its version is strictly greater than what's stored (or
	// nothing is stored), reporting whether the write took effect.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error)

	// IsInitialized reports whether Init has been called at least once.
	IsInitialized() bool

	// Close releases any resources held by the store.
	Close() error
}
