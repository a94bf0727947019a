// Package ldstoretypes defines the data-kind and item-descriptor vocabulary shared
// between the data store (C3/C8), the evaluator (C4), and the update processors
// (C5/C6/C7).
package ldstoretypes

// DataKind identifies a category of stored data: flags or segments. Name is the
// wire namespace used in put/all payloads; StreamAPIPath is the prefix used to route
// patch/delete events (e.g. "/flags/", "/segments/").
type DataKind struct {
	Name          string
	StreamAPIPath string
}

// String returns the kind's namespace name, so a DataKind can be used directly as a
// map key or log field.
func (k DataKind) String() string { return k.Name }

// ItemDescriptor is a versioned slot in the store: either a live item or, when Item
// is nil, a tombstone that still carries Version for comparison purposes.
type ItemDescriptor struct {
	Version int
	Item    interface{}
}

// Deleted returns a tombstone descriptor for the given version.
func Deleted(version int) ItemDescriptor {
	return ItemDescriptor{Version: version, Item: nil}
}

// IsDeleted reports whether this descriptor is a tombstone.
func (d ItemDescriptor) IsDeleted() bool { return d.Item == nil }

// KeyedItemDescriptor pairs a descriptor with the key it was stored under, as
// returned by GetAll.
type KeyedItemDescriptor struct {
	Key  string
	Item ItemDescriptor
}

// Collection is one kind's full set of items, as used by Init.
type Collection struct {
	Kind  DataKind
	Items []KeyedItemDescriptor
}
