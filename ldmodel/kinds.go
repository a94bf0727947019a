package ldmodel

import "github.com/launchdarkly/go-flagcore/ldstoretypes"

// Features and Segments are the two data kinds defined by the base protocol. The
// registry is fixed at these two; there is no mechanism in this module for a caller
// to register additional kinds.
var (
	Features = ldstoretypes.DataKind{Name: "features", StreamAPIPath: "/flags/"}
	Segments = ldstoretypes.DataKind{Name: "segments", StreamAPIPath: "/segments/"}
)

// AllKinds lists every known data kind, in the order they're applied by a full put.
func AllKinds() []ldstoretypes.DataKind {
	return []ldstoretypes.DataKind{Features, Segments}
}
