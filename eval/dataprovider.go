// Package eval implements the C4 evaluation engine: the deterministic interpreter
// that turns a flag, a user, and a store snapshot into an evaluation result.
package eval

import "github.com/launchdarkly/go-flagcore/ldmodel"

// DataProvider is the read-only view of the store that the evaluator needs: lookup
// of a single flag or segment by key. It is satisfied by the data store's
// evaluator-facing accessor so the evaluator never depends on the store's full
// read/write surface.
type DataProvider interface {
	GetFlag(key string) (*ldmodel.FeatureFlag, bool)
	GetSegment(key string) (*ldmodel.Segment, bool)
}
