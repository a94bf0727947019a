// Package ldmodel defines the wire data model for flags and segments, the C1
// bucketing primitive, and the C2 clause-operator table.
package ldmodel

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// Prerequisite names another flag that must be "on" and resolve to a specific
// variation before this flag's own rules are considered.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// Target maps a fixed set of user keys directly to a variation index.
type Target struct {
	Variation int      `json:"variation"`
	Values    []string `json:"values"`
}

// Clause is a single matching condition: does the user's (or segment's) attribute
// match any of Values under Op, optionally negated.
//
// Op == "segmentMatch" is handled specially by the evaluator: Values then holds
// segment keys rather than ordinary comparison operands.
type Clause struct {
	Attribute string         `json:"attribute"`
	Op        Operator       `json:"op"`
	Values    []ldvalue.Value `json:"values"`
	Negate    bool           `json:"negate"`
}

// WeightedVariation is one entry in a percentage rollout: Weight is out of 100000.
type WeightedVariation struct {
	Variation int `json:"variation"`
	Weight    int `json:"weight"`
}

// Rollout is a percentage-based variation selection, optionally bucketed by an
// attribute other than the user key.
type Rollout struct {
	Variations []WeightedVariation    `json:"variations"`
	BucketBy   ldvalue.OptionalString `json:"bucketBy,omitempty"`
}

// VariationOrRollout is either a fixed variation index or a rollout. Exactly one of
// Variation or Rollout should be set; if neither is, resolving it is a malformed-flag
// error.
type VariationOrRollout struct {
	Variation *int     `json:"variation,omitempty"`
	Rollout   *Rollout `json:"rollout,omitempty"`
}

// FlagRule is an ordered, AND-ed set of clauses paired with the variation to serve
// when they all match.
type FlagRule struct {
	ID                 string `json:"id"`
	Clauses            []Clause
	VariationOrRollout
}

// FeatureFlag is a single flag's full rule set, as consumed by the evaluator.
type FeatureFlag struct {
	Key           string
	Version       int
	On            bool
	Variations    []ldvalue.Value
	OffVariation  *int
	Fallthrough   VariationOrRollout
	Prerequisites []Prerequisite
	Targets       []Target
	Rules         []FlagRule
	Salt          string
	Deleted       bool

	// ClientSide marks a flag as visible to client-side SDKs; AllFlagsState's
	// ClientSideOnly option filters on this.
	ClientSide bool
	// TrackEvents marks every evaluation of this flag as tracked for AllFlagsState's
	// DetailsOnlyForTrackedFlags option, regardless of which rule matched;
	// TrackEventsFallthrough does the same only for evaluations that fell through.
	TrackEvents            bool
	TrackEventsFallthrough bool
	// DebugEventsUntilDate, if set, is a Unix millisecond timestamp up to which
	// evaluations of this flag are temporarily treated as tracked.
	DebugEventsUntilDate *int64
}

// SegmentRule is an ordered, AND-ed set of clauses, optionally gated by a percentage
// rollout weight.
type SegmentRule struct {
	Clauses  []Clause
	Weight   *int
	BucketBy ldvalue.OptionalString
}

// Segment is a named, reusable set of users, matched either by direct key list or by
// rule.
type Segment struct {
	Key      string
	Version  int
	Salt     string
	Included []string
	Excluded []string
	Rules    []SegmentRule
	Deleted  bool
}

// IsDeleted reports whether a flag is a tombstone. Tombstones retain Version for
// comparison purposes but must be invisible to ordinary reads.
func (f FeatureFlag) IsDeleted() bool { return f.Deleted }

// IsDeleted reports whether a segment is a tombstone.
func (s Segment) IsDeleted() bool { return s.Deleted }
