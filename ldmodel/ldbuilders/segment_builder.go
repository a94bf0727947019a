package ldbuilders

import (
	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// SegmentBuilder provides a builder pattern for Segment.
type SegmentBuilder struct {
	segment ldmodel.Segment
}

// NewSegmentBuilder creates a SegmentBuilder for the given key.
func NewSegmentBuilder(key string) *SegmentBuilder {
	return &SegmentBuilder{segment: ldmodel.Segment{Key: key}}
}

// Build returns the configured Segment.
func (b *SegmentBuilder) Build() ldmodel.Segment {
	return b.segment
}

// Included sets the segment's included-keys list.
func (b *SegmentBuilder) Included(keys ...string) *SegmentBuilder {
	b.segment.Included = keys
	return b
}

// Excluded sets the segment's excluded-keys list.
func (b *SegmentBuilder) Excluded(keys ...string) *SegmentBuilder {
	b.segment.Excluded = keys
	return b
}

// AddRule appends a segment rule.
func (b *SegmentBuilder) AddRule(rule ldmodel.SegmentRule) *SegmentBuilder {
	b.segment.Rules = append(b.segment.Rules, rule)
	return b
}

// Salt sets the segment's bucketing salt.
func (b *SegmentBuilder) Salt(value string) *SegmentBuilder {
	b.segment.Salt = value
	return b
}

// Version sets the segment's version.
func (b *SegmentBuilder) Version(value int) *SegmentBuilder {
	b.segment.Version = value
	return b
}

// SegmentRule constructs a segment rule with an optional weight (0 means unweighted).
func SegmentRule(weight int, bucketBy string, clauses ...ldmodel.Clause) ldmodel.SegmentRule {
	rule := ldmodel.SegmentRule{Clauses: clauses}
	if weight > 0 {
		w := weight
		rule.Weight = &w
	}
	if bucketBy != "" {
		rule.BucketBy = ldvalue.NewOptionalString(bucketBy)
	}
	return rule
}
