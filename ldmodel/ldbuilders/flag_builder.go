// Package ldbuilders provides builder helpers for constructing FeatureFlag and
// Segment values in tests, rather than hand-assembling nested struct literals.
package ldbuilders

import (
	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// NoVariation represents the lack of a variation index (for FlagBuilder.OffVariation, etc.).
const NoVariation = -1

// Bucket constructs a WeightedVariation with the given variation index and weight.
func Bucket(variationIndex, weight int) ldmodel.WeightedVariation {
	return ldmodel.WeightedVariation{Variation: variationIndex, Weight: weight}
}

// Rollout constructs a VariationOrRollout from a set of weighted buckets.
func Rollout(buckets ...ldmodel.WeightedVariation) ldmodel.VariationOrRollout {
	return ldmodel.VariationOrRollout{Rollout: &ldmodel.Rollout{Variations: buckets}}
}

// RolloutBucketBy is like Rollout but also sets the bucketing attribute.
func RolloutBucketBy(bucketBy string, buckets ...ldmodel.WeightedVariation) ldmodel.VariationOrRollout {
	return ldmodel.VariationOrRollout{
		Rollout: &ldmodel.Rollout{Variations: buckets, BucketBy: ldvalue.NewOptionalString(bucketBy)},
	}
}

// Variation constructs a VariationOrRollout with a fixed variation index.
func Variation(variationIndex int) ldmodel.VariationOrRollout {
	v := variationIndex
	return ldmodel.VariationOrRollout{Variation: &v}
}

// FlagBuilder provides a builder pattern for FeatureFlag.
type FlagBuilder struct {
	flag ldmodel.FeatureFlag
}

// NewFlagBuilder creates a FlagBuilder for the given key, defaulting On to true.
func NewFlagBuilder(key string) *FlagBuilder {
	return &FlagBuilder{flag: ldmodel.FeatureFlag{Key: key, On: true}}
}

// Build returns the configured FeatureFlag.
func (b *FlagBuilder) Build() ldmodel.FeatureFlag {
	return b.flag
}

// On sets the flag's On property.
func (b *FlagBuilder) On(value bool) *FlagBuilder {
	b.flag.On = value
	return b
}

// Variations sets the flag's variation values.
func (b *FlagBuilder) Variations(values ...ldvalue.Value) *FlagBuilder {
	b.flag.Variations = values
	return b
}

// OffVariation sets the flag's OffVariation property. Pass NoVariation to clear it.
func (b *FlagBuilder) OffVariation(variationIndex int) *FlagBuilder {
	if variationIndex == NoVariation {
		b.flag.OffVariation = nil
		return b
	}
	v := variationIndex
	b.flag.OffVariation = &v
	return b
}

// Fallthrough sets the flag's fallthrough variation-or-rollout.
func (b *FlagBuilder) Fallthrough(vr ldmodel.VariationOrRollout) *FlagBuilder {
	b.flag.Fallthrough = vr
	return b
}

// FallthroughVariation sets the flag's fallthrough to a fixed variation.
func (b *FlagBuilder) FallthroughVariation(variationIndex int) *FlagBuilder {
	return b.Fallthrough(Variation(variationIndex))
}

// AddPrerequisite adds a prerequisite.
func (b *FlagBuilder) AddPrerequisite(key string, variationIndex int) *FlagBuilder {
	b.flag.Prerequisites = append(b.flag.Prerequisites, ldmodel.Prerequisite{Key: key, Variation: variationIndex})
	return b
}

// AddTarget adds a user-key target set mapped to a variation.
func (b *FlagBuilder) AddTarget(variationIndex int, keys ...string) *FlagBuilder {
	b.flag.Targets = append(b.flag.Targets, ldmodel.Target{Variation: variationIndex, Values: keys})
	return b
}

// AddRule appends a rule.
func (b *FlagBuilder) AddRule(rule ldmodel.FlagRule) *FlagBuilder {
	b.flag.Rules = append(b.flag.Rules, rule)
	return b
}

// Salt sets the flag's bucketing salt.
func (b *FlagBuilder) Salt(value string) *FlagBuilder {
	b.flag.Salt = value
	return b
}

// Version sets the flag's version.
func (b *FlagBuilder) Version(value int) *FlagBuilder {
	b.flag.Version = value
	return b
}

// ClientSide sets the flag's ClientSide visibility property.
func (b *FlagBuilder) ClientSide(value bool) *FlagBuilder {
	b.flag.ClientSide = value
	return b
}

// TrackEvents sets the flag's TrackEvents property.
func (b *FlagBuilder) TrackEvents(value bool) *FlagBuilder {
	b.flag.TrackEvents = value
	return b
}

// TrackEventsFallthrough sets the flag's TrackEventsFallthrough property.
func (b *FlagBuilder) TrackEventsFallthrough(value bool) *FlagBuilder {
	b.flag.TrackEventsFallthrough = value
	return b
}

// DebugEventsUntilDate sets the flag's DebugEventsUntilDate property.
func (b *FlagBuilder) DebugEventsUntilDate(t int64) *FlagBuilder {
	if t == 0 {
		b.flag.DebugEventsUntilDate = nil
		return b
	}
	v := t
	b.flag.DebugEventsUntilDate = &v
	return b
}

// Rule constructs a FlagRule with the given ID, clauses, and resolution.
func Rule(id string, vr ldmodel.VariationOrRollout, clauses ...ldmodel.Clause) ldmodel.FlagRule {
	return ldmodel.FlagRule{ID: id, Clauses: clauses, VariationOrRollout: vr}
}

// Clause constructs a basic clause over a built-in or custom attribute.
func Clause(attribute string, op ldmodel.Operator, values ...ldvalue.Value) ldmodel.Clause {
	return ldmodel.Clause{Attribute: attribute, Op: op, Values: values}
}

// Negate returns a copy of clause with Negate set to true.
func Negate(clause ldmodel.Clause) ldmodel.Clause {
	clause.Negate = true
	return clause
}

// SegmentMatchClause constructs a segmentMatch clause over the given segment keys.
func SegmentMatchClause(segmentKeys ...string) ldmodel.Clause {
	clause := ldmodel.Clause{Op: ldmodel.OperatorSegmentMatch}
	for _, key := range segmentKeys {
		clause.Values = append(clause.Values, ldvalue.String(key))
	}
	return clause
}
