package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/ldmodel/ldbuilders"
	"github.com/launchdarkly/go-flagcore/lduser"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// testProvider is a trivial in-memory DataProvider, independent of the real store
// package, so the evaluator can be tested in isolation.
type testProvider struct {
	flags    map[string]*ldmodel.FeatureFlag
	segments map[string]*ldmodel.Segment
}

func newTestProvider() *testProvider {
	return &testProvider{flags: map[string]*ldmodel.FeatureFlag{}, segments: map[string]*ldmodel.Segment{}}
}

func (p *testProvider) withFlag(f ldmodel.FeatureFlag) *testProvider {
	p.flags[f.Key] = &f
	return p
}

func (p *testProvider) withSegment(s ldmodel.Segment) *testProvider {
	p.segments[s.Key] = &s
	return p
}

func (p *testProvider) GetFlag(key string) (*ldmodel.FeatureFlag, bool) {
	f, ok := p.flags[key]
	return f, ok
}

func (p *testProvider) GetSegment(key string) (*ldmodel.Segment, bool) {
	s, ok := p.segments[key]
	return s, ok
}

// Scenario 1: off flag with offVariation returns that variation.
func TestEvaluateOffFlagReturnsOffVariation(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(false).
		OffVariation(1).
		Variations(ldvalue.String("a"), ldvalue.String("b"), ldvalue.String("c")).
		FallthroughVariation(0).
		Build()

	detail, events, err := Evaluate(&flag, lduser.NewUser("anyone"), newTestProvider())

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, ldvalue.String("b"), detail.Value)
	assert.Equal(t, 1, detail.VariationIndex)
	assert.Equal(t, ldreason.NewEvalReasonOff(), detail.Reason)
}

// Scenario 2: an out-of-range offVariation is a malformed-flag error.
func TestEvaluateInvalidOffVariationIsMalformedFlag(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(false).
		OffVariation(99).
		Variations(ldvalue.String("a"), ldvalue.String("b"), ldvalue.String("c")).
		FallthroughVariation(0).
		Build()

	detail, _, err := Evaluate(&flag, lduser.NewUser("anyone"), newTestProvider())

	require.Error(t, err)
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detail.Reason.GetErrorKind())
}

// Scenario 3: an explicit target short-circuits rules and fallthrough.
func TestEvaluateTargetMatch(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.String("a"), ldvalue.String("b"), ldvalue.String("c")).
		AddTarget(2, "userkey").
		FallthroughVariation(0).
		Build()

	detail, _, err := Evaluate(&flag, lduser.NewUser("userkey"), newTestProvider())

	require.NoError(t, err)
	assert.Equal(t, ldvalue.String("c"), detail.Value)
	assert.Equal(t, 2, detail.VariationIndex)
	assert.Equal(t, ldreason.NewEvalReasonTargetMatch(), detail.Reason)
}

// Scenario 4: a prerequisite that is off (even at the matching variation) fails,
// and exactly one prerequisite event is produced.
func TestEvaluatePrerequisiteFailedBecauseOff(t *testing.T) {
	prereq := ldbuilders.NewFlagBuilder("feature1").
		Version(2).
		On(false).
		OffVariation(1).
		Variations(ldvalue.String("d"), ldvalue.String("e")).
		FallthroughVariation(0).
		Build()

	parent := ldbuilders.NewFlagBuilder("feature0").
		On(true).
		OffVariation(1).
		Variations(ldvalue.String("x"), ldvalue.String("y")).
		AddPrerequisite("feature1", 1).
		FallthroughVariation(0).
		Build()

	provider := newTestProvider().withFlag(prereq)
	detail, events, err := Evaluate(&parent, lduser.NewUser("anyone"), provider)

	require.NoError(t, err)
	assert.Equal(t, ldvalue.String("y"), detail.Value)
	assert.Equal(t, ldreason.NewEvalReasonPrerequisiteFailed("feature1"), detail.Reason)
	require.Len(t, events, 1)
	assert.Equal(t, "feature1", events[0].Key)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, 1, events[0].VariationIndex)
	assert.Equal(t, ldvalue.String("e"), events[0].Value)
	assert.Equal(t, "feature0", events[0].PrereqOf)
}

// A missing prerequisite flag fails evaluation and emits no event for it.
func TestEvaluatePrerequisiteMissingEmitsNoEvent(t *testing.T) {
	parent := ldbuilders.NewFlagBuilder("feature0").
		On(true).
		OffVariation(0).
		Variations(ldvalue.String("x"), ldvalue.String("y")).
		AddPrerequisite("doesNotExist", 0).
		FallthroughVariation(0).
		Build()

	detail, events, err := Evaluate(&parent, lduser.NewUser("anyone"), newTestProvider())

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, ldreason.NewEvalReasonPrerequisiteFailed("doesNotExist"), detail.Reason)
}

// A satisfied prerequisite (on, matching variation) lets the parent fall through
// normally, with one event recording the prereq's result.
func TestEvaluatePrerequisiteSatisfied(t *testing.T) {
	prereq := ldbuilders.NewFlagBuilder("feature1").
		Version(5).
		On(true).
		Variations(ldvalue.String("d"), ldvalue.String("e")).
		FallthroughVariation(1).
		Build()

	parent := ldbuilders.NewFlagBuilder("feature0").
		On(true).
		Variations(ldvalue.String("x"), ldvalue.String("y")).
		AddPrerequisite("feature1", 1).
		FallthroughVariation(0).
		Build()

	provider := newTestProvider().withFlag(prereq)
	detail, events, err := Evaluate(&parent, lduser.NewUser("anyone"), provider)

	require.NoError(t, err)
	assert.Equal(t, ldvalue.String("x"), detail.Value)
	assert.Equal(t, ldreason.NewEvalReasonFallthrough(), detail.Reason)
	require.Len(t, events, 1)
	assert.Equal(t, "feature1", events[0].Key)
	assert.Equal(t, 1, events[0].VariationIndex)
}

// Scenario 5: a rollout with buckets landing exactly on userKeyA's bucket value
// resolves to the middle, single-weight bucket.
func TestEvaluateRolloutBoundary(t *testing.T) {
	bucketValue := 0.42157587
	b0 := int(bucketValue * 100000)
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Salt("saltyA").
		Variations(ldvalue.String("a"), ldvalue.String("b"), ldvalue.String("c")).
		Fallthrough(ldbuilders.Rollout(
			ldbuilders.Bucket(0, b0),
			ldbuilders.Bucket(1, 1),
			ldbuilders.Bucket(2, 100000-(b0+1)),
		)).
		Build()
	flag.Key = "hashKey"

	detail, _, err := Evaluate(&flag, lduser.NewUser("userKeyA"), newTestProvider())

	require.NoError(t, err)
	assert.Equal(t, 1, detail.VariationIndex)
}

// A rollout whose weights don't sum to the full range falls back to the last
// variation rather than erroring, per the rounding/malformed-weights rule.
func TestEvaluateRolloutFallsBackToLastVariationOnShortfall(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Salt("salt").
		Variations(ldvalue.String("a"), ldvalue.String("b")).
		Fallthrough(ldbuilders.Rollout(ldbuilders.Bucket(0, 1), ldbuilders.Bucket(1, 1))).
		Build()
	flag.Key = "flag"

	detail, _, err := Evaluate(&flag, lduser.NewUser("some-user-whose-bucket-exceeds-the-tiny-weights"), newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, 1, detail.VariationIndex)
}

// Scenario 6: segment inclusion wins over exclusion for the same key.
func TestSegmentIncludedWinsOverExcluded(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("seg").Included("foo").Excluded("foo").Build()

	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r1", ldbuilders.Variation(1), ldbuilders.SegmentMatchClause("seg"))).
		FallthroughVariation(0).
		Build()

	provider := newTestProvider().withSegment(segment)
	detail, _, err := Evaluate(&flag, lduser.NewUser("foo"), provider)

	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
}

func TestEvaluateUserNotSpecified(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").Build()
	detail, events, err := Evaluate(&flag, lduser.User{}, newTestProvider())
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Equal(t, ldreason.EvalErrorUserNotSpecified, detail.Reason.GetErrorKind())
}

func TestEvaluateFlagNotFound(t *testing.T) {
	detail, events, err := Evaluate(nil, lduser.NewUser("x"), newTestProvider())
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Equal(t, ldreason.EvalErrorFlagNotFound, detail.Reason.GetErrorKind())
}

func TestEvaluateRuleMatchUsesFirstMatchingRule(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.String("a"), ldvalue.String("b"), ldvalue.String("c")).
		AddRule(ldbuilders.Rule("rule-no-match", ldbuilders.Variation(1),
			ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("fr")))).
		AddRule(ldbuilders.Rule("rule-match", ldbuilders.Variation(2),
			ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("us")))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("x")
	user.Country = ldvalue.NewOptionalString("us")

	detail, _, err := Evaluate(&flag, user, newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, ldvalue.String("c"), detail.Value)
	assert.Equal(t, ldreason.NewEvalReasonRuleMatch(1, "rule-match"), detail.Reason)
}

func TestEvaluateClauseNegation(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1),
			ldbuilders.Negate(ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("us"))))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("x")
	user.Country = ldvalue.NewOptionalString("fr")

	detail, _, err := Evaluate(&flag, user, newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
}

func TestEvaluateArrayAttributeMatchesAnyElement(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1),
			ldbuilders.Clause("groups", ldmodel.OperatorIn, ldvalue.String("admins")))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("x").WithCustom("groups", ldvalue.ArrayOf(ldvalue.String("users"), ldvalue.String("admins")))

	detail, _, err := Evaluate(&flag, user, newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
}

// The evaluator must handle a very large rule/clause count iteratively: no stack
// growth proportional to input size.
func TestEvaluateHandlesLargeRuleAndClauseCounts(t *testing.T) {
	const ruleCount = 5000
	const clauseCount = 5000

	builder := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Int(0), ldvalue.Int(1))

	manyClauses := make([]ldmodel.Clause, clauseCount)
	for i := range manyClauses {
		manyClauses[i] = ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("never-matches"))
	}
	// One big never-matching rule, to exercise long clause iteration.
	builder.AddRule(ldbuilders.Rule("big-rule", ldbuilders.Variation(1), manyClauses...))
	for i := 0; i < ruleCount; i++ {
		builder.AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1),
			ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("never-matches"))))
	}
	flag := builder.FallthroughVariation(0).Build()

	detail, _, err := Evaluate(&flag, lduser.NewUser("x"), newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Int(0), detail.Value)
	assert.Equal(t, ldreason.NewEvalReasonFallthrough(), detail.Reason)
}

func TestEvaluateIsPure(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Salt("salt").
		Variations(ldvalue.String("a"), ldvalue.String("b")).
		Fallthrough(ldbuilders.Rollout(ldbuilders.Bucket(0, 60000), ldbuilders.Bucket(1, 40000))).
		Build()
	flag.Key = "flag"

	provider := newTestProvider()
	user := lduser.NewUser("repeat-user")

	first, _, err := Evaluate(&flag, user, provider)
	require.NoError(t, err)
	second, _, err := Evaluate(&flag, user, provider)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSegmentRuleWithWeightUsesBucketing(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("seg").
		Salt("saltyA").
		AddRule(ldbuilders.SegmentRule(100000, "", ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("us")))).
		Build()

	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1), ldbuilders.SegmentMatchClause("seg"))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("userKeyA")
	user.Country = ldvalue.NewOptionalString("us")

	provider := newTestProvider().withSegment(segment)
	detail, _, err := Evaluate(&flag, user, provider)
	require.NoError(t, err)
	// weight 100000 means every matching user is in the segment.
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
}

func TestSegmentRuleWithTinyWeightExcludesUserBucketedAbove(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("seg").
		Salt("saltyA").
		AddRule(ldbuilders.SegmentRule(1, "", ldbuilders.Clause("country", ldmodel.OperatorIn, ldvalue.String("us")))).
		Build()

	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1), ldbuilders.SegmentMatchClause("seg"))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("userKeyA")
	user.Country = ldvalue.NewOptionalString("us")

	provider := newTestProvider().withSegment(segment)
	detail, _, err := Evaluate(&flag, user, provider)
	require.NoError(t, err)
	// bucket(userKeyA) under segment key "seg" and salt "saltyA" is ~0.1481 >> weight
	// 1/100000, so the rule should not match.
	assert.Equal(t, ldvalue.Bool(false), detail.Value)
}

func TestClauseWithUnknownOperatorIsFalse(t *testing.T) {
	flag := ldbuilders.NewFlagBuilder("flag").
		On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		AddRule(ldbuilders.Rule("r", ldbuilders.Variation(1), ldbuilders.Clause("country", "notARealOperator", ldvalue.String("us")))).
		FallthroughVariation(0).
		Build()

	user := lduser.NewUser("x")
	user.Country = ldvalue.NewOptionalString("us")

	detail, _, err := Evaluate(&flag, user, newTestProvider())
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(false), detail.Value)
}
