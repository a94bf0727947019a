package eval

import (
	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/lduser"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Evaluate runs a flag against a user and a store snapshot, returning a detail
// (value, variation index, reason), any prerequisite-evaluation events gathered
// along the way, and an error describing an internal inconsistency (never a user or
// network error — those are always folded into the detail's ERROR reason instead).
func Evaluate(flag *ldmodel.FeatureFlag, user lduser.User, provider DataProvider) (ldreason.EvaluationDetail, []PrerequisiteEvent, error) {
	if !user.IsValid() {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorUserNotSpecified, ldvalue.Null()), nil, nil
	}
	if flag == nil {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorFlagNotFound, ldvalue.Null()), nil, nil
	}
	return evaluateFlag(flag, user, provider, map[string]bool{flag.Key: true})
}

// evaluateFlag is the recursive entry point used both by Evaluate and by prerequisite
// resolution. stack holds the keys of flags currently being resolved along this
// prerequisite chain, used only to guard against a cyclic flag graph; it never grows
// with the number of rules or clauses, which are walked iteratively below.
func evaluateFlag(
	flag *ldmodel.FeatureFlag,
	user lduser.User,
	provider DataProvider,
	stack map[string]bool,
) (ldreason.EvaluationDetail, []PrerequisiteEvent, error) {
	if !flag.On {
		detail, err := offResult(flag, ldreason.NewEvalReasonOff())
		return detail, nil, err
	}

	var events []PrerequisiteEvent
	for _, p := range flag.Prerequisites {
		prereqFlag, ok := provider.GetFlag(p.Key)
		if !ok {
			// A missing prerequisite flag is a configuration problem, not a cycle;
			// per design, no event is emitted for a prerequisite that was never found.
			detail, err := offResult(flag, ldreason.NewEvalReasonPrerequisiteFailed(p.Key))
			return detail, events, err
		}

		if stack[p.Key] {
			detail, _ := offResult(flag, ldreason.NewEvalReasonPrerequisiteFailed(p.Key))
			return detail, events, errCyclicPrerequisite(p.Key)
		}
		childStack := make(map[string]bool, len(stack)+1)
		for k := range stack {
			childStack[k] = true
		}
		childStack[p.Key] = true

		prereqDetail, prereqEvents, err := evaluateFlag(prereqFlag, user, provider, childStack)
		events = append(events, prereqEvents...)
		events = append(events, PrerequisiteEvent{
			Key:            p.Key,
			Version:        prereqFlag.Version,
			VariationIndex: prereqDetail.VariationIndex,
			Value:          prereqDetail.Value,
			PrereqOf:       flag.Key,
			Reason:         prereqDetail.Reason,
		})
		if err != nil {
			detail, _ := offResult(flag, ldreason.NewEvalReasonPrerequisiteFailed(p.Key))
			return detail, events, err
		}

		satisfied := prereqFlag.On && prereqDetail.VariationIndex == p.Variation
		if !satisfied {
			detail, err := offResult(flag, ldreason.NewEvalReasonPrerequisiteFailed(p.Key))
			return detail, events, err
		}
	}

	for _, target := range flag.Targets {
		for _, v := range target.Values {
			if v == user.Key {
				detail, err := variationForIndex(flag, target.Variation, ldreason.NewEvalReasonTargetMatch())
				return detail, events, err
			}
		}
	}

	for ruleIndex, rule := range flag.Rules {
		if !ruleMatches(rule.Clauses, user, provider) {
			continue
		}
		detail, err := resolveVariationOrRollout(flag, rule.VariationOrRollout, user, ldreason.NewEvalReasonRuleMatch(ruleIndex, rule.ID))
		return detail, events, err
	}

	detail, err := resolveVariationOrRollout(flag, flag.Fallthrough, user, ldreason.NewEvalReasonFallthrough())
	return detail, events, err
}

func offResult(flag *ldmodel.FeatureFlag, reason ldreason.EvaluationReason) (ldreason.EvaluationDetail, error) {
	if flag.OffVariation == nil {
		return ldreason.EvaluationDetail{Value: ldvalue.Null(), VariationIndex: -1, Reason: reason}, nil
	}
	return variationForIndex(flag, *flag.OffVariation, reason)
}

func variationForIndex(flag *ldmodel.FeatureFlag, index int, reason ldreason.EvaluationReason) (ldreason.EvaluationDetail, error) {
	if index < 0 || index >= len(flag.Variations) {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorMalformedFlag, ldvalue.Null()),
			errInvalidVariationIndex(flag.Key, index)
	}
	return ldreason.EvaluationDetail{Value: flag.Variations[index], VariationIndex: index, Reason: reason}, nil
}

// resolveVariationOrRollout picks a fixed variation or walks a rollout's weighted
// buckets, attaching reason to whichever detail results.
func resolveVariationOrRollout(
	flag *ldmodel.FeatureFlag,
	vr ldmodel.VariationOrRollout,
	user lduser.User,
	reason ldreason.EvaluationReason,
) (ldreason.EvaluationDetail, error) {
	if vr.Variation != nil {
		return variationForIndex(flag, *vr.Variation, reason)
	}
	if vr.Rollout != nil && len(vr.Rollout.Variations) > 0 {
		bucketBy := "key"
		if vr.Rollout.BucketBy.IsDefined() {
			bucketBy = vr.Rollout.BucketBy.StringValue()
		}
		bucket := ldmodel.Bucket(user, flag.Key, bucketBy, flag.Salt)
		var sum float64
		for _, wv := range vr.Rollout.Variations {
			sum += float64(wv.Weight) / 100000.0
			if bucket < sum {
				return variationForIndex(flag, wv.Variation, reason)
			}
		}
		// Rounding or malformed weights: fall back to the last variation rather than error.
		last := vr.Rollout.Variations[len(vr.Rollout.Variations)-1]
		return variationForIndex(flag, last.Variation, reason)
	}
	return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorMalformedFlag, ldvalue.Null()),
		errNoVariationOrRollout(flag.Key)
}

// ruleMatches reports whether every clause in the rule matches, using a plain loop
// (no recursion) so that a rule with thousands of clauses evaluates with constant
// stack depth.
func ruleMatches(clauses []ldmodel.Clause, user lduser.User, provider DataProvider) bool {
	if len(clauses) == 0 {
		return false
	}
	for _, clause := range clauses {
		if !clauseMatches(clause, user, provider) {
			return false
		}
	}
	return true
}

func clauseMatches(clause ldmodel.Clause, user lduser.User, provider DataProvider) bool {
	if clause.Op == ldmodel.OperatorSegmentMatch {
		matched := false
		for _, segKey := range clause.Values {
			if segKey.Type() != ldvalue.StringType {
				continue
			}
			segment, ok := provider.GetSegment(segKey.StringValue())
			if !ok {
				continue
			}
			if segmentMatches(segment, user, provider) {
				matched = true
				break
			}
		}
		return maybeNegate(clause.Negate, matched)
	}

	fn, ok := ldmodel.OperatorFn(clause.Op)
	if !ok {
		return maybeNegate(clause.Negate, false)
	}

	userValue := user.GetAttribute(clause.Attribute)
	if userValue.IsNull() {
		return maybeNegate(clause.Negate, false)
	}

	if userValue.Type() == ldvalue.ArrayType {
		for i := 0; i < userValue.Count(); i++ {
			if matchAny(fn, userValue.GetByIndex(i), clause.Values) {
				return maybeNegate(clause.Negate, true)
			}
		}
		return maybeNegate(clause.Negate, false)
	}

	return maybeNegate(clause.Negate, matchAny(fn, userValue, clause.Values))
}

func matchAny(fn func(userValue, clauseValue ldvalue.Value) bool, userValue ldvalue.Value, clauseValues []ldvalue.Value) bool {
	for _, cv := range clauseValues {
		if fn(userValue, cv) {
			return true
		}
	}
	return false
}

func maybeNegate(negate, result bool) bool {
	if negate {
		return !result
	}
	return result
}

// segmentMatches implements the segment-match algorithm: explicit inclusion wins over
// explicit exclusion, then rules are walked in order using the same clause semantics
// (segmentMatch clauses must not appear nested, so no recursive segment lookups occur
// here).
func segmentMatches(segment *ldmodel.Segment, user lduser.User, provider DataProvider) bool {
	for _, k := range segment.Included {
		if k == user.Key {
			return true
		}
	}
	for _, k := range segment.Excluded {
		if k == user.Key {
			return false
		}
	}
	for _, rule := range segment.Rules {
		if !ruleMatches(rule.Clauses, user, provider) {
			continue
		}
		if rule.Weight == nil {
			return true
		}
		bucketBy := "key"
		if rule.BucketBy.IsDefined() {
			bucketBy = rule.BucketBy.StringValue()
		}
		bucket := ldmodel.Bucket(user, segment.Key, bucketBy, segment.Salt)
		if bucket < float64(*rule.Weight)/100000.0 {
			return true
		}
	}
	return false
}
