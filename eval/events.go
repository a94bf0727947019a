package eval

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// PrerequisiteEvent is emitted once per prerequisite flag actually evaluated, even
// when the outer flag ultimately errors. The caller hands these to its own analytics
// pipeline; this module has no opinion about delivery.
type PrerequisiteEvent struct {
	Key            string
	Version        int
	VariationIndex int
	Value          ldvalue.Value
	PrereqOf       string
	Reason         ldreason.EvaluationReason
}
