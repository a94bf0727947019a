package flagstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

func TestInvalidStateIsNotValid(t *testing.T) {
	state := Invalid()
	assert.False(t, state.Valid())
	assert.Equal(t, ldvalue.Null(), state.GetValue("anything"))
}

func TestGetValueAndToValuesMap(t *testing.T) {
	b := NewBuilder(false, false)
	b.AddFlag("a", ldvalue.String("1"), 0, 1, ldreason.NewEvalReasonFallthrough(), false, false, nil)
	b.AddFlag("b", ldvalue.String("2"), 0, 1, ldreason.NewEvalReasonFallthrough(), false, false, nil)
	state := b.Build()

	assert.True(t, state.Valid())
	assert.Equal(t, ldvalue.String("1"), state.GetValue("a"))
	assert.Equal(t, ldvalue.Null(), state.GetValue("nonexistent"))
	assert.Equal(t, map[string]ldvalue.Value{"a": ldvalue.String("1"), "b": ldvalue.String("2")}, state.ToValuesMap())
}

func TestWithReasonsIncludesReasonRegardlessOfTracking(t *testing.T) {
	b := NewBuilder(false, true)
	b.AddFlag("a", ldvalue.Bool(true), 0, 5, ldreason.NewEvalReasonFallthrough(), false, false, nil)
	state := b.Build()

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	flagsState := out["$flagsState"].(map[string]interface{})
	meta := flagsState["a"].(map[string]interface{})
	assert.Contains(t, meta, "reason")
	assert.Equal(t, float64(5), meta["version"])
}

func TestWithoutReasonsOmitsReasonUnlessTrackReason(t *testing.T) {
	b := NewBuilder(false, false)
	b.AddFlag("notTracked", ldvalue.Bool(true), 0, 1, ldreason.NewEvalReasonFallthrough(), false, false, nil)
	b.AddFlag("trackedReason", ldvalue.Bool(true), 0, 1, ldreason.NewEvalReasonFallthrough(), false, true, nil)
	state := b.Build()

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	flagsState := out["$flagsState"].(map[string]interface{})

	notTracked := flagsState["notTracked"].(map[string]interface{})
	assert.NotContains(t, notTracked, "reason")

	trackedReason := flagsState["trackedReason"].(map[string]interface{})
	assert.Contains(t, trackedReason, "reason")
}

func TestDetailsOnlyForTrackedFlagsOmitsMetadataForUntracked(t *testing.T) {
	b := NewBuilder(true, true)
	b.AddFlag("untracked", ldvalue.Bool(true), 0, 9, ldreason.NewEvalReasonFallthrough(), false, false, nil)
	b.AddFlag("tracked", ldvalue.Bool(true), 0, 9, ldreason.NewEvalReasonFallthrough(), true, false, nil)
	state := b.Build()

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	flagsState := out["$flagsState"].(map[string]interface{})

	untracked := flagsState["untracked"].(map[string]interface{})
	assert.NotContains(t, untracked, "version")
	assert.NotContains(t, untracked, "reason")
	// The flag's value is still present at the top level regardless of detail omission.
	assert.Equal(t, true, out["untracked"])

	tracked := flagsState["tracked"].(map[string]interface{})
	assert.Contains(t, tracked, "version")
	assert.Contains(t, tracked, "reason")
}

func TestDetailsOnlyForTrackedFlagsStillIncludesDebugEventsUntilDate(t *testing.T) {
	until := int64(12345)
	b := NewBuilder(true, false)
	b.AddFlag("debugging", ldvalue.Bool(true), 0, 1, ldreason.NewEvalReasonFallthrough(), false, false, &until)
	state := b.Build()

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	flagsState := out["$flagsState"].(map[string]interface{})
	meta := flagsState["debugging"].(map[string]interface{})
	assert.Contains(t, meta, "version")
	assert.Equal(t, float64(until), meta["debugEventsUntilDate"])
}

func TestNegativeVariationIndexIsOmitted(t *testing.T) {
	b := NewBuilder(false, false)
	b.AddFlag("offFlag", ldvalue.Null(), -1, 1, ldreason.NewEvalReasonOff(), false, false, nil)
	state := b.Build()

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	flagsState := out["$flagsState"].(map[string]interface{})
	meta := flagsState["offFlag"].(map[string]interface{})
	assert.NotContains(t, meta, "variation")
}

func TestMarshalJSONIncludesValidBit(t *testing.T) {
	data, err := json.Marshal(Invalid())
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, false, out["$valid"])
}

func TestHasOption(t *testing.T) {
	assert.True(t, HasOption([]Option{ClientSideOnly, WithReasons}, WithReasons))
	assert.False(t, HasOption([]Option{ClientSideOnly}, DetailsOnlyForTrackedFlags))
}
