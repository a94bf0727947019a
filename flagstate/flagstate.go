// Package flagstate implements the bootstrap representation returned by
// AllFlagsState: every flag's current value for a user, suitable for serializing to
// a client-side SDK.
package flagstate

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Option modifies what AllFlagsState includes.
type Option int

const (
	// ClientSideOnly restricts the result to flags marked visible to client-side SDKs.
	ClientSideOnly Option = iota
	// WithReasons includes each flag's evaluation reason.
	WithReasons
	// DetailsOnlyForTrackedFlags omits version/variation/reason/trackEvents metadata
	// for flags that aren't marked for event tracking, to keep the payload small.
	DetailsOnlyForTrackedFlags
)

// HasOption reports whether options contains want.
func HasOption(options []Option, want Option) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

type flagMeta struct {
	Value                ldvalue.Value
	Variation            *int
	HasDetail            bool
	Version              int
	Reason               *ldreason.EvaluationReason
	TrackEvents          bool
	TrackReason          bool
	DebugEventsUntilDate *int64
}

func (m flagMeta) writeToJSONWriter(w *jwriter.Writer) {
	obj := w.Object()
	if m.Variation != nil {
		obj.Name("variation").Int(*m.Variation)
	}
	if m.HasDetail {
		obj.Name("version").Int(m.Version)
	}
	if m.Reason != nil {
		m.Reason.WriteToJSONWriter(obj.Name("reason"))
	}
	obj.Maybe("trackEvents", m.TrackEvents).Bool(true)
	obj.Maybe("trackReason", m.TrackReason).Bool(true)
	debugEventsUntilDate := float64(0)
	if m.DebugEventsUntilDate != nil {
		debugEventsUntilDate = float64(*m.DebugEventsUntilDate)
	}
	obj.Maybe("debugEventsUntilDate", m.DebugEventsUntilDate != nil).Float64(debugEventsUntilDate)
	obj.End()
}

// AllFlags is the full result of an AllFlagsState call: every evaluated flag's
// value, plus an overall validity bit (false if the state could not be computed at
// all, e.g. the store had not been initialized yet).
type AllFlags struct {
	valid bool
	flags map[string]flagMeta
}

// Valid reports whether the state could be computed.
func (a AllFlags) Valid() bool { return a.valid }

// GetValue returns the value recorded for key, or Null if key was never added.
func (a AllFlags) GetValue(key string) ldvalue.Value {
	if m, ok := a.flags[key]; ok {
		return m.Value
	}
	return ldvalue.Null()
}

// ToValuesMap returns a plain key/value snapshot, discarding all per-flag metadata.
func (a AllFlags) ToValuesMap() map[string]ldvalue.Value {
	result := make(map[string]ldvalue.Value, len(a.flags))
	for k, m := range a.flags {
		result[k] = m.Value
	}
	return result
}

// Builder accumulates flag results for AllFlagsState.
type Builder struct {
	state                AllFlags
	detailsOnlyIfTracked bool
	withReasons          bool
}

// NewBuilder creates a Builder. detailsOnlyIfTracked mirrors the
// DetailsOnlyForTrackedFlags option; withReasons mirrors the WithReasons option.
func NewBuilder(detailsOnlyIfTracked, withReasons bool) *Builder {
	return &Builder{
		state:                AllFlags{valid: true, flags: make(map[string]flagMeta)},
		detailsOnlyIfTracked: detailsOnlyIfTracked,
		withReasons:          withReasons,
	}
}

// AddFlag records one flag's evaluation result. trackReason marks that this
// particular evaluation matched the flag's fallthrough while TrackEventsFallthrough
// is set, which forces the reason to be included even when WithReasons was not
// requested (the flag is being experimented on).
func (b *Builder) AddFlag(
	key string,
	value ldvalue.Value,
	variationIndex int,
	version int,
	reason ldreason.EvaluationReason,
	trackEvents bool,
	trackReason bool,
	debugEventsUntilDate *int64,
) {
	meta := flagMeta{Value: value, TrackEvents: trackEvents, TrackReason: trackReason, DebugEventsUntilDate: debugEventsUntilDate}
	omitDetail := b.detailsOnlyIfTracked && !trackEvents && !trackReason && debugEventsUntilDate == nil
	if !omitDetail {
		meta.HasDetail = true
		if variationIndex >= 0 {
			v := variationIndex
			meta.Variation = &v
		}
		meta.Version = version
		if b.withReasons || trackReason {
			r := reason
			meta.Reason = &r
		}
	}
	b.state.flags[key] = meta
}

// Build finalizes the accumulated state.
func (b *Builder) Build() AllFlags {
	return b.state
}

// Invalid returns a state representing a failed AllFlagsState call.
func Invalid() AllFlags {
	return AllFlags{valid: false}
}

// MarshalJSON renders the well-known client-side bootstrap shape: each flag's value
// inline at the top level, plus "$flagsState" holding per-flag metadata and
// "$valid" holding the overall validity bit.
func (a AllFlags) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	for key, meta := range a.flags {
		meta.Value.WriteToJSONWriter(obj.Name(key))
	}
	stateObj := obj.Name("$flagsState").Object()
	for key, meta := range a.flags {
		meta.writeToJSONWriter(stateObj.Name(key))
	}
	stateObj.End()
	obj.Name("$valid").Bool(a.valid)
	obj.End()
	return w.Bytes(), nil
}
