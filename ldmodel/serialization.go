package ldmodel

import (
	"encoding/json"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// wireFeatureFlag mirrors FeatureFlag's wire shape exactly (§3, §6) so that
// encoding/json can do the mechanical field-by-field work; UnmarshalFeatureFlag and
// MarshalFeatureFlag are the only functions that know about this intermediate shape.
// ldvalue.Value implements json.Marshaler/Unmarshaler itself, so clause and variation
// values need no special handling here.
type wireFeatureFlag struct {
	Key           string                 `json:"key"`
	Version       int                    `json:"version"`
	On            bool                   `json:"on"`
	Deleted       bool                   `json:"deleted,omitempty"`
	Salt          string                 `json:"salt"`
	OffVariation  *int                   `json:"offVariation"`
	Variations    []ldvalue.Value        `json:"variations"`
	Fallthrough   wireVariationOrRollout `json:"fallthrough"`
	Prerequisites []Prerequisite         `json:"prerequisites,omitempty"`
	Targets       []Target               `json:"targets,omitempty"`
	Rules         []wireFlagRule         `json:"rules,omitempty"`

	ClientSide             bool   `json:"clientSide,omitempty"`
	TrackEvents            bool   `json:"trackEvents,omitempty"`
	TrackEventsFallthrough bool   `json:"trackEventsFallthrough,omitempty"`
	DebugEventsUntilDate   *int64 `json:"debugEventsUntilDate,omitempty"`
}

type wireVariationOrRollout struct {
	Variation *int         `json:"variation,omitempty"`
	Rollout   *wireRollout `json:"rollout,omitempty"`
}

type wireRollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   *string             `json:"bucketBy,omitempty"`
}

type wireFlagRule struct {
	ID      string   `json:"id"`
	Clauses []Clause `json:"clauses"`
	wireVariationOrRollout
}

type wireSegment struct {
	Key      string            `json:"key"`
	Version  int               `json:"version"`
	Salt     string            `json:"salt"`
	Deleted  bool              `json:"deleted,omitempty"`
	Included []string          `json:"included,omitempty"`
	Excluded []string          `json:"excluded,omitempty"`
	Rules    []wireSegmentRule `json:"rules,omitempty"`
}

type wireSegmentRule struct {
	Clauses  []Clause `json:"clauses"`
	Weight   *int     `json:"weight,omitempty"`
	BucketBy *string  `json:"bucketBy,omitempty"`
}

// UnmarshalFeatureFlag decodes a single flag from its wire JSON representation. It is
// the single entry point used by both the full-put path and the patch path, so that
// the round-trip property in the testable-properties section holds by construction.
func UnmarshalFeatureFlag(data []byte) (FeatureFlag, error) {
	var w wireFeatureFlag
	if err := json.Unmarshal(data, &w); err != nil {
		return FeatureFlag{}, err
	}
	return flagFromWire(w), nil
}

// MarshalFeatureFlag encodes a flag back to its wire JSON representation.
func MarshalFeatureFlag(flag FeatureFlag) ([]byte, error) {
	return json.Marshal(flagToWire(flag))
}

// UnmarshalSegment decodes a single segment from its wire JSON representation.
func UnmarshalSegment(data []byte) (Segment, error) {
	var w wireSegment
	if err := json.Unmarshal(data, &w); err != nil {
		return Segment{}, err
	}
	return segmentFromWire(w), nil
}

// MarshalSegment encodes a segment back to its wire JSON representation.
func MarshalSegment(seg Segment) ([]byte, error) {
	return json.Marshal(segmentToWire(seg))
}

func flagFromWire(w wireFeatureFlag) FeatureFlag {
	rules := make([]FlagRule, 0, len(w.Rules))
	for _, r := range w.Rules {
		rules = append(rules, FlagRule{
			ID:                 r.ID,
			Clauses:            r.Clauses,
			VariationOrRollout: vrFromWire(r.wireVariationOrRollout),
		})
	}
	return FeatureFlag{
		Key:           w.Key,
		Version:       w.Version,
		On:            w.On,
		Deleted:       w.Deleted,
		Salt:          w.Salt,
		OffVariation:  w.OffVariation,
		Variations:    w.Variations,
		Fallthrough:   vrFromWire(w.Fallthrough),
		Prerequisites: w.Prerequisites,
		Targets:       w.Targets,
		Rules:         rules,

		ClientSide:             w.ClientSide,
		TrackEvents:            w.TrackEvents,
		TrackEventsFallthrough: w.TrackEventsFallthrough,
		DebugEventsUntilDate:   w.DebugEventsUntilDate,
	}
}

func flagToWire(f FeatureFlag) wireFeatureFlag {
	rules := make([]wireFlagRule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, wireFlagRule{
			ID:                     r.ID,
			Clauses:                r.Clauses,
			wireVariationOrRollout: vrToWire(r.VariationOrRollout),
		})
	}
	return wireFeatureFlag{
		Key:           f.Key,
		Version:       f.Version,
		On:            f.On,
		Deleted:       f.Deleted,
		Salt:          f.Salt,
		OffVariation:  f.OffVariation,
		Variations:    f.Variations,
		Fallthrough:   vrToWire(f.Fallthrough),
		Prerequisites: f.Prerequisites,
		Targets:       f.Targets,
		Rules:         rules,

		ClientSide:             f.ClientSide,
		TrackEvents:            f.TrackEvents,
		TrackEventsFallthrough: f.TrackEventsFallthrough,
		DebugEventsUntilDate:   f.DebugEventsUntilDate,
	}
}

func vrFromWire(w wireVariationOrRollout) VariationOrRollout {
	vr := VariationOrRollout{Variation: w.Variation}
	if w.Rollout != nil {
		vr.Rollout = &Rollout{Variations: w.Rollout.Variations, BucketBy: optString(w.Rollout.BucketBy)}
	}
	return vr
}

func vrToWire(vr VariationOrRollout) wireVariationOrRollout {
	w := wireVariationOrRollout{Variation: vr.Variation}
	if vr.Rollout != nil {
		w.Rollout = &wireRollout{Variations: vr.Rollout.Variations, BucketBy: rawOptString(vr.Rollout.BucketBy)}
	}
	return w
}

func segmentFromWire(w wireSegment) Segment {
	rules := make([]SegmentRule, 0, len(w.Rules))
	for _, r := range w.Rules {
		rules = append(rules, SegmentRule{
			Clauses:  r.Clauses,
			Weight:   r.Weight,
			BucketBy: optString(r.BucketBy),
		})
	}
	return Segment{
		Key:      w.Key,
		Version:  w.Version,
		Salt:     w.Salt,
		Deleted:  w.Deleted,
		Included: w.Included,
		Excluded: w.Excluded,
		Rules:    rules,
	}
}

func segmentToWire(s Segment) wireSegment {
	rules := make([]wireSegmentRule, 0, len(s.Rules))
	for _, r := range s.Rules {
		rules = append(rules, wireSegmentRule{
			Clauses:  r.Clauses,
			Weight:   r.Weight,
			BucketBy: rawOptString(r.BucketBy),
		})
	}
	return wireSegment{
		Key:      s.Key,
		Version:  s.Version,
		Salt:     s.Salt,
		Deleted:  s.Deleted,
		Included: s.Included,
		Excluded: s.Excluded,
		Rules:    rules,
	}
}

func optString(s *string) ldvalue.OptionalString {
	if s == nil {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(*s)
}

func rawOptString(o ldvalue.OptionalString) *string {
	if o.IsDefined() {
		s := o.StringValue()
		return &s
	}
	return nil
}
