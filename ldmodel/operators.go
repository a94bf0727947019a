package ldmodel

import (
	"regexp"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Operator is the name of a clause match operator, as it appears on the wire.
type Operator string

// Operator names recognized by the evaluation engine. segmentMatch is deliberately
// absent: it is handled specially by the evaluator, never dispatched through the
// operator table.
const (
	OperatorIn                  Operator = "in"
	OperatorEndsWith            Operator = "endsWith"
	OperatorStartsWith          Operator = "startsWith"
	OperatorMatches             Operator = "matches"
	OperatorContains            Operator = "contains"
	OperatorLessThan            Operator = "lessThan"
	OperatorLessThanOrEqual     Operator = "lessThanOrEqual"
	OperatorGreaterThan         Operator = "greaterThan"
	OperatorGreaterThanOrEqual  Operator = "greaterThanOrEqual"
	OperatorBefore              Operator = "before"
	OperatorAfter               Operator = "after"
	OperatorSemVerEqual         Operator = "semVerEqual"
	OperatorSemVerLessThan      Operator = "semVerLessThan"
	OperatorSemVerGreaterThan   Operator = "semVerGreaterThan"
	OperatorSegmentMatch        Operator = "segmentMatch"
)

// opFn is a single operator's match function: does userValue match clauseValue?
type opFn func(userValue, clauseValue ldvalue.Value) bool

// operators maps operator names to their match functions. Unknown operators are not
// present in this map; callers MUST treat a missing entry as "always false", not as
// an error.
var operators = map[Operator]opFn{
	OperatorIn:                 operatorInFn,
	OperatorEndsWith:           stringOperator(strings.HasSuffix),
	OperatorStartsWith:         stringOperator(strings.HasPrefix),
	OperatorMatches:            operatorMatchesFn,
	OperatorContains:           stringOperator(strings.Contains),
	OperatorLessThan:           numericOperator(func(a, b float64) bool { return a < b }),
	OperatorLessThanOrEqual:    numericOperator(func(a, b float64) bool { return a <= b }),
	OperatorGreaterThan:        numericOperator(func(a, b float64) bool { return a > b }),
	OperatorGreaterThanOrEqual: numericOperator(func(a, b float64) bool { return a >= b }),
	OperatorBefore:             dateOperator(func(a, b time.Time) bool { return a.Before(b) }),
	OperatorAfter:              dateOperator(func(a, b time.Time) bool { return a.After(b) }),
	OperatorSemVerEqual:        semVerOperator(func(c int) bool { return c == 0 }),
	OperatorSemVerLessThan:     semVerOperator(func(c int) bool { return c < 0 }),
	OperatorSemVerGreaterThan:  semVerOperator(func(c int) bool { return c > 0 }),
}

// OperatorFn looks up the match function for an operator name. The boolean result is
// false for unknown operators, in which case the returned function must not be called.
func OperatorFn(op Operator) (opFn, bool) {
	fn, ok := operators[op]
	return fn, ok
}

// operatorInFn implements the "in" operator: strict value equality, with no implicit
// type coercion between e.g. numbers and numeric strings.
func operatorInFn(userValue, clauseValue ldvalue.Value) bool {
	return userValue.Equal(clauseValue)
}

func stringOperator(fn func(s, substr string) bool) opFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		a, aOK := asString(userValue)
		b, bOK := asString(clauseValue)
		if !aOK || !bOK {
			return false
		}
		return fn(a, b)
	}
}

func operatorMatchesFn(userValue, clauseValue ldvalue.Value) bool {
	a, aOK := asString(userValue)
	b, bOK := asString(clauseValue)
	if !aOK || !bOK {
		return false
	}
	matched, err := regexp.MatchString(b, a)
	if err != nil {
		return false
	}
	return matched
}

func numericOperator(fn func(a, b float64) bool) opFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		if userValue.Type() != ldvalue.NumberType || clauseValue.Type() != ldvalue.NumberType {
			return false
		}
		return fn(userValue.Float64Value(), clauseValue.Float64Value())
	}
}

func dateOperator(fn func(a, b time.Time) bool) opFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		a, aOK := parseDateTime(userValue)
		b, bOK := parseDateTime(clauseValue)
		if !aOK || !bOK {
			return false
		}
		return fn(a, b)
	}
}

func parseDateTime(value ldvalue.Value) (time.Time, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		t, err := time.Parse(time.RFC3339Nano, value.StringValue())
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case ldvalue.NumberType:
		ms := value.Float64Value()
		return time.UnixMilli(int64(ms)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func semVerOperator(accept func(cmp int) bool) opFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		a, aOK := parseSemVer(userValue)
		b, bOK := parseSemVer(clauseValue)
		if !aOK || !bOK {
			return false
		}
		return accept(a.Compare(b))
	}
}

func parseSemVer(value ldvalue.Value) (semver.Version, bool) {
	if value.Type() != ldvalue.StringType {
		return semver.Version{}, false
	}
	s := value.StringValue()
	v, err := semver.Parse(s)
	if err != nil {
		// Allow a shorthand such as "2.0" by zero-filling missing components, matching
		// the leniency of peer SDKs' semver coercion.
		parts := strings.Split(s, ".")
		for len(parts) < 3 {
			parts = append(parts, "0")
		}
		v, err = semver.Parse(strings.Join(parts[:3], "."))
		if err != nil {
			return semver.Version{}, false
		}
	}
	return v, true
}

func asString(value ldvalue.Value) (string, bool) {
	if value.Type() != ldvalue.StringType {
		return "", false
	}
	return value.StringValue(), true
}
