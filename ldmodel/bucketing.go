package ldmodel

import (
	"crypto/sha1" //nolint:gosec // required for wire-compatible bucketing, not for security
	"encoding/hex"
	"strconv"

	"github.com/launchdarkly/go-flagcore/lduser"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// longScale is 2^60 - 1, the denominator used to normalize the leading 15 hex digits
// of the bucketing hash into the range [0, 1).
const longScale = float64(0xFFFFFFFFFFFFFFF)

// Bucket computes the deterministic bucket value for a user under a given rollout
// scope (a flag or segment key), attribute, and salt. The result is in [0, 1).
//
// This formula is wire-interop critical: it must bit-match peer SDKs, so the hex
// truncation and integer parsing steps are exactly as specified rather than
// simplified.
func Bucket(user lduser.User, scopeKey, attr, salt string) float64 {
	idHash, ok := bucketableStringValue(user.GetAttribute(attr))
	if !ok {
		return 0
	}
	if user.Secondary.IsDefined() {
		idHash = idHash + "." + user.Secondary.StringValue()
	}

	h := sha1.New() //nolint:gosec
	_, _ = h.Write([]byte(scopeKey + "." + salt + "." + idHash))
	hash := hex.EncodeToString(h.Sum(nil))[:15]

	intVal, err := strconv.ParseUint(hash, 16, 64)
	if err != nil {
		return 0
	}
	return float64(intVal) / longScale
}

// bucketableStringValue renders a value as a bucketing identifier: strings pass
// through, integers are rendered in base 10, and everything else (including floats)
// is not bucketable.
func bucketableStringValue(value ldvalue.Value) (string, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		return value.StringValue(), true
	case ldvalue.NumberType:
		if value.IsInt() {
			return strconv.Itoa(value.IntValue()), true
		}
		return "", false
	default:
		return "", false
	}
}
