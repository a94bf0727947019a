package subsystems

import (
	"time"

	"github.com/launchdarkly/go-flagcore/ldstoretypes"
)

// DataSourceState describes the current connection state of a streaming or polling
// update processor, matching the IDLE → CONNECTING → OPEN → (CLOSED | RECONNECTING)
// lifecycle.
type DataSourceState string

// The recognized DataSourceState values.
const (
	DataSourceStateIdle        DataSourceState = "IDLE"
	DataSourceStateConnecting  DataSourceState = "CONNECTING"
	DataSourceStateValid       DataSourceState = "OPEN"
	DataSourceStateInterrupted DataSourceState = "RECONNECTING"
	DataSourceStateOff         DataSourceState = "CLOSED"
)

// DataSourceErrorKind classifies why a data source reported an error.
type DataSourceErrorKind string

// The recognized DataSourceErrorKind values.
const (
	// DataSourceErrorKindNetworkError means the source could not connect or the
	// connection was dropped at the transport level.
	DataSourceErrorKindNetworkError DataSourceErrorKind = "NETWORK_ERROR"
	// DataSourceErrorKindErrorResponse means the server returned an HTTP error status.
	DataSourceErrorKindErrorResponse DataSourceErrorKind = "ERROR_RESPONSE"
	// DataSourceErrorKindInvalidData means a response body could not be parsed.
	DataSourceErrorKindInvalidData DataSourceErrorKind = "INVALID_DATA"
)

// DataSourceErrorInfo carries the details of the most recent data source error.
type DataSourceErrorInfo struct {
	Kind       DataSourceErrorKind
	StatusCode int
	Message    string
	Time       time.Time
}

// DataSourceUpdates is how a streaming or polling processor (C6/C7) applies data and
// reports its own status, without needing the rest of DataStore's surface (close,
// direct reads) or any dependency on the evaluator.
type DataSourceUpdates interface {
	// Init replaces the store's entire contents, as in a `put` event or a poll success.
	Init(allData []ldstoretypes.Collection) error

	// Upsert applies a single item, as in a `patch` event or an `indirect/patch` fetch.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) error

	// UpdateStatus reports a change in connection state and, for errors, the reason.
	UpdateStatus(newState DataSourceState, newError DataSourceErrorInfo)
}
