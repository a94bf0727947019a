package store

import (
	"sync"

	"github.com/launchdarkly/go-flagcore/ldstoretypes"
	"github.com/launchdarkly/go-flagcore/subsystems"
)

// StatusTracker adapts a DataStore into a subsystems.DataSourceUpdates, additionally
// recording the latest connection state and error so a client facade can expose them
// (e.g. for WaitForInitialization or a status listener) without the store itself
// needing to know about streaming or polling.
type StatusTracker struct {
	store DataStore

	mu      sync.Mutex
	cond    *sync.Cond
	state   subsystems.DataSourceState
	lastErr subsystems.DataSourceErrorInfo
}

// NewStatusTracker wraps store, starting in the IDLE state.
func NewStatusTracker(store DataStore) *StatusTracker {
	t := &StatusTracker{store: store, state: subsystems.DataSourceStateIdle}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Init implements subsystems.DataSourceUpdates.
func (t *StatusTracker) Init(allData []ldstoretypes.Collection) error {
	return t.store.Init(allData)
}

// Upsert implements subsystems.DataSourceUpdates.
func (t *StatusTracker) Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) error {
	_, err := t.store.Upsert(kind, key, item)
	return err
}

// UpdateStatus implements subsystems.DataSourceUpdates, recording the new state and
// waking any goroutine blocked in WaitFor.
func (t *StatusTracker) UpdateStatus(newState subsystems.DataSourceState, newError subsystems.DataSourceErrorInfo) {
	t.mu.Lock()
	t.state = newState
	if newError.Kind != "" {
		t.lastErr = newError
	}
	t.mu.Unlock()
	t.cond.Broadcast()
}

// State returns the most recently reported connection state.
func (t *StatusTracker) State() subsystems.DataSourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the most recently reported error, if any.
func (t *StatusTracker) LastError() subsystems.DataSourceErrorInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// WaitFor blocks the calling goroutine until the state becomes one of targets, then
// returns it. Callers that need a timeout should race this against their own timer by
// calling WaitFor from a separate goroutine and selecting on a result channel.
func (t *StatusTracker) WaitFor(targets ...subsystems.DataSourceState) subsystems.DataSourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		for _, want := range targets {
			if t.state == want {
				return t.state
			}
		}
		t.cond.Wait()
	}
}
