package polling

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-flagcore/ldstoretypes"
	"github.com/launchdarkly/go-flagcore/requestor"
	"github.com/launchdarkly/go-flagcore/subsystems"
)

func silentLoggers() ldlog.Loggers {
	loggers := ldlog.Loggers{}
	discard := log.New(io.Discard, "", 0)
	loggers.SetBaseLoggerForLevel(ldlog.Debug, discard)
	loggers.SetBaseLoggerForLevel(ldlog.Info, discard)
	loggers.SetBaseLoggerForLevel(ldlog.Warn, discard)
	loggers.SetBaseLoggerForLevel(ldlog.Error, discard)
	return loggers
}

type fakeUpdates struct {
	mu     sync.Mutex
	inits  int
	states []subsystems.DataSourceState
}

func (f *fakeUpdates) Init(allData []ldstoretypes.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakeUpdates) Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) error {
	return nil
}

func (f *fakeUpdates) UpdateStatus(newState subsystems.DataSourceState, newError subsystems.DataSourceErrorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, newState)
}

func (f *fakeUpdates) lastState() subsystems.DataSourceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return ""
	}
	return f.states[len(f.states)-1]
}

func (f *fakeUpdates) initCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

func TestNewPollingProcessorClampsInterval(t *testing.T) {
	req := requestor.NewRequestor(http.DefaultClient, "http://example.com", nil, false)
	p := NewPollingProcessor(req, &fakeUpdates{}, time.Second, silentLoggers())
	assert.Equal(t, MinPollInterval, p.interval)
}

func TestPollingProcessorSignalsOnceOnFirstSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flags":{},"segments":{}}`))
	}))
	defer server.Close()

	req := requestor.NewRequestor(server.Client(), server.URL, nil, false)
	fake := &fakeUpdates{}
	p := NewPollingProcessor(req, fake, MinPollInterval, silentLoggers())

	var calls int
	var mu sync.Mutex
	done := make(chan struct{})
	p.Start(func(err error) {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.NoError(t, err)
		close(done)
	})
	defer p.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("initialization callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, subsystems.DataSourceStateValid, fake.lastState())
	assert.Equal(t, 1, fake.initCount())
}

func TestPollingProcessorStopsOnNonRecoverableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	req := requestor.NewRequestor(server.Client(), server.URL, nil, false)
	fake := &fakeUpdates{}
	p := NewPollingProcessor(req, fake, MinPollInterval, silentLoggers())

	done := make(chan error, 1)
	p.Start(func(err error) { done <- err })
	defer p.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("initialization callback never fired")
	}
	assert.Equal(t, subsystems.DataSourceStateOff, fake.lastState())
}

func TestPollingProcessorCloseIsIdempotent(t *testing.T) {
	req := requestor.NewRequestor(http.DefaultClient, "http://example.com", nil, false)
	p := NewPollingProcessor(req, &fakeUpdates{}, MinPollInterval, silentLoggers())
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}
