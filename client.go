// Package flagcore wires the data store, evaluation engine, and update processor
// together behind the small surface an application actually calls: Variation,
// VariationDetail, AllFlagsState, Initialized, WaitForInitialization, Close (C10).
package flagcore

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-flagcore/eval"
	"github.com/launchdarkly/go-flagcore/flagstate"
	"github.com/launchdarkly/go-flagcore/lduser"
	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/polling"
	"github.com/launchdarkly/go-flagcore/requestor"
	"github.com/launchdarkly/go-flagcore/store"
	"github.com/launchdarkly/go-flagcore/streaming"
	"github.com/launchdarkly/go-flagcore/subsystems"
)

// FlagsStateOption, and the three recognized values, alias the flagstate package so
// callers only need to import this package for the common case.
type FlagsStateOption = flagstate.Option

// FlagsState is the result of AllFlagsState.
type FlagsState = flagstate.AllFlags

const (
	ClientSideOnly             = flagstate.ClientSideOnly
	WithReasons                = flagstate.WithReasons
	DetailsOnlyForTrackedFlags = flagstate.DetailsOnlyForTrackedFlags
)

// updateProcessor is the minimal surface both the streaming and polling processors
// offer to Client.
type updateProcessor interface {
	Start(cb func(error))
	Close() error
}

// Client is a single store/evaluator/update-source triad: exactly one active
// streaming or polling connection, backed by exactly one store.
type Client struct {
	config  Config
	loggers ldlog.Loggers

	broadcaster *store.BroadcastingStore
	provider    store.Provider
	status      *store.StatusTracker
	processor   updateProcessor

	readyOnce sync.Once
	readyCh   chan struct{}
	readyErr  error
}

// New constructs and starts a Client. It returns as soon as construction validates,
// without blocking for the store to initialize; use WaitForInitialization (or race
// Initialized()) to wait for the first successful sync.
func New(config Config) (*Client, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	loggers := config.Loggers
	loggers.SetPrefix("go-flagcore")

	memStore := store.NewMemoryStore()
	broadcaster := store.NewBroadcastingStore(memStore)
	status := store.NewStatusTracker(broadcaster)

	c := &Client{
		config:      config,
		loggers:     loggers,
		broadcaster: broadcaster,
		provider:    store.NewProvider(broadcaster),
		status:      status,
		readyCh:     make(chan struct{}),
	}

	if config.Offline {
		if err := broadcaster.Init(nil); err != nil {
			return nil, err
		}
		status.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{})
		c.signalReady(nil)
		return c, nil
	}

	httpClient, err := requestor.NewHTTPClient(config.Transport, config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("building HTTP transport: %w", err)
	}
	headers := defaultHeaders(config)

	req := requestor.NewRequestor(httpClient, config.BaseURI, headers, true)

	if config.Stream {
		sp := streaming.NewStreamProcessor(config.StreamURI, httpClient, headers, status, req, loggers)
		sp.SetInitialRetryDelay(config.StreamInitialReconnectDelay)
		c.processor = sp
	} else {
		c.processor = polling.NewPollingProcessor(req, status, config.PollInterval, loggers)
	}

	c.processor.Start(c.signalReady)

	return c, nil
}

// signalReady marks the client ready exactly once, recording the first error (if any)
// reported by the update processor.
func (c *Client) signalReady(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.readyCh)
	})
}

func defaultHeaders(config Config) http.Header {
	headers := make(http.Header)
	headers.Set("Authorization", config.SDKKey)
	userAgent := config.userAgent()
	headers.Set("User-Agent", userAgent)
	if config.WrapperName != "" {
		wrapper := config.WrapperName
		if config.WrapperVersion != "" {
			wrapper = wrapper + "/" + config.WrapperVersion
		}
		headers.Add("X-LaunchDarkly-Wrapper", wrapper)
	}
	return headers
}

// Initialized reports whether the store has received at least one full sync.
func (c *Client) Initialized() bool {
	return c.broadcaster.IsInitialized()
}

// WaitForInitialization blocks until the first sync completes (successfully or not)
// or timeout elapses, whichever comes first.
func (c *Client) WaitForInitialization(timeout time.Duration) (*Client, error) {
	select {
	case <-c.readyCh:
		return c, c.readyErr
	case <-time.After(timeout):
		return c, fmt.Errorf("timed out waiting for client initialization after %s", timeout)
	}
}

// Variation evaluates a flag, returning only its value; defaultValue is returned for
// every kind of evaluation error.
func (c *Client) Variation(key string, user lduser.User, defaultValue ldvalue.Value) ldvalue.Value {
	detail := c.VariationDetail(key, user, defaultValue)
	return detail.Value
}

// VariationDetail evaluates a flag, returning its value, variation index, and
// reason.
func (c *Client) VariationDetail(key string, user lduser.User, defaultValue ldvalue.Value) ldreason.EvaluationDetail {
	if !c.broadcaster.IsInitialized() {
		c.loggers.Warn("VariationDetail called before client initialization; data store not available")
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorClientNotReady, defaultValue)
	}
	flag, ok := c.provider.GetFlag(key)
	if !ok {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorFlagNotFound, defaultValue)
	}
	detail, _, err := eval.Evaluate(flag, user, c.provider)
	if err != nil {
		c.loggers.Errorf("error evaluating flag %q: %s", key, err)
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorException, defaultValue)
	}
	if detail.VariationIndex < 0 {
		return ldreason.NewEvaluationDetail(defaultValue, -1, detail.Reason)
	}
	return detail
}

// AllFlagsState evaluates every flag in the store for user, per the given options.
func (c *Client) AllFlagsState(user lduser.User, options ...FlagsStateOption) FlagsState {
	if !c.broadcaster.IsInitialized() {
		c.loggers.Warn("AllFlagsState called before client initialization; data store not available")
		return flagstate.Invalid()
	}

	items, err := c.broadcaster.GetAll(ldmodel.Features)
	if err != nil {
		c.loggers.Errorf("unable to fetch flags from data store: %s", err)
		return flagstate.Invalid()
	}

	clientSideOnly := flagstate.HasOption(options, ClientSideOnly)
	withReasons := flagstate.HasOption(options, WithReasons)
	detailsOnlyIfTracked := flagstate.HasOption(options, DetailsOnlyForTrackedFlags)

	builder := flagstate.NewBuilder(detailsOnlyIfTracked, withReasons)
	for _, item := range items {
		flag, ok := item.Item.Item.(*ldmodel.FeatureFlag)
		if !ok || flag == nil {
			continue
		}
		if clientSideOnly && !flag.ClientSide {
			continue
		}
		detail, _, err := eval.Evaluate(flag, user, c.provider)
		if err != nil {
			continue
		}
		trackReason := flag.TrackEventsFallthrough && detail.Reason.GetKind() == ldreason.EvalReasonFallthrough
		builder.AddFlag(flag.Key, detail.Value, detail.VariationIndex, flag.Version, detail.Reason, flag.TrackEvents, trackReason, flag.DebugEventsUntilDate)
	}
	return builder.Build()
}

// Close shuts down the update processor and releases the store.
func (c *Client) Close() error {
	if c.processor != nil {
		if err := c.processor.Close(); err != nil {
			return err
		}
	}
	return c.broadcaster.Close()
}
