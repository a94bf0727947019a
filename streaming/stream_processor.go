// Package streaming implements the SSE update processor (C6): one long-lived
// connection to the streaming endpoint, applying put/patch/delete/indirect events to
// a data store and signaling initialization exactly once.
package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/ldstoretypes"
	"github.com/launchdarkly/go-flagcore/requestor"
	"github.com/launchdarkly/go-flagcore/subsystems"
)

const (
	putEvent           = "put"
	patchEvent          = "patch"
	deleteEvent         = "delete"
	indirectPutEvent    = "indirect/put"
	indirectPatchEvent  = "indirect/patch"

	streamReadTimeout       = 5 * time.Minute
	defaultInitialRetry     = time.Second
	streamMaxRetryDelay     = 30 * time.Second
	streamRetryResetWindow  = 60 * time.Second
	streamJitterRatio       = 0.5
)

var allKinds = []ldstoretypes.DataKind{ldmodel.Features, ldmodel.Segments}

// putMessage is the payload of a `put` event.
type putMessage struct {
	Path string `json:"path"`
	Data putData `json:"data"`
}

type putData struct {
	Flags    map[string]json.RawMessage `json:"flags"`
	Segments map[string]json.RawMessage `json:"segments"`
}

// patchMessage is the payload of a `patch` event.
type patchMessage struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// deleteMessage is the payload of a `delete` event.
type deleteMessage struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// StreamProcessor owns the SSE connection and applies incoming events to a store.
type StreamProcessor struct {
	streamURI   string
	httpClient  *http.Client
	headers     http.Header
	store       subsystems.DataSourceUpdates
	requestor   *requestor.Requestor
	loggers     ldlog.Loggers
	initialRetryDelay time.Duration

	closeOnce sync.Once
	halt      chan struct{}
}

// NewStreamProcessor builds a StreamProcessor. streamURI is the base streaming URI;
// "/all" is appended. requestor is used to resolve indirect/put and indirect/patch
// events and may be shared with a polling processor.
func NewStreamProcessor(
	streamURI string,
	httpClient *http.Client,
	headers http.Header,
	store subsystems.DataSourceUpdates,
	req *requestor.Requestor,
	loggers ldlog.Loggers,
) *StreamProcessor {
	return &StreamProcessor{
		streamURI:         strings.TrimSuffix(streamURI, "/"),
		httpClient:        httpClient,
		headers:           headers,
		store:             store,
		requestor:         req,
		loggers:           loggers,
		initialRetryDelay: defaultInitialRetry,
		halt:              make(chan struct{}),
	}
}

// SetInitialRetryDelay overrides d0, the delay before the first reconnect attempt.
// It must be called before Start.
func (p *StreamProcessor) SetInitialRetryDelay(d time.Duration) {
	if d > 0 {
		p.initialRetryDelay = d
	}
}

// Start opens the connection and begins consuming events in a new goroutine. cb is
// called exactly once: with nil on the first successfully applied event, or with a
// non-nil error on the first non-recoverable failure. Later successes are silent;
// later errors are only reflected through UpdateStatus.
func (p *StreamProcessor) Start(cb func(error)) {
	go p.run(cb)
}

// Close tears down the stream. It is idempotent and issues no further callbacks.
func (p *StreamProcessor) Close() error {
	p.closeOnce.Do(func() { close(p.halt) })
	return nil
}

func (p *StreamProcessor) run(cb func(error)) {
	var once sync.Once
	signal := func(err error) { once.Do(func() { cb(err) }) }

	p.store.UpdateStatus(subsystems.DataSourceStateConnecting, subsystems.DataSourceErrorInfo{})

	errorHandler := func(err error) es.StreamErrorHandlerResult {
		if se, ok := err.(es.SubscriptionError); ok {
			if !requestor.Recoverable(se.Code) {
				p.loggers.Errorf("streaming connection failed with non-recoverable status %d", se.Code)
				p.store.UpdateStatus(subsystems.DataSourceStateOff, subsystems.DataSourceErrorInfo{
					Kind:       subsystems.DataSourceErrorKindErrorResponse,
					StatusCode: se.Code,
					Message:    err.Error(),
					Time:       time.Now(),
				})
				signal(fmt.Errorf("streaming connection failed: %w", err))
				return es.StreamErrorHandlerResult{CloseNow: true}
			}
			p.loggers.Warnf("streaming connection error, will retry: %s", err)
			p.store.UpdateStatus(subsystems.DataSourceStateInterrupted, subsystems.DataSourceErrorInfo{
				Kind:       subsystems.DataSourceErrorKindErrorResponse,
				StatusCode: se.Code,
				Message:    err.Error(),
				Time:       time.Now(),
			})
			return es.StreamErrorHandlerResult{CloseNow: false}
		}
		p.loggers.Warnf("streaming connection error, will retry: %s", err)
		p.store.UpdateStatus(subsystems.DataSourceStateInterrupted, subsystems.DataSourceErrorInfo{
			Kind:    subsystems.DataSourceErrorKindNetworkError,
			Message: err.Error(),
			Time:    time.Now(),
		})
		return es.StreamErrorHandlerResult{CloseNow: false}
	}

	req, err := http.NewRequest(http.MethodGet, p.streamURI+"/all", nil)
	if err != nil {
		signal(err)
		return
	}
	for k, vv := range p.headers {
		req.Header[k] = vv
	}

	client := p.httpClient
	clientCopy := *client
	clientCopy.Timeout = 0 // the read timeout below governs the whole stream, not just connect

	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(&clientCopy),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(p.initialRetryDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetWindow),
		es.StreamOptionErrorHandler(errorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionLogger(p.loggers.ForLevel(ldlog.Info)),
	)
	if err != nil {
		signal(err)
		return
	}

	p.consume(stream, signal)
}

func (p *StreamProcessor) consume(stream *es.Stream, signal func(error)) {
	defer func() {
		for range stream.Events { //nolint:revive // drain so the stream can be garbage collected
		}
	}()

	for {
		select {
		case event, ok := <-stream.Events:
			if !ok {
				return
			}
			p.dispatch(event, signal)
		case <-p.halt:
			stream.Close()
			return
		}
	}
}

func (p *StreamProcessor) dispatch(event es.Event, signal func(error)) {
	malformed := func(err error) {
		p.loggers.Errorf("received malformed %q event: %s", event.Event(), err)
		p.store.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{
			Kind:    subsystems.DataSourceErrorKindInvalidData,
			Message: err.Error(),
			Time:    time.Now(),
		})
	}

	switch event.Event() {
	case putEvent:
		var msg putMessage
		if err := json.Unmarshal([]byte(event.Data()), &msg); err != nil {
			malformed(err)
			return
		}
		if err := p.applyPut(msg.Data); err != nil {
			malformed(err)
			return
		}
		p.initialized(signal)

	case patchEvent:
		var msg patchMessage
		if err := json.Unmarshal([]byte(event.Data()), &msg); err != nil {
			malformed(err)
			return
		}
		kind, key, ok := routePath(msg.Path)
		if !ok {
			return
		}
		item, err := decodeItem(kind, msg.Data)
		if err != nil {
			malformed(err)
			return
		}
		if err := p.store.Upsert(kind, key, item); err != nil {
			malformed(err)
			return
		}
		p.initialized(signal)

	case deleteEvent:
		var msg deleteMessage
		if err := json.Unmarshal([]byte(event.Data()), &msg); err != nil {
			malformed(err)
			return
		}
		kind, key, ok := routePath(msg.Path)
		if !ok {
			return
		}
		if err := p.store.Upsert(kind, key, ldstoretypes.Deleted(msg.Version)); err != nil {
			malformed(err)
			return
		}
		p.initialized(signal)

	case indirectPutEvent:
		collections, _, err := p.requestor.RequestAllData()
		if err != nil {
			p.loggers.Errorf("indirect/put requestor call failed: %s", err)
			p.store.UpdateStatus(subsystems.DataSourceStateInterrupted, subsystems.DataSourceErrorInfo{
				Kind: subsystems.DataSourceErrorKindNetworkError, Message: err.Error(), Time: time.Now(),
			})
			return
		}
		if err := p.store.Init(collections); err != nil {
			malformed(err)
			return
		}
		p.initialized(signal)

	case indirectPatchEvent:
		path := event.Data()
		kind, key, ok := routePath(path)
		if !ok {
			return
		}
		item, err := p.requestor.RequestObject(kind, key)
		if err != nil {
			p.loggers.Errorf("indirect/patch requestor call failed: %s", err)
			p.store.UpdateStatus(subsystems.DataSourceStateInterrupted, subsystems.DataSourceErrorInfo{
				Kind: subsystems.DataSourceErrorKindNetworkError, Message: err.Error(), Time: time.Now(),
			})
			return
		}
		if err := p.store.Upsert(kind, key, item); err != nil {
			malformed(err)
			return
		}
		p.initialized(signal)

	default:
		p.loggers.Warnf("received unknown event type %q", event.Event())
	}
}

func (p *StreamProcessor) applyPut(data putData) error {
	flagItems := make([]ldstoretypes.KeyedItemDescriptor, 0, len(data.Flags))
	for key, raw := range data.Flags {
		flag, err := ldmodel.UnmarshalFeatureFlag(raw)
		if err != nil {
			return fmt.Errorf("flag %q: %w", key, err)
		}
		flagItems = append(flagItems, ldstoretypes.KeyedItemDescriptor{
			Key: key, Item: ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag},
		})
	}
	segmentItems := make([]ldstoretypes.KeyedItemDescriptor, 0, len(data.Segments))
	for key, raw := range data.Segments {
		segment, err := ldmodel.UnmarshalSegment(raw)
		if err != nil {
			return fmt.Errorf("segment %q: %w", key, err)
		}
		segmentItems = append(segmentItems, ldstoretypes.KeyedItemDescriptor{
			Key: key, Item: ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment},
		})
	}
	return p.store.Init([]ldstoretypes.Collection{
		{Kind: ldmodel.Features, Items: flagItems},
		{Kind: ldmodel.Segments, Items: segmentItems},
	})
}

func (p *StreamProcessor) initialized(signal func(error)) {
	p.store.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{})
	signal(nil)
}

func decodeItem(kind ldstoretypes.DataKind, raw json.RawMessage) (ldstoretypes.ItemDescriptor, error) {
	switch kind.Name {
	case ldmodel.Features.Name:
		flag, err := ldmodel.UnmarshalFeatureFlag(raw)
		if err != nil {
			return ldstoretypes.ItemDescriptor{}, err
		}
		return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
	case ldmodel.Segments.Name:
		segment, err := ldmodel.UnmarshalSegment(raw)
		if err != nil {
			return ldstoretypes.ItemDescriptor{}, err
		}
		return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
	default:
		return ldstoretypes.ItemDescriptor{}, fmt.Errorf("unrecognized data kind: %s", kind.Name)
	}
}

// routePath matches a streaming event's path against each kind's StreamAPIPath
// prefix, returning the remainder as the key. It reports ok=false if no kind matches,
// which callers treat as a silent no-op per the routing rule.
func routePath(path string) (ldstoretypes.DataKind, string, bool) {
	for _, kind := range allKinds {
		if strings.HasPrefix(path, kind.StreamAPIPath) {
			return kind, strings.TrimPrefix(path, kind.StreamAPIPath), true
		}
	}
	return ldstoretypes.DataKind{}, "", false
}
