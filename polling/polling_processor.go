// Package polling implements the alternative, ticker-based update processor (C7),
// used when streaming is disabled.
package polling

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-flagcore/requestor"
	"github.com/launchdarkly/go-flagcore/subsystems"
)

// MinPollInterval is the floor on the polling interval: configuring a shorter
// interval is clamped to this value.
const MinPollInterval = 30 * time.Second

// PollingProcessor repeatedly fetches full snapshots from a Requestor at a fixed
// interval and applies them to a store.
type PollingProcessor struct {
	requestor *requestor.Requestor
	store     subsystems.DataSourceUpdates
	interval  time.Duration
	loggers   ldlog.Loggers

	closeOnce sync.Once
	halt      chan struct{}
}

// NewPollingProcessor builds a PollingProcessor. interval is clamped to
// MinPollInterval.
func NewPollingProcessor(
	req *requestor.Requestor,
	store subsystems.DataSourceUpdates,
	interval time.Duration,
	loggers ldlog.Loggers,
) *PollingProcessor {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &PollingProcessor{
		requestor: req,
		store:     store,
		interval:  interval,
		loggers:   loggers,
		halt:      make(chan struct{}),
	}
}

// Start begins polling in a new goroutine. cb is called exactly once: with nil on
// the first successful poll, or with a non-nil error on the first non-recoverable
// failure (after which polling stops).
func (p *PollingProcessor) Start(cb func(error)) {
	go p.run(cb)
}

// Close stops polling. It is idempotent.
func (p *PollingProcessor) Close() error {
	p.closeOnce.Do(func() { close(p.halt) })
	return nil
}

func (p *PollingProcessor) run(cb func(error)) {
	var once sync.Once
	signal := func(err error) { once.Do(func() { cb(err) }) }

	p.store.UpdateStatus(subsystems.DataSourceStateConnecting, subsystems.DataSourceErrorInfo{})

	if p.poll(signal) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if p.poll(signal) {
				return
			}
		case <-p.halt:
			return
		}
	}
}

// poll runs one fetch-and-apply cycle, returning true if polling should stop (a
// non-recoverable error occurred).
func (p *PollingProcessor) poll(signal func(error)) bool {
	collections, cached, err := p.requestor.RequestAllData()
	if err != nil {
		statusErr, ok := err.(requestor.HTTPStatusError)
		if ok && !requestor.Recoverable(statusErr.StatusCode) {
			p.loggers.Errorf("polling request failed with non-recoverable status: %s", err)
			p.store.UpdateStatus(subsystems.DataSourceStateOff, subsystems.DataSourceErrorInfo{
				Kind:       subsystems.DataSourceErrorKindErrorResponse,
				StatusCode: statusErr.StatusCode,
				Message:    err.Error(),
				Time:       time.Now(),
			})
			signal(err)
			return true
		}
		p.loggers.Warnf("polling request failed, will retry: %s", err)
		p.store.UpdateStatus(subsystems.DataSourceStateInterrupted, subsystems.DataSourceErrorInfo{
			Kind:    subsystems.DataSourceErrorKindNetworkError,
			Message: err.Error(),
			Time:    time.Now(),
		})
		return false
	}
	if cached {
		p.store.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{})
		signal(nil)
		return false
	}
	if err := p.store.Init(collections); err != nil {
		p.loggers.Errorf("polling response could not be applied: %s", err)
		p.store.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{
			Kind:    subsystems.DataSourceErrorKindInvalidData,
			Message: err.Error(),
			Time:    time.Now(),
		})
		return false
	}
	p.store.UpdateStatus(subsystems.DataSourceStateValid, subsystems.DataSourceErrorInfo{})
	signal(nil)
	return false
}
