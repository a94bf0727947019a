package flagcore

import (
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-flagcore/logging"
	"github.com/launchdarkly/go-flagcore/requestor"
)

const (
	defaultBaseURI   = "https://sdk.launchdarkly.com"
	defaultStreamURI = "https://stream.launchdarkly.com"

	// DefaultStreamInitialReconnectDelay is the default d0 from §4.6.
	DefaultStreamInitialReconnectDelay = time.Second
	// DefaultPollInterval is the default polling interval when Stream is false.
	DefaultPollInterval = 30 * time.Second
	// MinPollInterval mirrors polling.MinPollInterval; pollInterval below this is
	// clamped up to it.
	MinPollInterval = 30 * time.Second
	defaultTimeout  = 10 * time.Second
)

// Config holds every recognized construction option for a Client, matching the
// option set named in §9: stream (choose C6 vs C7), streamUri, baseUri,
// streamInitialReconnectDelay, pollInterval, timeout, proxy/TLS params, logger,
// offline, useLdd, wrapperName, wrapperVersion. useLdd, sendEvents and
// diagnosticOptOut are accepted (so existing option sets from a caller round-trip) but
// have no effect: persistent backends, analytics event delivery and diagnostics upload
// are out of scope.
type Config struct {
	// SDKKey authenticates every request; required unless Offline is true.
	SDKKey string

	// BaseURI is the REST polling/requestor base; defaults to the production
	// LaunchDarkly endpoint.
	BaseURI string
	// StreamURI is the streaming base; defaults to the production streaming
	// endpoint.
	StreamURI string

	// Stream selects the streaming processor (C6) when true, or the polling
	// processor (C7) when false (the zero value, and so the default for a caller
	// that does not set it explicitly).
	Stream bool
	// StreamInitialReconnectDelay is d0, honoring both a seconds and a milliseconds
	// form transparently: any value under 100 is treated as whole seconds, matching
	// the common shorthand for this option across LaunchDarkly SDKs.
	StreamInitialReconnectDelay time.Duration
	// PollInterval is used only when Stream is false; clamped to MinPollInterval.
	PollInterval time.Duration

	// Timeout bounds each individual HTTP request (not the streaming connection,
	// which has its own read-timeout/reconnect policy).
	Timeout time.Duration
	// Transport configures an optional forward proxy and additional CA
	// certificates, shared by the requestor and the streaming client.
	Transport requestor.TransportConfig

	// Loggers receives all diagnostic output; if left unset it defaults to
	// logging.GlobalLoggers, which writes info and warning output to standard output,
	// errors to standard error, and discards debug output.
	Loggers ldlog.Loggers

	// Offline, if true, never contacts the network: Initialized() is immediately
	// true against an empty store and every variation falls through to its default.
	Offline bool
	// UseLDD ("LaunchDarkly Daemon mode") is recognized so a caller's full option
	// set parses, but it has no effect: this core has no persistent backend adapter
	// for another process to populate, and the streaming or polling processor starts
	// whether or not it is set.
	UseLDD bool

	// WrapperName and WrapperVersion, if set, add an X-LaunchDarkly-Wrapper header
	// identifying a wrapping SDK.
	WrapperName    string
	WrapperVersion string

	// SendEvents and DiagnosticOptOut are recognized but unused: see the type
	// doc comment.
	SendEvents       bool
	DiagnosticOptOut bool
}

func (c Config) withDefaults() Config {
	if c.BaseURI == "" {
		c.BaseURI = defaultBaseURI
	}
	if c.StreamURI == "" {
		c.StreamURI = defaultStreamURI
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.StreamInitialReconnectDelay <= 0 {
		c.StreamInitialReconnectDelay = DefaultStreamInitialReconnectDelay
	} else if c.StreamInitialReconnectDelay < 100 {
		// A bare small integer is almost certainly meant as seconds, not
		// nanoseconds; see the open question on streamInitialReconnectDelay units.
		c.StreamInitialReconnectDelay *= time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if !c.Stream && c.PollInterval < MinPollInterval {
		c.PollInterval = MinPollInterval
	}
	if c.Loggers == (ldlog.Loggers{}) {
		c.Loggers = logging.GlobalLoggers
	}
	return c
}

func (c Config) validate() error {
	if c.Offline {
		return nil
	}
	if c.SDKKey == "" {
		return fmt.Errorf("SDK key is required unless Offline is set")
	}
	return nil
}

func (c Config) userAgent() string {
	agent := "go-flagcore"
	return agent
}
