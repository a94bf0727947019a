package flagcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidateRequiresSDKKeyUnlessOffline(t *testing.T) {
	err := Config{}.validate()
	assert.Error(t, err)

	err = Config{SDKKey: "key"}.validate()
	assert.NoError(t, err)

	err = Config{Offline: true}.validate()
	assert.NoError(t, err)
}

func TestConfigWithDefaultsFillsEndpointsAndTimeouts(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, defaultBaseURI, c.BaseURI)
	assert.Equal(t, defaultStreamURI, c.StreamURI)
	assert.Equal(t, defaultTimeout, c.Timeout)
	assert.Equal(t, DefaultStreamInitialReconnectDelay, c.StreamInitialReconnectDelay)
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{BaseURI: "http://custom", StreamURI: "http://custom-stream", Timeout: 3 * time.Second}.withDefaults()
	assert.Equal(t, "http://custom", c.BaseURI)
	assert.Equal(t, "http://custom-stream", c.StreamURI)
	assert.Equal(t, 3*time.Second, c.Timeout)
}

func TestConfigStreamInitialReconnectDelayShorthandIsSeconds(t *testing.T) {
	c := Config{StreamInitialReconnectDelay: 5}.withDefaults()
	assert.Equal(t, 5*time.Second, c.StreamInitialReconnectDelay)
}

func TestConfigStreamInitialReconnectDelayLargeValueIsDurationAsIs(t *testing.T) {
	c := Config{StreamInitialReconnectDelay: 500 * time.Millisecond}.withDefaults()
	assert.Equal(t, 500*time.Millisecond, c.StreamInitialReconnectDelay)
}

func TestConfigPollIntervalClampedToMinimumWhenPolling(t *testing.T) {
	c := Config{Stream: false, PollInterval: time.Second}.withDefaults()
	assert.Equal(t, MinPollInterval, c.PollInterval)
}

func TestConfigPollIntervalNotClampedWhenStreaming(t *testing.T) {
	c := Config{Stream: true, PollInterval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, c.PollInterval)
}

func TestConfigDefaultsToPollingProcessorWhenStreamUnset(t *testing.T) {
	c := Config{}
	assert.False(t, c.Stream)
}
