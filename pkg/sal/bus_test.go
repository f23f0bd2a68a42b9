package sal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	topics := Topics{Root: "lsst/sal", Name: "FiberSpectrograph", Index: 2}
	assert.Equal(t, "lsst/sal/FiberSpectrograph:2/cmd/expose", topics.Command("expose"))
	assert.Equal(t, "lsst/sal/FiberSpectrograph:2/ack/expose", topics.Ack("expose"))
	assert.Equal(t, "lsst/sal/FiberSpectrograph:2/evt/summaryState", topics.Event("summaryState"))
	assert.Equal(t, "lsst/sal/FiberSpectrograph:2/tel/temperature", topics.Telemetry("temperature"))
}

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var got TemperatureTelemetry
	received := false
	require.NoError(t, bus.Subscribe("tel/temperature", func(topic string, payload []byte) {
		received = true
		require.NoError(t, json.Unmarshal(payload, &got))
	}))

	require.NoError(t, bus.Publish("tel/temperature", TemperatureTelemetry{Temperature: 5.1, Setpoint: 5.0}))
	require.True(t, received)
	assert.Equal(t, 5.1, got.Temperature)
	assert.Equal(t, 5.0, got.Setpoint)

	// no subscriber: publish succeeds and is dropped
	require.NoError(t, bus.Publish("tel/other", TemperatureTelemetry{}))

	require.NoError(t, bus.Unsubscribe("tel/temperature"))
	received = false
	require.NoError(t, bus.Publish("tel/temperature", TemperatureTelemetry{}))
	assert.False(t, received)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "STANDBY", Standby.String())
	assert.Equal(t, "ENABLED", Enabled.String())
	assert.Equal(t, "INTEGRATING", Integrating.String())
	assert.Equal(t, "TIMEDOUT", TimedOut.String())
}
