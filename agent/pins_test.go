package agent

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubertat/pinkit"
	"github.com/hubertat/pinkit/drivers"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func testController() (*pinkit.Dispatcher, *drivers.MockDevice) {
	pins := []string{}
	for _, desc := range pinkit.Pins() {
		pins = append(pins, string(desc.ID))
	}
	device := drivers.NewMockDevice(pins)
	return pinkit.NewDispatcher(device, pinkit.NewStateStore(), testLogger()), device
}

func TestSetPinToolSuccess(t *testing.T) {
	controller, _ := testController()
	tool := &SetPinTool{Controller: controller}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pin":"d5","state":"ON"}`))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "D5")
	assert.Contains(t, result.Content, "ON")
	assert.True(t, controller.AllStatus()["D5"])
}

func TestSetPinToolBootSensitiveWarning(t *testing.T) {
	controller, _ := testController()
	tool := &SetPinTool{Controller: controller}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pin":"D3","state":"on"}`))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "boot sensitive")
}

func TestSetPinToolInvalidPin(t *testing.T) {
	controller, device := testController()
	tool := &SetPinTool{Controller: controller}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pin":"D42","state":"on"}`))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Available pins")
	assert.Zero(t, device.SetCalls())
}

func TestSetPinToolInvalidState(t *testing.T) {
	controller, device := testController()
	tool := &SetPinTool{Controller: controller}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pin":"D5","state":"blue"}`))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Zero(t, device.SetCalls())
}

func TestSetPinToolTransportFailure(t *testing.T) {
	controller, device := testController()
	device.FailPins = map[string]bool{"D4": true}
	tool := &SetPinTool{Controller: controller}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pin":"D4","state":"on"}`))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Failed to set D4")
}

func TestSetPinToolBadArguments(t *testing.T) {
	controller, _ := testController()
	tool := &SetPinTool{Controller: controller}

	_, err := tool.Execute(context.Background(), json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestPinStatusTool(t *testing.T) {
	controller, _ := testController()
	controller.Store.ApplyPoll(map[pinkit.PinID]bool{"D5": true}, time.Now())
	tool := &PinStatusTool{Controller: controller}

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "D5: ON")
	assert.Contains(t, result.Content, "D0: OFF")
	assert.NotContains(t, result.Content, "stale")
}

func TestPinStatusToolDisconnected(t *testing.T) {
	controller, _ := testController()
	controller.Store.ApplyPollFailure("down", time.Now())
	tool := &PinStatusTool{Controller: controller}

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Contains(t, result.Content, "stale")
}

func TestToolSchemas(t *testing.T) {
	controller, _ := testController()

	setTool := &SetPinTool{Controller: controller}
	statusTool := &PinStatusTool{Controller: controller}

	assert.Equal(t, "set_pin", setTool.Schema().Name)
	assert.Equal(t, "get_all_pin_status", statusTool.Schema().Name)

	for _, schema := range []ToolSchema{setTool.Schema(), statusTool.Schema()} {
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(schema.Parameters, &parsed), "schema %s parameters must be valid json", schema.Name)
		assert.Equal(t, "object", parsed["type"])
	}
}
