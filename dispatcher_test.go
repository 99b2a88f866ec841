package pinkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pinkit/drivers"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func registryPinNames() []string {
	names := []string{}
	for _, desc := range Pins() {
		names = append(names, string(desc.ID))
	}
	return names
}

func testDispatcher() (*Dispatcher, *drivers.MockDevice) {
	device := drivers.NewMockDevice(registryPinNames())
	store := NewStateStore()
	return NewDispatcher(device, store, testLogger()), device
}

func TestSetPinInvalidPin(t *testing.T) {
	di, device := testDispatcher()

	result := di.SetPin(context.Background(), "D42", true)

	assertBools(t, result.Ok, false)
	if !errors.Is(result.Err, ErrInvalidPin) {
		t.Errorf("got error %v, want ErrInvalidPin", result.Err)
	}
	if device.SetCalls() != 0 {
		t.Error("invalid pin must be rejected before any device call")
	}
}

func TestSetPinSuccess(t *testing.T) {
	di, _ := testDispatcher()

	result := di.SetPin(context.Background(), "D6", true)

	assertBools(t, result.Ok, true)
	assertBools(t, result.Value, true)
	if len(result.Warning) > 0 {
		t.Errorf("unexpected warning: %s", result.Warning)
	}
	assertBools(t, di.AllStatus()["D6"], true)
}

func TestSetPinBootSensitiveWarnsButProceeds(t *testing.T) {
	di, device := testDispatcher()

	result := di.SetPin(context.Background(), "D3", true)

	assertBools(t, result.Ok, true)
	if len(result.Warning) == 0 {
		t.Error("boot sensitive pin should carry a warning")
	}
	if device.SetCalls() != 1 {
		t.Error("boot sensitive pin must still be toggled")
	}
}

func TestSetPinTransportFailure(t *testing.T) {
	di, device := testDispatcher()
	di.SetPin(context.Background(), "D4", false)
	device.FailPins = map[string]bool{"D4": true}

	result := di.SetPin(context.Background(), "D4", true)

	assertBools(t, result.Ok, false)
	if !errors.Is(result.Err, ErrTransport) {
		t.Errorf("got error %v, want ErrTransport", result.Err)
	}

	snap := di.Status()
	assertBools(t, snap.Pins["D4"].Value, false)
	assertBools(t, snap.Connection.Connected, false)
}

func TestSetPinIdempotent(t *testing.T) {
	di, _ := testDispatcher()

	first := di.SetPin(context.Background(), "D3", false)
	second := di.SetPin(context.Background(), "D3", false)

	assertBools(t, first.Ok, true)
	assertBools(t, second.Ok, true)
	if first.Warning != second.Warning {
		t.Error("warning should be present on both calls")
	}
	assertBools(t, di.AllStatus()["D3"], false)
}

func TestSetAll(t *testing.T) {
	di, _ := testDispatcher()

	results := di.SetAll(context.Background(), true)

	if len(results) != 9 {
		t.Fatalf("got %d results, want 9", len(results))
	}
	for i, desc := range Pins() {
		if results[i].Pin != desc.ID {
			t.Errorf("result %d: got pin %s want %s", i, results[i].Pin, desc.ID)
		}
		assertBools(t, results[i].Ok, true)
	}
	for pin, value := range di.AllStatus() {
		if !value {
			t.Errorf("pin %s not set", pin)
		}
	}
}

func TestSetAllPartialFailure(t *testing.T) {
	di, device := testDispatcher()
	di.SetAll(context.Background(), false)
	device.FailPins = map[string]bool{"D2": true, "D7": true}

	results := di.SetAll(context.Background(), true)

	failed := map[PinID]bool{}
	for _, result := range results {
		if !result.Ok {
			failed[result.Pin] = true
			if !errors.Is(result.Err, ErrTransport) {
				t.Errorf("pin %s: got error %v, want ErrTransport", result.Pin, result.Err)
			}
		}
	}
	if len(failed) != 2 || !failed["D2"] || !failed["D7"] {
		t.Errorf("got failed pins %v, want D2 and D7", failed)
	}

	states := di.AllStatus()
	assertBools(t, states["D2"], false)
	assertBools(t, states["D7"], false)
	assertBools(t, states["D0"], true)
	assertBools(t, states["D8"], true)
}

func TestAllStatusDoesNotPollDevice(t *testing.T) {
	di, device := testDispatcher()

	di.AllStatus()
	di.Status()

	if device.StatusCalls() != 0 {
		t.Error("status reads must be answered from the store cache")
	}
}

func TestStatusScenario(t *testing.T) {
	di, _ := testDispatcher()
	store := di.Store

	store.ApplyPoll(map[PinID]bool{"D5": true}, time.Now())

	states := di.AllStatus()
	assertBools(t, states["D5"], true)
	assertBools(t, states["D6"], false)

	result := di.SetPin(context.Background(), "D6", true)
	assertBools(t, result.Ok, true)

	states = di.AllStatus()
	assertBools(t, states["D5"], true)
	assertBools(t, states["D6"], true)
}
