package pinkit

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pinkit/drivers"
)

var ErrInvalidPin = errors.New("unknown pin")
var ErrTransport = errors.New("device transport failure")

// Result reports the outcome of a single set command.
type Result struct {
	Pin     PinID  `json:"pin"`
	Value   bool   `json:"value"`
	Ok      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
	Err     error  `json:"-"`
}

// Dispatcher is the single entry point for changing pin state. Manual
// toggles, the HomeKit bridge, mqtt set commands and the agent tools
// all end up here, with the same validation and store bookkeeping.
type Dispatcher struct {
	Device drivers.Device
	Store  *StateStore

	logger *log.Logger
}

func NewDispatcher(device drivers.Device, store *StateStore, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		Device: device,
		Store:  store,
		logger: logger.With("driver", device.String()),
	}
}

// SetPin validates the pin against the registry and forwards the
// command to the device. Boot sensitive pins are never blocked, the
// result only carries a warning. The device call happens outside of
// any store lock.
func (di *Dispatcher) SetPin(ctx context.Context, pin PinID, value bool) Result {
	result := Result{Pin: pin, Value: value}

	desc, found := Lookup(pin)
	if !found {
		result.Err = errors.Wrapf(ErrInvalidPin, "%s", pin)
		return result
	}
	if desc.BootSensitive {
		result.Warning = fmt.Sprintf("%s is boot sensitive: its level at power-up selects the boot mode", pin)
	}

	err := di.Device.Set(ctx, string(pin), value)
	now := time.Now()
	if err != nil {
		di.logger.Warn("set pin failed", "pin", pin, "value", value, "err", err)
		di.Store.ApplyCommandResult(pin, value, false, err.Error(), now)
		result.Err = errors.Wrapf(ErrTransport, "setting pin %s: %v", pin, err)
		return result
	}

	di.logger.Info("pin set", "pin", pin, "value", value)
	di.Store.ApplyCommandResult(pin, value, true, "", now)
	result.Ok = true
	return result
}

// SetAll applies SetPin to every registry pin, in registry order.
// Not atomic: each pin succeeds or fails on its own.
func (di *Dispatcher) SetAll(ctx context.Context, value bool) []Result {
	results := make([]Result, 0, len(registry))
	for _, desc := range registry {
		results = append(results, di.SetPin(ctx, desc.ID, value))
	}
	return results
}

// AllStatus answers from the store cache, it never triggers a device
// round trip. Freshness is bounded by the poll interval.
func (di *Dispatcher) AllStatus() map[PinID]bool {
	snap := di.Store.Snapshot()
	states := make(map[PinID]bool, len(snap.Pins))
	for id, state := range snap.Pins {
		states[id] = state.Value
	}
	return states
}

// Status returns the full store snapshot including connectivity.
func (di *Dispatcher) Status() Snapshot {
	return di.Store.Snapshot()
}
