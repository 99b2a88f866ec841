package drivers

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const mcpDriverName = "mcpio"

// McpDevice drives the pins through an MCP23017 i2c port expander.
// Pins maps pin labels onto expander port numbers (0..15).
type McpDevice struct {
	BusNo  uint8
	DevNo  uint8
	Pins   map[string]uint8
	Invert bool

	mu     sync.Mutex
	device *mcp23017.Device
}

func (md *McpDevice) String() string {
	return mcpDriverName
}

func (md *McpDevice) Open() (err error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.device != nil {
		return nil
	}
	if len(md.Pins) == 0 {
		return errors.New("McpDevice has no pins configured")
	}

	md.device, err = mcp23017.Open(md.BusNo, md.DevNo)
	if err != nil {
		return errors.Wrap(err, "McpDevice failed to open i2c device")
	}

	for _, portNo := range md.Pins {
		err = md.device.PinMode(portNo, mcp23017.OUTPUT)
		if err != nil {
			return errors.Wrapf(err, "McpDevice failed to set pin mode (port %d)", portNo)
		}
	}

	return nil
}

func (md *McpDevice) Close() error {
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.device == nil {
		return nil
	}
	for _, portNo := range md.Pins {
		md.device.DigitalWrite(portNo, mcp23017.PinLevel(md.Invert))
	}
	err := md.device.Close()
	md.device = nil
	return err
}

func (md *McpDevice) Status(ctx context.Context) (map[string]bool, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.device == nil {
		return nil, errors.New("McpDevice not opened")
	}

	states := make(map[string]bool, len(md.Pins))
	for pin, portNo := range md.Pins {
		level, err := md.device.DigitalRead(portNo)
		if err != nil {
			return nil, errors.Wrapf(err, "McpDevice failed reading pin %s", pin)
		}
		state := bool(level)
		if md.Invert {
			state = !state
		}
		states[pin] = state
	}

	return states, nil
}

func (md *McpDevice) Set(ctx context.Context, pin string, value bool) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.device == nil {
		return errors.New("McpDevice not opened")
	}

	portNo, found := md.Pins[pin]
	if !found {
		return errors.Errorf("McpDevice pin %s not configured", pin)
	}

	if md.Invert {
		value = !value
	}
	return md.device.DigitalWrite(portNo, mcp23017.PinLevel(value))
}
