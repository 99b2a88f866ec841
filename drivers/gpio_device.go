package drivers

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

// GpioDevice drives the pins directly through the memory mapped gpio
// of the machine pinkit runs on, instead of remote firmware.
// Pins maps pin labels onto the gpio line numbers.
type GpioDevice struct {
	Pins   map[string]uint8
	Invert bool

	mu     sync.Mutex
	isOpen bool
}

func (gd *GpioDevice) String() string {
	return gpioDriverName
}

func (gd *GpioDevice) Open() error {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if gd.isOpen {
		return nil
	}
	if len(gd.Pins) == 0 {
		return errors.New("GpioDevice has no pins configured")
	}

	err := rpio.Open()
	if err != nil {
		return errors.Wrap(err, "GpioDevice failed to open gpio memory")
	}

	for _, lineNo := range gd.Pins {
		rpio.Pin(lineNo).Output()
	}
	gd.isOpen = true

	return nil
}

func (gd *GpioDevice) Close() error {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if !gd.isOpen {
		return nil
	}
	gd.isOpen = false
	return rpio.Close()
}

func (gd *GpioDevice) line(pin string) (rpio.Pin, error) {
	lineNo, found := gd.Pins[pin]
	if !found {
		return 0, errors.Errorf("GpioDevice pin %s not configured", pin)
	}
	return rpio.Pin(lineNo), nil
}

func (gd *GpioDevice) Status(ctx context.Context) (map[string]bool, error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if !gd.isOpen {
		return nil, errors.New("GpioDevice not opened")
	}

	states := make(map[string]bool, len(gd.Pins))
	for pin := range gd.Pins {
		line, err := gd.line(pin)
		if err != nil {
			return nil, err
		}
		state := line.Read() == rpio.High
		if gd.Invert {
			state = !state
		}
		states[pin] = state
	}

	return states, nil
}

func (gd *GpioDevice) Set(ctx context.Context, pin string, value bool) error {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if !gd.isOpen {
		return errors.New("GpioDevice not opened")
	}

	line, err := gd.line(pin)
	if err != nil {
		return err
	}

	if gd.Invert {
		value = !value
	}
	if value {
		line.High()
	} else {
		line.Low()
	}

	return nil
}
