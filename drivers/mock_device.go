package drivers

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const mockDriverName = "mock"

// MockDevice keeps pin states in memory. Used by tests and by the
// demo mode, failures can be injected per call kind or per pin.
type MockDevice struct {
	FailStatus bool
	FailPins   map[string]bool

	mu          sync.Mutex
	states      map[string]bool
	statusCalls int
	setCalls    int
}

func NewMockDevice(pins []string) *MockDevice {
	states := make(map[string]bool, len(pins))
	for _, pin := range pins {
		states[pin] = false
	}
	return &MockDevice{states: states}
}

func (md *MockDevice) String() string {
	return mockDriverName
}

func (md *MockDevice) Close() error {
	return nil
}

func (md *MockDevice) Status(ctx context.Context) (map[string]bool, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.statusCalls++
	if md.FailStatus {
		return nil, errors.New("mock status failure")
	}

	states := make(map[string]bool, len(md.states))
	for pin, state := range md.states {
		states[pin] = state
	}
	return states, nil
}

func (md *MockDevice) Set(ctx context.Context, pin string, value bool) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.setCalls++
	if md.FailPins[pin] {
		return errors.Errorf("mock set failure for pin %s", pin)
	}
	if _, found := md.states[pin]; !found {
		return errors.Errorf("mock device pin %s not configured", pin)
	}

	md.states[pin] = value
	return nil
}

// Force overwrites a pin state directly, bypassing Set accounting.
func (md *MockDevice) Force(pin string, value bool) {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.states[pin] = value
}

func (md *MockDevice) StatusCalls() int {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.statusCalls
}

func (md *MockDevice) SetCalls() int {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.setCalls
}
