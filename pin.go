package pinkit

// PinID identifies one of the controllable digital pins by its
// NodeMCU silk screen label (D0..D8).
type PinID string

type PinDescriptor struct {
	ID            PinID
	Label         string
	Gpio          uint8
	BootSensitive bool
}

// registry holds the fixed pin set, in display order. Boot sensitive
// pins are the ones whose level at power-up selects the ESP8266 boot
// mode (GPIO0, GPIO2 and GPIO15).
var registry = []PinDescriptor{
	{ID: "D0", Label: "D0 (GPIO16)", Gpio: 16},
	{ID: "D1", Label: "D1 (GPIO5)", Gpio: 5},
	{ID: "D2", Label: "D2 (GPIO4)", Gpio: 4},
	{ID: "D3", Label: "D3 (GPIO0)", Gpio: 0, BootSensitive: true},
	{ID: "D4", Label: "D4 (GPIO2)", Gpio: 2, BootSensitive: true},
	{ID: "D5", Label: "D5 (GPIO14)", Gpio: 14},
	{ID: "D6", Label: "D6 (GPIO12)", Gpio: 12},
	{ID: "D7", Label: "D7 (GPIO13)", Gpio: 13},
	{ID: "D8", Label: "D8 (GPIO15)", Gpio: 15, BootSensitive: true},
}

// Pins returns descriptors of all controllable pins, always in the
// same D0..D8 order.
func Pins() []PinDescriptor {
	pins := make([]PinDescriptor, len(registry))
	copy(pins, registry)
	return pins
}

// Lookup finds the descriptor for given pin id.
func Lookup(id PinID) (PinDescriptor, bool) {
	for _, desc := range registry {
		if desc.ID == id {
			return desc, true
		}
	}
	return PinDescriptor{}, false
}

func IsBootSensitive(id PinID) bool {
	desc, found := Lookup(id)
	return found && desc.BootSensitive
}

// GpioNumbers maps pin ids to their GPIO numbers, for drivers that
// execute locally instead of talking to remote firmware.
func GpioNumbers() map[string]uint8 {
	mapped := make(map[string]uint8, len(registry))
	for _, desc := range registry {
		mapped[string(desc.ID)] = desc.Gpio
	}
	return mapped
}
