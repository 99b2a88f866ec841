package drivers

import "context"

// Device is a backend able to read and set the board pins. Pin names
// are the firmware-facing labels ("D0".."D8"), how they map onto real
// hardware lines is each backend's business.
type Device interface {
	Status(ctx context.Context) (map[string]bool, error)
	Set(ctx context.Context, pin string, value bool) error
	Close() error
	String() string
}
