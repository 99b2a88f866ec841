package pinkit

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pinkit/drivers"
)

const DefaultPollInterval = 2 * time.Second

// Poller periodically reads all pin states from the device and feeds
// them into the store. Polls run strictly one at a time, a failed
// poll only marks the connection broken and the loop carries on.
type Poller struct {
	Device   drivers.Device
	Store    *StateStore
	Interval time.Duration

	logger *log.Logger
}

func NewPoller(device drivers.Device, store *StateStore, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		Device:   device,
		Store:    store,
		Interval: interval,
		logger:   logger.With("driver", device.String()),
	}
}

// Run blocks until ctx is cancelled. A poll caught in flight during
// shutdown finishes and its result is still applied, then Run returns.
func (po *Poller) Run(ctx context.Context) {
	po.pollOnce(ctx)

	ticker := time.NewTicker(po.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			po.logger.Info("poller stopped")
			return
		case <-ticker.C:
			po.pollOnce(ctx)
		}
	}
}

func (po *Poller) pollOnce(ctx context.Context) {
	observed, err := po.Device.Status(ctx)
	now := time.Now()
	if err != nil {
		po.logger.Warn("poll failed", "err", err)
		po.Store.ApplyPollFailure(err.Error(), now)
		return
	}

	states := make(map[PinID]bool, len(observed))
	for pin, value := range observed {
		id := PinID(pin)
		if _, found := Lookup(id); !found {
			continue
		}
		states[id] = value
	}

	po.Store.ApplyPoll(states, now)
}
