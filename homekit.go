package pinkit

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/pkg/errors"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "pinkit"
const homeKitBridgeAuthor = "github.com/hubertat"

func pinUniqueId(pin PinID) uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Pin_" + pin))
	return hash.Sum64()
}

// StartHomeKit exposes every registry pin as a HomeKit switch. Remote
// updates go through the dispatcher, store changes are mirrored back
// into the accessory characteristics. Blocks until ctx is cancelled.
func (pk *PinKit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := pk.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	switches := make(map[PinID]*accessory.Switch, len(registry))
	accessories := []*accessory.A{}
	for _, desc := range registry {
		pin := desc.ID
		sw := accessory.NewSwitch(accessory.Info{
			Name:         desc.Label,
			Manufacturer: homeKitBridgeAuthor,
			SerialNumber: fmt.Sprintf("pin:%s:gpio:%02d", pin, desc.Gpio),
		})
		sw.A.Id = pinUniqueId(pin)
		sw.Switch.On.OnValueRemoteUpdate(func(value bool) {
			result := pk.dispatcher.SetPin(context.Background(), pin, value)
			if result.Err != nil {
				pk.logger.Warn("homekit set failed", "pin", pin, "err", result.Err)
			}
		})
		switches[pin] = sw
		accessories = append(accessories, sw.A)
	}

	pk.store.OnPinChange(func(pin PinID, value bool) {
		sw, found := switches[pin]
		if found {
			sw.Switch.On.SetValue(value)
		}
	})

	var store hap.Store
	if len(pk.HkDirectory) > 1 {
		store = hap.NewFsStore(pk.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, accessories...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = pk.HkPin
	if len(pk.HkAddress) > 0 {
		hkServer.Addr = pk.HkAddress
	}

	return hkServer.ListenAndServe(ctx)
}
