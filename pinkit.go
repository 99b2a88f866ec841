package pinkit

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pinkit/drivers"
	"github.com/hubertat/pinkit/mqtt"
)

// PinKit is the root of the application, unmarshalled straight from
// the json config file. Exactly one device backend should be
// configured; everything else is optional.
type PinKit struct {
	Name          string
	ListenAddress string
	PollInterval  string

	Esp  *drivers.EspDevice
	Gpio *drivers.GpioDevice
	Mcp  *drivers.McpDevice
	Mock bool

	HkPin       string
	HkDirectory string
	HkAddress   string

	MqttBroker string

	Influx *InfluxRecorder

	LlmBaseUrl string
	LlmModel   string
	LlmApiKey  string

	device     drivers.Device
	store      *StateStore
	dispatcher *Dispatcher
	poller     *Poller
	mqttClient *mqtt.MqttClient
	logger     *log.Logger
}

func (pk *PinKit) pickDevice() (drivers.Device, error) {
	switch {
	case pk.Esp != nil:
		return pk.Esp, nil
	case pk.Gpio != nil:
		if len(pk.Gpio.Pins) == 0 {
			pk.Gpio.Pins = GpioNumbers()
		}
		return pk.Gpio, pk.Gpio.Open()
	case pk.Mcp != nil:
		return pk.Mcp, pk.Mcp.Open()
	case pk.Mock:
		pins := []string{}
		for _, desc := range registry {
			pins = append(pins, string(desc.ID))
		}
		return drivers.NewMockDevice(pins), nil
	}

	return nil, errors.New("no device backend configured (esp, gpio, mcp or mock)")
}

// Init picks and opens the device backend and builds the store,
// dispatcher and poller around it.
func (pk *PinKit) Init(logger *log.Logger) error {
	pk.logger = logger

	device, err := pk.pickDevice()
	if err != nil {
		return errors.Wrap(err, "failed to init device backend")
	}
	pk.device = device

	interval := DefaultPollInterval
	if len(pk.PollInterval) > 0 {
		interval, err = time.ParseDuration(pk.PollInterval)
		if err != nil {
			return errors.Wrapf(err, "failed to parse poll interval (%s)", pk.PollInterval)
		}
	}

	pk.store = NewStateStore()
	pk.dispatcher = NewDispatcher(device, pk.store, logger)
	pk.poller = NewPoller(device, pk.store, interval, logger)

	logger.Info("pinkit initialized", "driver", device.String(), "poll_interval", interval)
	return nil
}

func (pk *PinKit) Store() *StateStore {
	return pk.store
}

func (pk *PinKit) Dispatcher() *Dispatcher {
	return pk.dispatcher
}

func (pk *PinKit) Poller() *Poller {
	return pk.poller
}

// InitMqtt connects to the configured broker, subscribes the set
// command handler and starts publishing state changes.
func (pk *PinKit) InitMqtt() error {
	if len(pk.MqttBroker) == 0 {
		return errors.New("mqtt broker not set")
	}

	clientId := pk.Name
	if len(clientId) == 0 {
		clientId = homeKitBridgeName
	}

	mc, err := mqtt.NewMqttClient(pk.MqttBroker, clientId)
	if err != nil {
		return errors.Wrap(err, "failed to create mqtt client")
	}
	pk.mqttClient = mc

	handlers := []mqtt.MqttHandler{
		&pinSetHandler{dispatcher: pk.dispatcher, logger: pk.logger},
	}
	err = mc.Connect(handlers)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mqtt broker")
	}

	publishChanges(pk.store, mc, pk.logger)
	return nil
}

// StartInflux starts event recording when an influx section is
// present in the config.
func (pk *PinKit) StartInflux() {
	if pk.Influx == nil {
		return
	}
	pk.Influx.Start(pk.store, pk.logger)
}

func (pk *PinKit) Close() (err error) {
	if pk.Influx != nil {
		pk.Influx.Close()
	}
	if pk.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		disconnectErr := pk.mqttClient.Disconnect(ctx)
		if disconnectErr != nil {
			err = disconnectErr
		}
	}
	if pk.device != nil {
		closeErr := pk.device.Close()
		if closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close device")
		}
	}
	return
}
