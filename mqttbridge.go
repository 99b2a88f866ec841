package pinkit

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"

	"github.com/hubertat/pinkit/mqtt"
)

const mqttPinTopicPrefix = "pinkit/pin/"
const mqttOnlineTopic = "pinkit/online"

// pinSetHandler routes pinkit/pin/<id>/set publishes into the
// dispatcher, so mqtt commands walk the same validation path as every
// other caller.
type pinSetHandler struct {
	dispatcher *Dispatcher
	logger     *log.Logger
}

func (ph *pinSetHandler) MqttSubscribeTopic() string {
	return mqttPinTopicPrefix + "+/set"
}

func (ph *pinSetHandler) MqttHandle(pub *paho.Publish) {
	parts := strings.Split(pub.Topic, "/")
	if len(parts) != 4 {
		return
	}
	pin := PinID(parts[2])

	var value bool
	switch strings.ToLower(strings.TrimSpace(string(pub.Payload))) {
	case "on", "1", "true":
		value = true
	case "off", "0", "false":
		value = false
	default:
		ph.logger.Warn("ignoring mqtt set with unknown payload", "topic", pub.Topic, "payload", string(pub.Payload))
		return
	}

	result := ph.dispatcher.SetPin(context.Background(), pin, value)
	if result.Err != nil {
		ph.logger.Warn("mqtt set command failed", "pin", pin, "err", result.Err)
	}
}

func payloadForState(value bool) []byte {
	if value {
		return []byte("on")
	}
	return []byte("off")
}

// publishChanges wires store listeners publishing retained pin state
// and connectivity messages.
func publishChanges(store *StateStore, publisher mqtt.Publisher, logger *log.Logger) {
	store.OnPinChange(func(pin PinID, value bool) {
		err := publisher.Publish(mqttPinTopicPrefix+string(pin), payloadForState(value), true)
		if err != nil {
			logger.Warn("failed to publish pin state", "pin", pin, "err", err)
		}
	})
	store.OnConnectionChange(func(connected bool) {
		err := publisher.Publish(mqttOnlineTopic, payloadForState(connected), true)
		if err != nil {
			logger.Warn("failed to publish online state", "err", err)
		}
	})
}
