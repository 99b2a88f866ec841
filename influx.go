package pinkit

import (
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const pinMeasurement = "pin_state"
const connectivityMeasurement = "connectivity"

// InfluxRecorder writes pin changes and connectivity flips into an
// InfluxDB bucket, through the non blocking write api.
type InfluxRecorder struct {
	Host         string
	Organization string
	Bucket       string
	Token        string

	client   influxdb2.Client
	writeApi api.WriteAPI
	logger   *log.Logger
}

// Start opens the client and registers store listeners. Points are
// buffered and flushed by the client in the background.
func (ir *InfluxRecorder) Start(store *StateStore, logger *log.Logger) {
	ir.logger = logger.With("bucket", ir.Bucket)
	ir.client = influxdb2.NewClient(ir.Host, ir.Token)
	ir.writeApi = ir.client.WriteAPI(ir.Organization, ir.Bucket)

	go func() {
		for err := range ir.writeApi.Errors() {
			ir.logger.Warn("influx write error", "err", err)
		}
	}()

	store.OnPinChange(func(pin PinID, value bool) {
		point := influxdb2.NewPoint(pinMeasurement,
			map[string]string{"pin": string(pin)},
			map[string]interface{}{"value": value},
			time.Now())
		ir.writeApi.WritePoint(point)
	})
	store.OnConnectionChange(func(connected bool) {
		point := influxdb2.NewPoint(connectivityMeasurement,
			map[string]string{},
			map[string]interface{}{"connected": connected},
			time.Now())
		ir.writeApi.WritePoint(point)
	})
}

func (ir *InfluxRecorder) Close() {
	if ir.client == nil {
		return
	}
	ir.writeApi.Flush()
	ir.client.Close()
}
