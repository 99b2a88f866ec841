package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const espDriverName = "esp"
const espClientTimeout = 6 * time.Second

// EspDevice talks to the ESP8266 firmware over plain http.
// The firmware exposes GET /status returning all pin states and
// GET /set/{pin}/{on|off} for switching a single pin.
type EspDevice struct {
	Host string
}

func (esp *EspDevice) String() string {
	return espDriverName
}

func (esp *EspDevice) Close() error {
	return nil
}

func (esp *EspDevice) getResponse(ctx context.Context, path string) (*http.Response, error) {
	netClient := &http.Client{
		Timeout: espClientTimeout,
	}

	reqUrl, err := url.Parse(esp.Host)
	if err != nil {
		return nil, errors.Wrap(err, "EspDevice failed to parse Host url")
	}
	reqUrl, err = reqUrl.Parse(path)
	if err != nil {
		return nil, errors.Wrapf(err, "EspDevice error parsing url (%s)", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "EspDevice error preparing request")
	}

	response, err := netClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "EspDevice request failed")
	}
	if response.StatusCode >= 300 {
		response.Body.Close()
		return nil, errors.Errorf("EspDevice received status code: %d for %s", response.StatusCode, path)
	}

	return response, nil
}

func (esp *EspDevice) Status(ctx context.Context) (map[string]bool, error) {
	response, err := esp.getResponse(ctx, "status")
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	type statusResponse struct {
		Pins map[string]bool `json:"pins"`
	}
	status := &statusResponse{}

	err = json.NewDecoder(response.Body).Decode(status)
	if err != nil {
		return nil, errors.Wrap(err, "EspDevice decoding status response failed")
	}
	if status.Pins == nil {
		return nil, errors.New("EspDevice status response is missing pins")
	}

	return status.Pins, nil
}

func (esp *EspDevice) Set(ctx context.Context, pin string, value bool) error {
	state := "off"
	if value {
		state = "on"
	}

	response, err := esp.getResponse(ctx, fmt.Sprintf("set/%s/%s", pin, state))
	if err != nil {
		return errors.Wrapf(err, "EspDevice failed setting pin %s", pin)
	}
	response.Body.Close()

	return nil
}
