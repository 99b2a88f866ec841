package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubertat/pinkit"
	"github.com/hubertat/pinkit/drivers"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

type fakeChat struct {
	reply string
	err   error
	last  string
}

func (fc *fakeChat) Run(ctx context.Context, message string) (string, error) {
	fc.last = message
	return fc.reply, fc.err
}

func testServer(t *testing.T, chat ChatAgent) (*Server, *pinkit.Dispatcher, *drivers.MockDevice) {
	t.Helper()

	pins := []string{}
	for _, desc := range pinkit.Pins() {
		pins = append(pins, string(desc.ID))
	}
	device := drivers.NewMockDevice(pins)
	dispatcher := pinkit.NewDispatcher(device, pinkit.NewStateStore(), testLogger())

	srv, err := New(":0", dispatcher, chat, testLogger())
	require.NoError(t, err)
	return srv, dispatcher, device
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if len(body) > 0 {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	recorder := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHandleStatus(t *testing.T) {
	srv, dispatcher, _ := testServer(t, nil)
	dispatcher.Store.ApplyPoll(map[pinkit.PinID]bool{"D5": true}, time.Now())

	recorder := doRequest(srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	snap := pinkit.Snapshot{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snap))
	assert.True(t, snap.Connection.Connected)
	assert.True(t, snap.Pins["D5"].Value)
	assert.False(t, snap.Pins["D0"].Value)
}

func TestHandleSetPin(t *testing.T) {
	srv, dispatcher, _ := testServer(t, nil)

	recorder := doRequest(srv, http.MethodPut, "/api/pins/D6", `{"value":true}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	result := pinResult{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Ok)
	assert.Empty(t, result.Warning)
	assert.True(t, dispatcher.AllStatus()["D6"])
}

func TestHandleSetPinBootSensitive(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	recorder := doRequest(srv, http.MethodPut, "/api/pins/D8", `{"value":true}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	result := pinResult{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Ok)
	assert.Contains(t, result.Warning, "boot sensitive")
}

func TestHandleSetPinUnknown(t *testing.T) {
	srv, _, device := testServer(t, nil)

	recorder := doRequest(srv, http.MethodPut, "/api/pins/D42", `{"value":true}`)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Zero(t, device.SetCalls())
}

func TestHandleSetPinTransportFailure(t *testing.T) {
	srv, _, device := testServer(t, nil)
	device.FailPins = map[string]bool{"D1": true}

	recorder := doRequest(srv, http.MethodPut, "/api/pins/D1", `{"value":true}`)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)

	result := pinResult{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.False(t, result.Ok)
	assert.NotEmpty(t, result.Error)
}

func TestHandleSetPinBadBody(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	recorder := doRequest(srv, http.MethodPut, "/api/pins/D1", `garbage`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleSetAll(t *testing.T) {
	srv, dispatcher, device := testServer(t, nil)
	device.FailPins = map[string]bool{"D3": true}

	recorder := doRequest(srv, http.MethodPut, "/api/pins", `{"value":true}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	results := []pinResult{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &results))
	require.Len(t, results, 9)

	for _, result := range results {
		if result.Pin == "D3" {
			assert.False(t, result.Ok)
			assert.NotEmpty(t, result.Error)
		} else {
			assert.True(t, result.Ok)
		}
	}
	assert.False(t, dispatcher.AllStatus()["D3"])
	assert.True(t, dispatcher.AllStatus()["D0"])
}

func TestHandleChat(t *testing.T) {
	chat := &fakeChat{reply: "D5 is now on."}
	srv, _, _ := testServer(t, chat)

	recorder := doRequest(srv, http.MethodPost, "/api/chat", `{"message":"turn D5 on"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	response := chatResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "D5 is now on.", response.Reply)
	assert.Equal(t, "turn D5 on", chat.last)
}

func TestHandleChatNotConfigured(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	recorder := doRequest(srv, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusNotImplemented, recorder.Code)
}

func TestHandleChatEmptyMessage(t *testing.T) {
	srv, _, _ := testServer(t, &fakeChat{})

	recorder := doRequest(srv, http.MethodPost, "/api/chat", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleDashboard(t *testing.T) {
	srv, _, _ := testServer(t, &fakeChat{})

	recorder := doRequest(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	page := recorder.Body.String()
	assert.Contains(t, page, "D0")
	assert.Contains(t, page, "D8")
	assert.Contains(t, page, "boot sensitive")
	assert.Contains(t, page, "Natural language")
}

func TestHandleDashboardWithoutChat(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	recorder := doRequest(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "Natural language")
}
