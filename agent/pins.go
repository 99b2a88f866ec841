package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hubertat/pinkit"
)

// PinController is the slice of the dispatcher the tools need.
// *pinkit.Dispatcher satisfies it.
type PinController interface {
	SetPin(ctx context.Context, pin pinkit.PinID, value bool) pinkit.Result
	AllStatus() map[pinkit.PinID]bool
	Status() pinkit.Snapshot
}

func availablePins() string {
	names := []string{}
	for _, desc := range pinkit.Pins() {
		names = append(names, string(desc.ID))
	}
	return strings.Join(names, ", ")
}

// SetPinTool switches a single pin on or off through the dispatcher.
type SetPinTool struct {
	Controller PinController
}

func (st *SetPinTool) Name() string {
	return "set_pin"
}

func (st *SetPinTool) Description() string {
	return "Set one pin (D0-D8) to on or off."
}

func (st *SetPinTool) Schema() ToolSchema {
	return ToolSchema{
		Name:        st.Name(),
		Description: st.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pin": {
					"type": "string",
					"description": "The pin to switch, one of D0..D8."
				},
				"state": {
					"type": "string",
					"enum": ["on", "off"],
					"description": "The desired pin state."
				}
			},
			"required": ["pin", "state"]
		}`),
	}
}

type setPinParams struct {
	Pin   string `json:"pin"`
	State string `json:"state"`
}

func (st *SetPinTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	p := setPinParams{}
	err := json.Unmarshal(params, &p)
	if err != nil {
		return nil, errors.Wrap(err, "set_pin failed to parse arguments")
	}

	pin := pinkit.PinID(strings.ToUpper(strings.TrimSpace(p.Pin)))
	state := strings.ToLower(strings.TrimSpace(p.State))

	if state != "on" && state != "off" {
		return &ToolResult{Content: "State must be 'on' or 'off'", IsError: true}, nil
	}
	if _, found := pinkit.Lookup(pin); !found {
		return &ToolResult{
			Content: fmt.Sprintf("Invalid pin. Available pins: %s", availablePins()),
			IsError: true,
		}, nil
	}

	result := st.Controller.SetPin(ctx, pin, state == "on")
	if result.Err != nil {
		return &ToolResult{
			Content: fmt.Sprintf("Failed to set %s: %v", pin, result.Err),
			IsError: true,
		}, nil
	}

	content := fmt.Sprintf("OK, %s set to %s", pin, strings.ToUpper(state))
	if len(result.Warning) > 0 {
		content = content + " (warning: " + result.Warning + ")"
	}
	return &ToolResult{Content: content}, nil
}

// PinStatusTool reports the cached state of all pins. Answered from
// the store, never a fresh device round trip.
type PinStatusTool struct {
	Controller PinController
}

func (pt *PinStatusTool) Name() string {
	return "get_all_pin_status"
}

func (pt *PinStatusTool) Description() string {
	return "Return current ON/OFF state of all pins."
}

func (pt *PinStatusTool) Schema() ToolSchema {
	return ToolSchema{
		Name:        pt.Name(),
		Description: pt.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}
}

func (pt *PinStatusTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	snap := pt.Controller.Status()

	lines := []string{}
	for _, desc := range pinkit.Pins() {
		state := "OFF"
		if snap.Pins[desc.ID].Value {
			state = "ON"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", desc.ID, state))
	}
	if !snap.Connection.Connected {
		lines = append(lines, "(device not reachable, states may be stale)")
	}

	return &ToolResult{Content: strings.Join(lines, "\n")}, nil
}
