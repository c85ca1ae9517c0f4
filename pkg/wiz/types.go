package wiz

import (
	"encoding/json"
	"fmt"
	"net"
)

// DefaultPort is the UDP port WiZ bulbs listen on
const DefaultPort = 38899

// Protocol methods used by the daemon
const (
	methodRegistration = "registration"
	methodSetPilot     = "setPilot"
	methodGetPilot     = "getPilot"
)

// Bulb is a bulb that answered a discovery broadcast
type Bulb struct {
	MAC string
	IP  net.IP
}

// request is a single JSON-RPC style message sent to a bulb
type request struct {
	ID     int    `json:"id,omitempty"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// response is a bulb's reply. Either Result or Error is set.
type response struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method"`
	Env    string          `json:"env,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *responseError) Error() string {
	return fmt.Sprintf("bulb error %d: %s", e.Code, e.Message)
}

// registrationParams announces the daemon to bulbs on the broadcast domain.
// Bulbs reply with their MAC without pairing when Register is false.
type registrationParams struct {
	PhoneMAC string `json:"phoneMac"`
	Register bool   `json:"register"`
	PhoneIP  string `json:"phoneIp"`
	ID       string `json:"id"`
}

type registrationResult struct {
	MAC     string `json:"mac"`
	Success bool   `json:"success"`
}

type successResult struct {
	Success bool `json:"success"`
}

// PilotState is the bulb state reported by getPilot
type PilotState struct {
	MAC     string `json:"mac"`
	State   bool   `json:"state"`
	Dimming int    `json:"dimming"`
	Temp    int    `json:"temp,omitempty"`
	R       int    `json:"r,omitempty"`
	G       int    `json:"g,omitempty"`
	B       int    `json:"b,omitempty"`
	RSSI    int    `json:"rssi,omitempty"`
}

// String describes the state for display, e.g. "on 42% 2700K"
func (p PilotState) String() string {
	if !p.State {
		return "off"
	}
	switch {
	case p.Temp > 0:
		return fmt.Sprintf("on %d%% %dK", p.Dimming, p.Temp)
	case p.R > 0 || p.G > 0 || p.B > 0:
		return fmt.Sprintf("on %d%% rgb(%d,%d,%d)", p.Dimming, p.R, p.G, p.B)
	default:
		return fmt.Sprintf("on %d%%", p.Dimming)
	}
}
