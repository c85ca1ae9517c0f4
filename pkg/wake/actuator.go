package wake

import (
	"context"
	"fmt"
)

// RGB is a colour with 8-bit channels
type RGB struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Color carries the colour part of an actuation. It is passed through to the
// actuator untouched. When RGB is set it takes precedence over Temperature;
// a zero Temperature leaves the bulb's current white setting alone.
type Color struct {
	Temperature int  `json:"temperature,omitempty"` // Kelvin
	RGB         *RGB `json:"rgb,omitempty"`
}

// String describes the colour for logging
func (c Color) String() string {
	switch {
	case c.RGB != nil:
		return fmt.Sprintf("rgb(%d,%d,%d)", c.RGB.R, c.RGB.G, c.RGB.B)
	case c.Temperature > 0:
		return fmt.Sprintf("%dK", c.Temperature)
	default:
		return "unchanged"
	}
}

// Setter applies a single brightness/colour command to a bulb.
// Calls may be slow; they block until the bulb acknowledged or failed.
type Setter interface {
	SetPilot(ctx context.Context, brightness int, color Color) error
}

// Actuator is the full capability set of a bulb as used by the daemon
type Actuator interface {
	// Discover locates the bulb on the network. Other methods fail until it succeeds.
	Discover(ctx context.Context) error
	// TurnOff switches the bulb off.
	TurnOff(ctx context.Context) error
	// Close releases the network connection to the bulb.
	Close() error
	// ShowEffect runs a wake session against the bulb, see Run.
	ShowEffect(ctx context.Context, session Session) error
}
