package wiz

import (
	"math"
	"strings"

	"github.com/jmylchreest/wakelightd/pkg/wake"
)

// Dimming and colour temperature limits accepted by the bulb firmware
const (
	minDimming     = 10
	maxDimming     = 100
	minTemperature = 1000
	maxTemperature = 10000
)

// NormalizeMAC lowercases a MAC address and strips separators so that
// "A8:BB:50:AA:BB:CC" and "a8bb50aabbcc" compare equal
func NormalizeMAC(mac string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "", " ", "")
	return strings.ToLower(r.Replace(mac))
}

// brightnessToDimming converts a 0-255 level to the bulb's 10-100 percent range
func brightnessToDimming(brightness int) int {
	percent := int(math.Round(float64(brightness) / 255 * 100))
	if percent < minDimming {
		return minDimming
	} else if percent > maxDimming {
		return maxDimming
	}
	return percent
}

// clampTemperature keeps a Kelvin value within what the firmware accepts
func clampTemperature(kelvin int) int {
	if kelvin < minTemperature {
		return minTemperature
	} else if kelvin > maxTemperature {
		return maxTemperature
	}
	return kelvin
}

// pilotParams builds setPilot parameters for a brightness level and colour
func pilotParams(brightness int, color wake.Color) map[string]any {
	params := map[string]any{
		"state":   true,
		"dimming": brightnessToDimming(brightness),
	}
	switch {
	case color.RGB != nil:
		params["r"] = int(color.RGB.R)
		params["g"] = int(color.RGB.G)
		params["b"] = int(color.RGB.B)
	case color.Temperature > 0:
		params["temp"] = clampTemperature(color.Temperature)
	}
	return params
}
