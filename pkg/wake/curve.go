package wake

import (
	"fmt"
	"math"
)

// Curve maps normalized progress in [0,1] to normalized brightness in [0,1].
// Implementations must be pure and total on [0,1].
type Curve interface {
	Value(x float64) float64
}

// Linear returns the progress unchanged
type Linear struct{}

// Value implements Curve
func (Linear) Value(x float64) float64 {
	return x
}

// LinearCapped ramps linearly from a 10% floor, for bulbs that cannot render zero brightness
type LinearCapped struct{}

// Value implements Curve
func (LinearCapped) Value(x float64) float64 {
	return 0.9*x + 0.1
}

// Curve names accepted in configuration
const (
	CurveLinear       = "linear"
	CurveLinearCapped = "linear_capped"
)

// CurveByName resolves a configured curve name
func CurveByName(name string) (Curve, error) {
	switch name {
	case CurveLinear:
		return Linear{}, nil
	case CurveLinearCapped:
		return LinearCapped{}, nil
	default:
		return nil, fmt.Errorf("unknown curve %q, must be %s or %s", name, CurveLinear, CurveLinearCapped)
	}
}

// Rounding selects how a fractional brightness becomes an integer level
type Rounding string

const (
	// RoundNearest rounds half away from zero
	RoundNearest Rounding = "nearest"
	// RoundTruncate drops the fractional part
	RoundTruncate Rounding = "truncate"
)

// ParseRounding validates a configured rounding mode
func ParseRounding(s string) (Rounding, error) {
	switch Rounding(s) {
	case RoundNearest, RoundTruncate:
		return Rounding(s), nil
	default:
		return "", fmt.Errorf("unknown rounding %q, must be %s or %s", s, RoundNearest, RoundTruncate)
	}
}

// Apply converts v to an integer. The zero value rounds to nearest.
func (r Rounding) Apply(v float64) int {
	if r == RoundTruncate {
		return int(math.Trunc(v))
	}
	return int(math.Round(v))
}

// Brightness scales a curve sample by maxBrightness and rounds it
func Brightness(c Curve, progress float64, maxBrightness int, r Rounding) int {
	return r.Apply(c.Value(progress) * float64(maxBrightness))
}
