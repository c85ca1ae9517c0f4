package wake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearCurve(t *testing.T) {
	for i := 0; i <= 100; i++ {
		x := float64(i) / 100
		assert.Equal(t, x, Linear{}.Value(x))
	}
}

func TestLinearCappedCurve(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		x := float64(i) / 1000
		v := LinearCapped{}.Value(x)
		assert.InDelta(t, 0.9*x+0.1, v, 1e-12)
		assert.GreaterOrEqual(t, v, 0.1-1e-12)
		assert.LessOrEqual(t, v, 1.0+1e-12)
	}
	assert.InDelta(t, 0.1, LinearCapped{}.Value(0), 1e-12)
	assert.InDelta(t, 1.0, LinearCapped{}.Value(1), 1e-12)
}

func TestCurveByName(t *testing.T) {
	c, err := CurveByName("linear")
	require.NoError(t, err)
	assert.IsType(t, Linear{}, c)

	c, err = CurveByName("linear_capped")
	require.NoError(t, err)
	assert.IsType(t, LinearCapped{}, c)

	_, err = CurveByName("ease_in")
	assert.ErrorContains(t, err, "unknown curve")
}

func TestRounding(t *testing.T) {
	tests := []struct {
		name     string
		rounding Rounding
		in       float64
		want     int
	}{
		{"nearest half rounds up", RoundNearest, 2.5, 3},
		{"nearest below half", RoundNearest, 66.4, 66},
		{"nearest above half", RoundNearest, 66.67, 67},
		{"zero value is nearest", "", 99.5, 100},
		{"truncate", RoundTruncate, 66.99, 66},
		{"truncate exact", RoundTruncate, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rounding.Apply(tt.in))
		})
	}

	r, err := ParseRounding("truncate")
	require.NoError(t, err)
	assert.Equal(t, RoundTruncate, r)
	_, err = ParseRounding("floor")
	assert.Error(t, err)
}

func TestBrightness(t *testing.T) {
	assert.Equal(t, 0, Brightness(Linear{}, 0, 200, RoundNearest))
	assert.Equal(t, 100, Brightness(Linear{}, 0.5, 200, RoundNearest))
	assert.Equal(t, 200, Brightness(Linear{}, 1, 200, RoundNearest))
	assert.Equal(t, 26, Brightness(LinearCapped{}, 0, 255, RoundNearest))
	assert.Equal(t, 25, Brightness(LinearCapped{}, 0, 255, RoundTruncate))
	assert.Equal(t, 255, Brightness(LinearCapped{}, 1, 255, RoundNearest))
}

func TestColorString(t *testing.T) {
	assert.Equal(t, "2200K", Color{Temperature: 2200}.String())
	assert.Equal(t, "rgb(255,120,0)", Color{Temperature: 2200, RGB: &RGB{R: 255, G: 120}}.String())
	assert.Equal(t, "unchanged", Color{}.String())
}
