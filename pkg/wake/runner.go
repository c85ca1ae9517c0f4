// Package wake implements the sunrise effect: brightness curves and the runner
// that ramps a bulb across a time window.
package wake

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSampling is the default interval between brightness updates
const DefaultSampling = 15 * time.Second

// Session is one concrete execution of the wake effect over an absolute window
type Session struct {
	ID            string
	Start         time.Time
	End           time.Time
	Curve         Curve
	MaxBrightness int // 0-255
	Color         Color
	Sampling      time.Duration
	Rounding      Rounding
}

// Progress returns the position of t within the session window, clamped to [0,1]
func (s Session) Progress(t time.Time) float64 {
	total := s.End.Sub(s.Start)
	if total <= 0 {
		return 1
	}
	p := float64(t.Sub(s.Start)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Run drives setter through the session in real time.
//
// If the window has already ended, or is inverted, Run returns without touching
// the bulb. Otherwise it waits for the start, then sets brightness from the curve
// every sampling interval until the end, and finally snaps to the curve's end value.
// Cancelling ctx interrupts any wait; no command is issued afterwards and ctx's
// error is returned. A failing command aborts the session.
func Run(ctx context.Context, setter Setter, s Session, clock Clock, logger *slog.Logger) error {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if s.Curve == nil {
		s.Curve = Linear{}
	}
	if s.Sampling <= 0 {
		s.Sampling = DefaultSampling
	}
	logger = logger.With("session", s.ID)

	if !s.End.After(s.Start) {
		logger.Warn("effect: window is empty or inverted, nothing to do", "start", s.Start, "end", s.End)
		return nil
	}

	now := clock.Now()
	if now.After(s.End) {
		logger.Info("effect: window already elapsed, skipping", "end", s.End)
		return nil
	}

	set := func(progress float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		brightness := Brightness(s.Curve, progress, s.MaxBrightness, s.Rounding)
		logger.Debug("effect: step", "progress", progress, "brightness", brightness, "color", s.Color.String())
		if err := setter.SetPilot(ctx, brightness, s.Color); err != nil {
			return fmt.Errorf("session %s: set brightness %d: %w", s.ID, brightness, err)
		}
		return nil
	}

	logger.Info("effect: started", "start", s.Start, "end", s.End, "max_brightness", s.MaxBrightness, "sampling", s.Sampling)

	if now.Before(s.Start) {
		logger.Info("effect: waiting for window start", "start", s.Start, "in", s.Start.Sub(now))
		if err := SleepUntil(ctx, clock, s.Start); err != nil {
			return err
		}
		if err := set(0); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, s.Sampling); err != nil {
			return err
		}
	}

	for {
		now = clock.Now()
		if !now.Before(s.End) {
			break
		}
		if err := set(s.Progress(now)); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, s.Sampling); err != nil {
			return err
		}
	}

	if err := set(1); err != nil {
		return err
	}
	logger.Info("effect: finished", "end", s.End)
	return nil
}
