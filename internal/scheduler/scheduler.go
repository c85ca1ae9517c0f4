// Package scheduler runs the daily wake loop: once a day it replaces the
// running wake session with one for today's window, if there is one.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/wakelightd/internal/events"
	"github.com/jmylchreest/wakelightd/pkg/schedule"
	"github.com/jmylchreest/wakelightd/pkg/wake"
)

// DefaultNextDayOffset is how long after local midnight the next tick fires
const DefaultNextDayOffset = 5 * time.Minute

var (
	// errSuperseded is the cancellation cause of a session replaced by a newer tick
	errSuperseded = errors.New("superseded by a new day")
	// errShutdown is the cancellation cause of a session stopped with the scheduler
	errShutdown = errors.New("scheduler stopped")
)

// Light is the part of the bulb the scheduler drives
type Light interface {
	ShowEffect(ctx context.Context, session wake.Session) error
	TurnOff(ctx context.Context) error
}

// State is the scheduler's current activity
type State int

const (
	Idle State = iota
	EffectRunning
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EffectRunning:
		return "effect_running"
	case Sleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options shape the sessions the scheduler starts
type Options struct {
	NextDayOffset time.Duration // DefaultNextDayOffset when zero
	Curve         wake.Curve
	MaxBrightness int
	Color         wake.Color
	Sampling      time.Duration
	Rounding      wake.Rounding
}

// session is the handle of a running wake session
type session struct {
	info   events.SessionInfo
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Scheduler owns at most one running wake session at a time
type Scheduler struct {
	light    Light
	schedule schedule.Schedule
	opts     Options
	clock    wake.Clock
	bus      *events.Bus
	logger   *slog.Logger
	newID    func() string

	mu      sync.Mutex
	phase   State
	current *session
}

// New creates a scheduler. A nil clock uses the system clock and a nil bus discards events.
func New(light Light, sched schedule.Schedule, opts Options, clock wake.Clock, bus *events.Bus, logger *slog.Logger) *Scheduler {
	if opts.NextDayOffset <= 0 {
		opts.NextDayOffset = DefaultNextDayOffset
	}
	if clock == nil {
		clock = wake.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		light:    light,
		schedule: sched,
		opts:     opts,
		clock:    clock,
		bus:      bus,
		logger:   logger,
		newID:    uuid.NewString,
		phase:    Idle,
	}
}

// NextTick returns the next local midnight after now, plus offset
func NextTick(now time.Time, offset time.Duration) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(offset)
}

// State reports what the scheduler is doing
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		select {
		case <-s.current.done:
		default:
			return EffectRunning
		}
	}
	return s.phase
}

// Current returns the session that is still running, if any
func (s *Scheduler) Current() (events.SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return events.SessionInfo{}, false
	}
	select {
	case <-s.current.done:
		return events.SessionInfo{}, false
	default:
		return s.current.info, true
	}
}

func (s *Scheduler) setPhase(state State) {
	s.mu.Lock()
	s.phase = state
	s.mu.Unlock()
}

// Run turns the bulb off and then plans each day until ctx is cancelled.
// A running session is cancelled and awaited before Run returns ctx's error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler: starting", "next_day_offset", s.opts.NextDayOffset, "max_brightness", s.opts.MaxBrightness)
	defer s.setPhase(Idle)
	defer s.stopCurrent(errShutdown)

	if err := s.light.TurnOff(ctx); err != nil {
		return fmt.Errorf("failed to turn off bulb at startup: %w", err)
	}

	for {
		if err := s.tick(ctx); err != nil {
			return err
		}

		next := NextTick(s.clock.Now(), s.opts.NextDayOffset)
		s.setPhase(Sleeping)
		s.logger.Debug("scheduler: sleeping until next tick", "next", next)
		if err := wake.SleepUntil(ctx, s.clock, next); err != nil {
			s.logger.Info("scheduler: stopping", "reason", context.Cause(ctx))
			return err
		}
	}
}

// tick replaces the running session with today's, if today has a window
func (s *Scheduler) tick(ctx context.Context) error {
	s.stopCurrent(errSuperseded)
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.clock.Now()
	day := schedule.DayNames[schedule.IndexOf(now.Weekday())]

	window, ok := s.schedule.For(now.Weekday())
	if !ok {
		s.setPhase(Idle)
		s.logger.Info("scheduler: no window today", "day", day)
		s.bus.Publish(events.NewEvent(events.DayIdle, events.SessionInfo{Day: day}))
		return nil
	}

	start, end := window.On(now)
	info := events.SessionInfo{
		ID:    s.newID(),
		Day:   day,
		Start: start,
		End:   end,
	}
	s.logger.Info("scheduler: day planned", "day", day, "window", window.String(), "session", info.ID)
	s.bus.Publish(events.NewEvent(events.DayPlanned, info))
	s.launch(ctx, info)
	return nil
}

// launch starts the effect for info in its own goroutine and records its handle
func (s *Scheduler) launch(ctx context.Context, info events.SessionInfo) {
	sessionCtx, cancel := context.WithCancelCause(ctx)
	current := &session{info: info, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.current = current
	s.mu.Unlock()

	s.bus.Publish(events.NewEvent(events.SessionStarted, info))

	effect := wake.Session{
		ID:            info.ID,
		Start:         info.Start,
		End:           info.End,
		Curve:         s.opts.Curve,
		MaxBrightness: s.opts.MaxBrightness,
		Color:         s.opts.Color,
		Sampling:      s.opts.Sampling,
		Rounding:      s.opts.Rounding,
	}

	go func() {
		defer close(current.done)
		err := s.light.ShowEffect(sessionCtx, effect)
		s.finish(sessionCtx, info, err)
	}()
}

// finish reports how a session ended. Once the session was cancelled any error
// it returns is treated as the cancellation, whatever cause the command saw.
func (s *Scheduler) finish(ctx context.Context, info events.SessionInfo, err error) {
	logger := s.logger.With("session", info.ID, "day", info.Day, "start", info.Start, "end", info.End)

	switch {
	case err == nil:
		logger.Info("scheduler: session completed")
		s.bus.Publish(events.NewEvent(events.SessionCompleted, info))
	case ctx.Err() != nil:
		logger.Info("scheduler: session cancelled", "reason", context.Cause(ctx))
		s.bus.Publish(events.NewEvent(events.SessionCancelled, info))
	default:
		logger.Error("scheduler: session failed", "error", err)
		info.Error = err.Error()
		s.bus.Publish(events.NewEvent(events.SessionFailed, info))
	}
}

// stopCurrent cancels the running session and waits until it has stopped actuating
func (s *Scheduler) stopCurrent(cause error) {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current == nil {
		return
	}
	current.cancel(cause)
	<-current.done
}
