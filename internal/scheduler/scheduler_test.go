package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wakelightd/internal/events"
	"github.com/jmylchreest/wakelightd/pkg/schedule"
	"github.com/jmylchreest/wakelightd/pkg/wake"
	"github.com/jmylchreest/wakelightd/pkg/wake/waketest"
)

// 2024-03-04 is a Monday
func date(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.Local)
}

func mondayOnly() schedule.Schedule {
	var days [schedule.DaysPerWeek]*schedule.Window
	days[0] = &schedule.Window{
		Start: schedule.TimeOfDay{Hour: 9, Minute: 0},
		End:   schedule.TimeOfDay{Hour: 9, Minute: 30},
	}
	return schedule.New(days)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
	ch     chan events.Event
}

func watch(bus *events.Bus) *eventLog {
	l := &eventLog{ch: make(chan events.Event, 256)}
	bus.Subscribe(func(e events.Event) {
		l.mu.Lock()
		l.events = append(l.events, e)
		l.mu.Unlock()
		l.ch <- e
	})
	return l
}

// wait returns the next event of the given type
func (l *eventLog) wait(t *testing.T, eventType events.EventType) events.SessionInfo {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e := <-l.ch:
			if e.Type == eventType {
				info, err := e.Session()
				require.NoError(t, err)
				return info
			}
		case <-timeout:
			t.Fatalf("no %s event", eventType)
		}
	}
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.EventType
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	clock *waketest.FakeClock
	light *waketest.Recorder
	bus   *events.Bus
	log   *eventLog
	sched *Scheduler
}

func newHarness(now time.Time, sched schedule.Schedule) *harness {
	clock := waketest.NewFakeClock(now)
	light := waketest.NewRecorder(clock)
	bus := events.NewBus()
	h := &harness{
		clock: clock,
		light: light,
		bus:   bus,
		log:   watch(bus),
	}
	h.sched = New(light, sched, Options{
		Curve:         wake.Linear{},
		MaxBrightness: 200,
		Color:         wake.Color{Temperature: 2200},
		Sampling:      15 * time.Second,
		Rounding:      wake.RoundNearest,
	}, clock, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var n int
	h.sched.newID = func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
	return h
}

func (h *harness) run(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- h.sched.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return cancel, done
}

// drive advances the clock to the earliest deadline, as long as at least
// minWaiters goroutines sleep, until an event of the given type arrives.
// Passing 2 leaves the scheduler's own sleep alone while a session runs.
func (h *harness) drive(t *testing.T, until events.EventType, minWaiters int) events.SessionInfo {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e := <-h.log.ch:
			if e.Type != until {
				continue
			}
			info, err := e.Session()
			require.NoError(t, err)
			return info
		case <-timeout:
			t.Fatalf("no %s event", until)
		case <-time.After(time.Millisecond):
			if w := h.clock.Waiters(); len(w) >= minWaiters {
				h.clock.AdvanceTo(w[0])
			}
		}
	}
}

func (h *harness) await(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not stop")
		return nil
	}
}

func TestNextTick(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		offset time.Duration
		want   time.Time
	}{
		{"morning", date(4, 8, 59), 5 * time.Minute, date(5, 0, 5)},
		{"just after midnight", date(4, 0, 2), 5 * time.Minute, date(5, 0, 5)},
		{"late evening", date(10, 23, 59), 5 * time.Minute, date(11, 0, 5)},
		{"ten minute offset", date(4, 12, 0), 10 * time.Minute, date(5, 0, 10)},
		{"month end", time.Date(2024, time.March, 31, 7, 0, 0, 0, time.Local), 5 * time.Minute,
			time.Date(2024, time.April, 1, 0, 5, 0, 0, time.Local)},
		{"year end", time.Date(2024, time.December, 31, 7, 0, 0, 0, time.UTC), 5 * time.Minute,
			time.Date(2025, time.January, 1, 0, 5, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTick(tt.now, tt.offset)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "effect_running", EffectRunning.String())
	assert.Equal(t, "sleeping", Sleeping.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestDayWithoutWindowStartsNothing(t *testing.T) {
	h := newHarness(date(10, 12, 0), mondayOnly()) // Sunday
	assert.Equal(t, Idle, h.sched.State())

	cancel, done := h.run(t)

	info := h.log.wait(t, events.DayIdle)
	assert.Equal(t, "sun", info.Day)

	h.clock.BlockUntil(1)
	waiters := h.clock.Waiters()
	require.Len(t, waiters, 1)
	assert.True(t, date(11, 0, 5).Equal(waiters[0]), "next tick at %s", waiters[0])
	assert.Equal(t, Sleeping, h.sched.State())

	assert.Empty(t, h.light.Methods(waketest.MethodShowEffect, ""))
	require.Len(t, h.light.Calls(), 1)
	assert.Equal(t, waketest.MethodTurnOff, h.light.Calls()[0].Method)

	cancel()
	assert.ErrorIs(t, h.await(t, done), context.Canceled)
	assert.Equal(t, Idle, h.sched.State())
}

func TestMondayMorningScenario(t *testing.T) {
	h := newHarness(date(4, 8, 59), mondayOnly())
	h.run(t)

	planned := h.log.wait(t, events.DayPlanned)
	assert.Equal(t, "mon", planned.Day)
	assert.True(t, date(4, 9, 0).Equal(planned.Start))
	assert.True(t, date(4, 9, 30).Equal(planned.End))

	h.clock.BlockUntil(2)
	assert.Equal(t, EffectRunning, h.sched.State())
	current, ok := h.sched.Current()
	require.True(t, ok)
	assert.Equal(t, "session-1", current.ID)

	completed := h.drive(t, events.SessionCompleted, 2)
	assert.Equal(t, "session-1", completed.ID)

	pilots := h.light.Methods(waketest.MethodSetPilot, "session-1")
	require.NotEmpty(t, pilots)

	first := pilots[0]
	assert.True(t, date(4, 9, 0).Equal(first.At), "first actuation at %s", first.At)
	assert.Equal(t, 0, first.Brightness)
	assert.Equal(t, wake.Color{Temperature: 2200}, first.Color)

	var midway *waketest.Call
	for i := range pilots {
		if pilots[i].At.Equal(date(4, 9, 15)) {
			midway = &pilots[i]
		}
	}
	require.NotNil(t, midway, "no actuation at 09:15")
	assert.Equal(t, 100, midway.Brightness)

	last := pilots[len(pilots)-1]
	assert.Equal(t, 200, last.Brightness)
	assert.False(t, last.At.Before(date(4, 9, 30)))

	// the next morning has no window
	assert.Eventually(t, func() bool { return h.sched.State() == Sleeping }, 5*time.Second, time.Millisecond)
	h.clock.AdvanceTo(date(5, 0, 5))
	assert.Equal(t, "tue", h.log.wait(t, events.DayIdle).Day)
}

func TestLateTickPerformsNoActuation(t *testing.T) {
	h := newHarness(date(4, 10, 0), mondayOnly())
	h.run(t)

	completed := h.log.wait(t, events.SessionCompleted)
	assert.Equal(t, "session-1", completed.ID)
	assert.Len(t, h.light.Methods(waketest.MethodShowEffect, ""), 1)
	assert.Empty(t, h.light.Methods(waketest.MethodSetPilot, ""))
}

func TestTickSupersedesRunningSession(t *testing.T) {
	h := newHarness(date(4, 9, 10), mondayOnly())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.sched.tick(ctx))
	h.clock.BlockUntil(1)
	before := len(h.light.Methods(waketest.MethodSetPilot, "session-1"))
	require.Equal(t, 1, before)
	assert.Equal(t, 67, h.light.Brightnesses("session-1")[0])

	require.NoError(t, h.sched.tick(ctx))

	// exactly one session is active once the tick returns
	current, ok := h.sched.Current()
	require.True(t, ok)
	assert.Equal(t, "session-2", current.ID)
	cancelled := h.log.wait(t, events.SessionCancelled)
	assert.Equal(t, "session-1", cancelled.ID)

	// drive the replacement to completion; the first session stays silent
	completed := h.drive(t, events.SessionCompleted, 1)
	assert.Equal(t, "session-2", completed.ID)

	assert.Len(t, h.light.Methods(waketest.MethodSetPilot, "session-1"), before)
	second := h.light.Brightnesses("session-2")
	require.NotEmpty(t, second)
	assert.Equal(t, 67, second[0])
	assert.Equal(t, 200, second[len(second)-1])

	// no interleaving: every call of the first session precedes the second
	var seenSecond bool
	for _, c := range h.light.Calls() {
		switch c.Session {
		case "session-2":
			seenSecond = true
		case "session-1":
			assert.False(t, seenSecond, "session-1 actuated after session-2 started")
		}
	}
}

// stuckLight holds every session in a command until it is cancelled, then
// fails with the cancellation cause the way a device client may.
type stuckLight struct {
	inCommand chan struct{}
}

func (l *stuckLight) ShowEffect(ctx context.Context, session wake.Session) error {
	close(l.inCommand)
	<-ctx.Done()
	return fmt.Errorf("session %s: set brightness 3: %w", session.ID, context.Cause(ctx))
}

func (l *stuckLight) TurnOff(ctx context.Context) error {
	return nil
}

func TestSupersededCommandIsReportedAsCancelled(t *testing.T) {
	clock := waketest.NewFakeClock(date(4, 9, 5))
	bus := events.NewBus()
	log := watch(bus)
	light := &stuckLight{inCommand: make(chan struct{})}
	s := New(light, mondayOnly(), Options{MaxBrightness: 200}, clock, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.tick(ctx))

	select {
	case <-light.inCommand:
	case <-time.After(5 * time.Second):
		t.Fatal("session never reached the bulb")
	}
	s.stopCurrent(errSuperseded)

	types := log.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.SessionCancelled, types[len(types)-1])
	assert.NotContains(t, types, events.SessionFailed)
}

func TestSessionFailureIsReportedAndSchedulerContinues(t *testing.T) {
	h := newHarness(date(4, 9, 0), mondayOnly())
	h.light.FailSetPilot(func(n int) error {
		if n == 1 {
			return errors.New("udp timeout")
		}
		return nil
	})
	_, done := h.run(t)

	h.clock.BlockUntil(2)
	failed := h.drive(t, events.SessionFailed, 2)
	assert.Equal(t, "session-1", failed.ID)
	assert.Contains(t, failed.Error, "udp timeout")
	assert.Len(t, h.light.Methods(waketest.MethodSetPilot, "session-1"), 2)

	assert.Eventually(t, func() bool { return h.sched.State() == Sleeping }, 5*time.Second, time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("scheduler stopped after a session failure: %v", err)
	default:
	}
}

func TestStartupTurnOffFailure(t *testing.T) {
	h := newHarness(date(4, 8, 0), mondayOnly())
	h.light.FailTurnOff(errors.New("no route to host"))

	err := h.sched.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route to host")
	assert.Empty(t, h.light.Methods(waketest.MethodShowEffect, ""))
	assert.Equal(t, Idle, h.sched.State())
}

func TestShutdownCancelsAndAwaitsSession(t *testing.T) {
	h := newHarness(date(4, 9, 10), mondayOnly())
	cancel, done := h.run(t)

	h.log.wait(t, events.SessionStarted)
	h.clock.BlockUntil(2)
	assert.Equal(t, EffectRunning, h.sched.State())

	cancel()
	assert.ErrorIs(t, h.await(t, done), context.Canceled)

	// Run only returns after the session stopped
	_, running := h.sched.Current()
	assert.False(t, running)
	assert.Equal(t, Idle, h.sched.State())
	assert.Contains(t, h.log.types(), events.SessionCancelled)
	assert.NotContains(t, h.log.types(), events.SessionCompleted)

	pilots := len(h.light.Methods(waketest.MethodSetPilot, ""))
	h.clock.Advance(time.Hour)
	assert.Len(t, h.light.Methods(waketest.MethodSetPilot, ""), pilots)
}

func TestNewDefaults(t *testing.T) {
	s := New(waketest.NewRecorder(nil), schedule.Schedule{}, Options{}, nil, nil, nil)
	assert.Equal(t, DefaultNextDayOffset, s.opts.NextDayOffset)
	assert.NotEmpty(t, s.newID())
	assert.NotEqual(t, s.newID(), s.newID())
}
