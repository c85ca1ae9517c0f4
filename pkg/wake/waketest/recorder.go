package waketest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/wakelightd/pkg/wake"
)

// Recorded method names
const (
	MethodDiscover   = "discover"
	MethodSetPilot   = "set_pilot"
	MethodTurnOff    = "turn_off"
	MethodClose      = "close"
	MethodShowEffect = "show_effect"
)

// Call is one recorded bulb command
type Call struct {
	Method     string
	Session    string
	Brightness int
	Color      wake.Color
	At         time.Time
}

// Recorder is a wake.Actuator that records every call with the clock's timestamp
type Recorder struct {
	clock  wake.Clock
	logger *slog.Logger

	mu          sync.Mutex
	calls       []Call
	pilots      int
	setPilotErr func(n int) error
	turnOffErr  error
	discoverErr error
}

var _ wake.Actuator = (*Recorder)(nil)

// NewRecorder returns a Recorder timestamping calls with clock
func NewRecorder(clock wake.Clock) *Recorder {
	if clock == nil {
		clock = wake.SystemClock{}
	}
	return &Recorder{
		clock:  clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// FailSetPilot makes the n-th SetPilot call (0-based, across sessions) return fn(n)
func (r *Recorder) FailSetPilot(fn func(n int) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setPilotErr = fn
}

// FailTurnOff makes TurnOff return err
func (r *Recorder) FailTurnOff(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnOffErr = err
}

// FailDiscover makes Discover return err
func (r *Recorder) FailDiscover(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoverErr = err
}

func (r *Recorder) record(c Call) {
	c.At = r.clock.Now()
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Discover implements wake.Actuator
func (r *Recorder) Discover(ctx context.Context) error {
	r.record(Call{Method: MethodDiscover})
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverErr
}

// TurnOff implements wake.Actuator
func (r *Recorder) TurnOff(ctx context.Context) error {
	r.record(Call{Method: MethodTurnOff})
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnOffErr
}

// Close implements wake.Actuator
func (r *Recorder) Close() error {
	r.record(Call{Method: MethodClose})
	return nil
}

// SetPilot implements wake.Setter
func (r *Recorder) SetPilot(ctx context.Context, brightness int, color wake.Color) error {
	return r.setPilot("", brightness, color)
}

func (r *Recorder) setPilot(session string, brightness int, color wake.Color) error {
	r.record(Call{Method: MethodSetPilot, Session: session, Brightness: brightness, Color: color})

	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.pilots
	r.pilots++
	if r.setPilotErr != nil {
		return r.setPilotErr(n)
	}
	return nil
}

// ShowEffect implements wake.Actuator by running the session against the recorder
func (r *Recorder) ShowEffect(ctx context.Context, s wake.Session) error {
	r.record(Call{Method: MethodShowEffect, Session: s.ID})
	return wake.Run(ctx, sessionSetter{r: r, id: s.ID}, s, r.clock, r.logger)
}

// sessionSetter tags SetPilot calls with the session that issued them
type sessionSetter struct {
	r  *Recorder
	id string
}

func (s sessionSetter) SetPilot(ctx context.Context, brightness int, color wake.Color) error {
	return s.r.setPilot(s.id, brightness, color)
}

// Calls returns a copy of all recorded calls in order
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded calls filtered by method, optionally restricted to one session
func (r *Recorder) Methods(method string, session string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method != method {
			continue
		}
		if session != "" && c.Session != session {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Brightnesses returns the brightness levels set by a session, in order
func (r *Recorder) Brightnesses(session string) []int {
	var out []int
	for _, c := range r.Methods(MethodSetPilot, session) {
		out = append(out, c.Brightness)
	}
	return out
}
