package wiz

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jmylchreest/wakelightd/internal/errors"
	"github.com/jmylchreest/wakelightd/pkg/wake"
)

// DefaultDiscoveryTimeout is how long Discover waits for the bulb to answer
const DefaultDiscoveryTimeout = 10 * time.Second

// Options tune how a Light talks to the network
type Options struct {
	Port             int           // bulb UDP port, DefaultPort when zero
	DiscoveryTimeout time.Duration // DefaultDiscoveryTimeout when zero
	CommandTimeout   time.Duration // per command including resends
	Clock            wake.Clock    // clock for effects, the system clock when nil
}

// Light is a WiZ bulb identified by MAC address. It satisfies wake.Actuator.
type Light struct {
	mac       string
	broadcast string
	opts      Options
	logger    *slog.Logger

	mu     sync.RWMutex
	client *Client
}

var _ wake.Actuator = (*Light)(nil)

// NewLight creates a light that will be located by broadcasting on broadcastAddr
func NewLight(mac, broadcastAddr string, logger *slog.Logger, opts Options) *Light {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = wake.SystemClock{}
	}
	return &Light{
		mac:       NormalizeMAC(mac),
		broadcast: broadcastAddr,
		opts:      opts,
		logger:    logger,
	}
}

// MAC returns the normalized MAC address of the bulb
func (l *Light) MAC() string {
	return l.mac
}

// IP returns the bulb address, or nil before discovery
func (l *Light) IP() net.IP {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.client == nil {
		return nil
	}
	return l.client.Addr().IP
}

// Discover broadcasts until the bulb with the configured MAC answers
func (l *Light) Discover(ctx context.Context) error {
	l.logger.Info("light: discovering bulb", "mac", l.mac, "broadcast", l.broadcast, "timeout", l.opts.DiscoveryTimeout)

	scanCtx, cancel := context.WithTimeout(ctx, l.opts.DiscoveryTimeout)
	defer cancel()

	var match *Bulb
	err := Scan(scanCtx, l.broadcast, l.opts.Port, l.logger, func(b Bulb) bool {
		if b.MAC != l.mac {
			return false
		}
		match = &b
		return true
	})
	if err != nil {
		return errors.LogErrorAndReturn(l.logger, err, "light: discovery failed", "mac", l.mac)
	}
	if match == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.NotFoundf("no bulb with mac %s answered on %s within %s", l.mac, l.broadcast, l.opts.DiscoveryTimeout)
	}

	client, err := Dial(match.IP, l.opts.Port, l.logger, l.opts.CommandTimeout)
	if err != nil {
		return err
	}

	l.mu.Lock()
	old := l.client
	l.client = client
	l.mu.Unlock()
	if old != nil {
		old.Close()
	}

	l.logger.Info("light: bulb found", "mac", l.mac, "ip", match.IP.String())
	return nil
}

func (l *Light) connected(op string) (*Client, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.client == nil {
		return nil, errors.NotDiscoveredf("%s %s", op, l.mac)
	}
	return l.client, nil
}

// SetPilot implements wake.Setter
func (l *Light) SetPilot(ctx context.Context, brightness int, color wake.Color) error {
	client, err := l.connected("set pilot on")
	if err != nil {
		return err
	}
	return client.SetPilot(ctx, brightness, color)
}

// TurnOff implements wake.Actuator
func (l *Light) TurnOff(ctx context.Context) error {
	client, err := l.connected("turn off")
	if err != nil {
		return err
	}
	if err := client.TurnOff(ctx); err != nil {
		return err
	}
	l.logger.Info("light: turned off", "mac", l.mac)
	return nil
}

// Close implements wake.Actuator. The light must be discovered again before reuse.
func (l *Light) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return errors.NotDiscoveredf("close %s", l.mac)
	}
	err := l.client.Close()
	l.client = nil
	l.logger.Info("light: connection closed", "mac", l.mac)
	return err
}

// ShowEffect implements wake.Actuator by running the session against this bulb
func (l *Light) ShowEffect(ctx context.Context, s wake.Session) error {
	if _, err := l.connected("show effect on"); err != nil {
		return err
	}
	return wake.Run(ctx, l, s, l.opts.Clock, l.logger)
}
