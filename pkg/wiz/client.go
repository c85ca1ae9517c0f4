package wiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	werrors "github.com/jmylchreest/wakelightd/internal/errors"
	"github.com/jmylchreest/wakelightd/pkg/wake"
)

const (
	// defaultCommandTimeout bounds one command including resends
	defaultCommandTimeout = 5 * time.Second

	// defaultAttempts is how often a command is sent before giving up.
	// UDP offers no delivery guarantee so the bulb protocol expects resends.
	defaultAttempts = 3

	maxPacketSize = 1024
)

// Client handles UDP communication with a single WiZ bulb
type Client struct {
	addr     *net.UDPAddr
	conn     *net.UDPConn
	logger   *slog.Logger
	timeout  time.Duration
	attempts int

	// one request in flight at a time so replies cannot be confused
	mu     sync.Mutex
	nextID int
}

// Dial opens a client for the bulb at ip:port
func Dial(ip net.IP, port int, logger *slog.Logger, timeout time.Duration) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if port == 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	addr := &net.UDPAddr{IP: ip, Port: port}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, werrors.DeviceUnavailablef("failed to open connection to %s: %v", addr, err)
	}
	return &Client{
		addr:     addr,
		conn:     conn,
		logger:   logger,
		timeout:  timeout,
		attempts: defaultAttempts,
	}, nil
}

// Addr returns the bulb address
func (c *Client) Addr() *net.UDPAddr {
	return c.addr
}

// Close closes the underlying socket
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetPilot switches the bulb on at the given 0-255 brightness and colour
func (c *Client) SetPilot(ctx context.Context, brightness int, color wake.Color) error {
	params := pilotParams(brightness, color)
	c.logger.Debug("light: setting pilot",
		"addr", c.addr.String(),
		"brightness", brightness,
		"dimming", params["dimming"],
		"color", color.String())

	var result successResult
	if err := c.call(ctx, methodSetPilot, params, &result); err != nil {
		return err
	}
	if !result.Success {
		return werrors.DeviceUnavailablef("bulb %s rejected setPilot", c.addr)
	}
	return nil
}

// TurnOff switches the bulb off
func (c *Client) TurnOff(ctx context.Context) error {
	c.logger.Debug("light: turning off", "addr", c.addr.String())

	var result successResult
	if err := c.call(ctx, methodSetPilot, map[string]any{"state": false}, &result); err != nil {
		return err
	}
	if !result.Success {
		return werrors.DeviceUnavailablef("bulb %s rejected turn off", c.addr)
	}
	return nil
}

// GetPilot reads the current bulb state
func (c *Client) GetPilot(ctx context.Context) (*PilotState, error) {
	var state PilotState
	if err := c.call(ctx, methodGetPilot, map[string]any{}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// call sends a request and decodes the matching reply into result.
// The request is resent when no reply arrives within the per-attempt share of the timeout.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	payload, err := json.Marshal(request{ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	caller := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// unblock a pending read as soon as the context ends
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	perAttempt := c.timeout / time.Duration(c.attempts)
	buf := make([]byte, maxPacketSize)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if _, err := c.conn.Write(payload); err != nil {
			return werrors.DeviceUnavailablef("failed to send %s to %s: %v", method, c.addr, err)
		}
		c.conn.SetReadDeadline(time.Now().Add(perAttempt))

		resp, err := c.readReply(buf, method, c.nextID)
		if err == nil {
			if resp.Error != nil {
				return werrors.DeviceUnavailablef("%s to %s failed: %v", method, c.addr, resp.Error)
			}
			if result != nil && len(resp.Result) > 0 {
				if err := json.Unmarshal(resp.Result, result); err != nil {
					return fmt.Errorf("failed to decode %s response: %w", method, err)
				}
			}
			return nil
		}

		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return werrors.DeviceUnavailablef("failed to read %s reply from %s: %v", method, c.addr, err)
		}
		c.logger.Debug("light: no reply, resending", "method", method, "addr", c.addr.String(), "attempt", attempt)
	}

	// a cancelled caller gets ctx.Err back, not a device failure
	if err := caller.Err(); err != nil {
		c.logger.Debug("light: command abandoned", "method", method, "addr", c.addr.String(), "reason", context.Cause(caller))
		return err
	}
	return werrors.DeviceUnavailablef("no reply to %s from %s after %d attempts", method, c.addr, c.attempts)
}

// readReply reads packets until one answers method. Stray, stale or malformed packets are skipped.
// Older firmware does not echo the request id, so a missing id is accepted.
func (c *Client) readReply(buf []byte, method string, id int) (*response, error) {
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		var resp response
		if err := json.Unmarshal(buf[:n], &resp); err != nil {
			c.logger.Debug("light: ignoring malformed packet", "addr", c.addr.String(), "error", err)
			continue
		}
		if resp.Method != method || (resp.ID != 0 && resp.ID != id) {
			continue
		}
		return &resp, nil
	}
}
