package wiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// resendInterval is how often the registration broadcast is repeated while scanning
const resendInterval = time.Second

// registration is the discovery broadcast. The phone fields are placeholders the
// firmware requires but does not act on when register is false.
var registration = request{
	Method: methodRegistration,
	Params: registrationParams{
		PhoneMAC: "AAAAAAAAAAAA",
		Register: false,
		PhoneIP:  "1.2.3.4",
		ID:       "1",
	},
}

// Scan broadcasts a registration message to broadcastAddr:port and calls found for
// every bulb that replies. Scanning stops when found returns true or ctx ends;
// the end of ctx is not treated as an error.
func Scan(ctx context.Context, broadcastAddr string, port int, logger *slog.Logger, found func(Bulb) bool) error {
	if logger == nil {
		logger = slog.Default()
	}
	if port == 0 {
		port = DefaultPort
	}

	ip := net.ParseIP(broadcastAddr)
	if ip == nil {
		return fmt.Errorf("invalid broadcast address %q", broadcastAddr)
	}
	dst := &net.UDPAddr{IP: ip, Port: port}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	payload, err := json.Marshal(registration)
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	seen := make(map[string]bool)
	buf := make([]byte, maxPacketSize)

	for ctx.Err() == nil {
		if _, err := conn.WriteToUDP(payload, dst); err != nil {
			return fmt.Errorf("failed to send discovery broadcast to %s: %w", dst, err)
		}
		logger.Debug("light: discovery broadcast sent", "addr", dst.String())

		conn.SetReadDeadline(time.Now().Add(resendInterval))
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					break
				}
				return fmt.Errorf("failed to read discovery reply: %w", err)
			}

			bulb, ok := parseRegistration(buf[:n], src)
			if !ok {
				continue
			}
			if !seen[bulb.MAC] {
				seen[bulb.MAC] = true
				logger.Debug("light: bulb answered discovery", "mac", bulb.MAC, "ip", bulb.IP.String())
			}
			if found(bulb) {
				return nil
			}
		}
	}
	return nil
}

// parseRegistration extracts a bulb from a registration reply
func parseRegistration(packet []byte, src *net.UDPAddr) (Bulb, bool) {
	var resp response
	if err := json.Unmarshal(packet, &resp); err != nil || resp.Method != methodRegistration || resp.Error != nil {
		return Bulb{}, false
	}
	var result registrationResult
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.MAC == "" {
		return Bulb{}, false
	}
	return Bulb{MAC: NormalizeMAC(result.MAC), IP: src.IP}, true
}

// DiscoverAll scans for the given duration and returns every bulb that replied
func DiscoverAll(ctx context.Context, broadcastAddr string, port int, timeout time.Duration, logger *slog.Logger) ([]Bulb, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bulbs []Bulb
	seen := make(map[string]bool)
	err := Scan(ctx, broadcastAddr, port, logger, func(b Bulb) bool {
		if !seen[b.MAC] {
			seen[b.MAC] = true
			bulbs = append(bulbs, b)
		}
		return false
	})
	return bulbs, err
}
