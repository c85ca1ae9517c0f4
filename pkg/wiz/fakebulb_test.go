package wiz

import (
	"encoding/json"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBulb answers the WiZ UDP protocol on a loopback port
type fakeBulb struct {
	t    *testing.T
	conn *net.UDPConn
	mac  string

	mu       sync.Mutex
	requests []map[string]any
	drop     int    // number of setPilot requests to ignore before answering
	silent   bool   // never answer setPilot
	errMsg   string // answer setPilot with an error
	noID     bool   // omit the id from replies, like older firmware
}

func newFakeBulb(t *testing.T, mac string) *fakeBulb {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	b := &fakeBulb{t: t, conn: conn, mac: mac}
	go b.serve()
	t.Cleanup(func() { conn.Close() })
	return b
}

func (b *fakeBulb) port() int {
	return b.conn.LocalAddr().(*net.UDPAddr).Port
}

func (b *fakeBulb) serve() {
	buf := make([]byte, 2048)
	for {
		n, src, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}

		b.mu.Lock()
		b.requests = append(b.requests, req)
		reply := b.replyFor(req)
		b.mu.Unlock()

		if reply != nil {
			out, _ := json.Marshal(reply)
			b.conn.WriteToUDP(out, src)
		}
	}
}

// replyFor builds the answer to a request; the caller holds mu
func (b *fakeBulb) replyFor(req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	reply := map[string]any{"method": method, "env": "pro"}
	if id, ok := req["id"]; ok && !b.noID {
		reply["id"] = id
	}

	switch method {
	case methodRegistration:
		reply["result"] = map[string]any{"mac": b.mac, "success": true}
	case methodSetPilot:
		if b.silent {
			return nil
		}
		if b.drop > 0 {
			b.drop--
			return nil
		}
		if b.errMsg != "" {
			reply["error"] = map[string]any{"code": -32600, "message": b.errMsg}
			return reply
		}
		reply["result"] = map[string]any{"success": true}
	case methodGetPilot:
		reply["result"] = map[string]any{"mac": b.mac, "state": true, "dimming": 42, "temp": 2700, "rssi": -60}
	default:
		return nil
	}
	return reply
}

// pilots returns the params of every setPilot request received
func (b *fakeBulb) pilots() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, r := range b.requests {
		if r["method"] == methodSetPilot {
			params, _ := r["params"].(map[string]any)
			out = append(out, params)
		}
	}
	return out
}

func (b *fakeBulb) set(fn func(b *fakeBulb)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}
