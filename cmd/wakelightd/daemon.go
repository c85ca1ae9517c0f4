package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/wakelightd/internal/config"
	"github.com/jmylchreest/wakelightd/internal/events"
	"github.com/jmylchreest/wakelightd/internal/mqtt"
	"github.com/jmylchreest/wakelightd/internal/scheduler"
	"github.com/jmylchreest/wakelightd/pkg/wake"
	"github.com/jmylchreest/wakelightd/pkg/wiz"
)

const shutdownTimeout = 5 * time.Second

// brokerConn is the MQTT connection the daemon forwards events over
type brokerConn interface {
	mqtt.Publisher
	Close()
}

type connectFunc func(ctx context.Context, cfg config.MQTTConfig, topics mqtt.Topics, logger *slog.Logger) (brokerConn, error)

func connectBroker(ctx context.Context, cfg config.MQTTConfig, topics mqtt.Topics, logger *slog.Logger) (brokerConn, error) {
	return mqtt.Connect(ctx, cfg, topics, logger)
}

// daemon wires the bulb, the scheduler and the optional MQTT forwarder together
type daemon struct {
	cfg     *config.Config
	light   wake.Actuator
	clock   wake.Clock
	bus     *events.Bus
	logger  *slog.Logger
	connect connectFunc
}

// run discovers the bulb and runs the scheduler until ctx is cancelled.
// The bulb is turned off and released before run returns.
func (d *daemon) run(ctx context.Context) error {
	if d.connect == nil {
		d.connect = connectBroker
	}

	d.logger.Info("Discovering bulb", "mac", wiz.NormalizeMAC(d.cfg.BulbMAC), "broadcast", d.cfg.BroadcastAddr)
	if err := d.light.Discover(ctx); err != nil {
		return fmt.Errorf("failed to discover bulb: %w", err)
	}
	defer d.release()

	stopForwarding := d.startForwarding(ctx)
	defer stopForwarding()

	sched := scheduler.New(d.light, d.cfg.Schedule, scheduler.Options{
		NextDayOffset: d.cfg.Scheduler.NextDayOffset,
		Curve:         d.cfg.Effect.Curve,
		MaxBrightness: d.cfg.MaxBrightness,
		Color:         d.cfg.Effect.Color(),
		Sampling:      d.cfg.Effect.SamplingInterval,
		Rounding:      d.cfg.Effect.Rounding,
	}, d.clock, d.bus, d.logger)

	err := sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// release turns the bulb off and closes its connection
func (d *daemon) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.light.TurnOff(ctx); err != nil {
		d.logger.Error("Error turning off bulb", "error", err)
	}
	if err := d.light.Close(); err != nil {
		d.logger.Error("Error closing bulb connection", "error", err)
	}
}

// startForwarding connects to the broker when MQTT is enabled and forwards bus
// events until the returned func is called. A broker that cannot be reached
// is logged and the daemon carries on without it.
func (d *daemon) startForwarding(ctx context.Context) func() {
	if !d.cfg.MQTT.Enabled {
		return func() {}
	}

	topics := mqtt.Topics{Prefix: d.cfg.MQTT.TopicPrefix, MAC: wiz.NormalizeMAC(d.cfg.BulbMAC)}
	conn, err := d.connect(ctx, d.cfg.MQTT, topics, d.logger)
	if err != nil {
		d.logger.Warn("MQTT disabled, broker unreachable", "broker", d.cfg.MQTT.Broker, "error", err)
		return func() {}
	}

	fwd := mqtt.NewForwarder(conn, topics, d.cfg.MQTT.QoS, d.cfg.MQTT.QueueSize, d.logger)
	unsubscribe := fwd.Attach(d.bus)

	fwdCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() { fwd.Run(fwdCtx) })

	return func() {
		unsubscribe()
		cancel()
		wg.Wait()
		if n := fwd.Dropped(); n > 0 {
			d.logger.Warn("MQTT events dropped", "count", n)
		}
		conn.Close()
	}
}
