package config

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/wakelightd/internal/errors"
	"github.com/jmylchreest/wakelightd/pkg/schedule"
	"github.com/jmylchreest/wakelightd/pkg/wake"
)

// Config represents the daemon configuration
type Config struct {
	MaxBrightness int
	BroadcastAddr string
	BulbMAC       string
	Schedule      schedule.Schedule

	Effect    EffectConfig
	Scheduler SchedulerConfig
	Discovery DiscoveryConfig
	Logging   LoggingConfig
	MQTT      MQTTConfig

	// path of the file the configuration was read from
	path string
}

// EffectConfig shapes the wake effect
type EffectConfig struct {
	CurveName        string
	Curve            wake.Curve
	SamplingInterval time.Duration
	ColorTemp        int
	RGB              *wake.RGB
	Rounding         wake.Rounding
}

// Color returns the colour the effect drives the bulb with. RGB wins over colour temperature.
func (e EffectConfig) Color() wake.Color {
	if e.RGB != nil {
		rgb := *e.RGB
		return wake.Color{RGB: &rgb}
	}
	return wake.Color{Temperature: e.ColorTemp}
}

// SchedulerConfig represents the daily scheduler configuration
type SchedulerConfig struct {
	NextDayOffset time.Duration
}

// DiscoveryConfig represents the bulb discovery configuration
type DiscoveryConfig struct {
	Timeout        time.Duration
	CommandTimeout time.Duration
	Port           int
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MQTTConfig represents the optional MQTT status publisher
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	QueueSize   int
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("effect.curve", wake.CurveLinearCapped)
	v.SetDefault("effect.sampling_interval", DefaultSamplingInterval)
	v.SetDefault("effect.color_temp", DefaultColorTemp)
	v.SetDefault("effect.rounding", string(wake.RoundNearest))
	v.SetDefault("scheduler.next_day_offset", DefaultNextDayOffset)
	v.SetDefault("discovery.timeout", DefaultDiscoveryTimeout)
	v.SetDefault("discovery.command_timeout", DefaultCommandTimeout)
	v.SetDefault("discovery.port", 38899)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.format", LogFormatText)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "wakelightd")
	v.SetDefault("mqtt.topic_prefix", "wakelight")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.queue_size", DefaultMQTTQueueSize)
}

// Load loads configuration from a file and environment variables.
// Unlike the optional settings, the file itself is required: it holds the bulb and the weekly plan.
func Load(configName, configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		slog.Info("Using config file from command line", "path", configFile)
	} else {
		configFile = GetConfigPath(configName)
		v.SetConfigFile(configFile)
		slog.Info("Using default config file", "path", configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.InvalidConfigf("error reading config file %s: %v", configFile, err)
	}

	// Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v, configFile)
}

func fromViper(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{
		BroadcastAddr: strings.TrimSpace(v.GetString("broadcast_addr")),
		BulbMAC:       strings.TrimSpace(v.GetString("bulb_mac")),
		Effect: EffectConfig{
			CurveName:        v.GetString("effect.curve"),
			SamplingInterval: v.GetDuration("effect.sampling_interval"),
			ColorTemp:        v.GetInt("effect.color_temp"),
		},
		Scheduler: SchedulerConfig{
			NextDayOffset: v.GetDuration("scheduler.next_day_offset"),
		},
		Discovery: DiscoveryConfig{
			Timeout:        v.GetDuration("discovery.timeout"),
			CommandTimeout: v.GetDuration("discovery.command_timeout"),
			Port:           v.GetInt("discovery.port"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		MQTT: MQTTConfig{
			Enabled:     v.GetBool("mqtt.enabled"),
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			Username:    v.GetString("mqtt.username"),
			Password:    v.GetString("mqtt.password"),
			TopicPrefix: strings.Trim(v.GetString("mqtt.topic_prefix"), "/"),
			QueueSize:   v.GetInt("mqtt.queue_size"),
		},
		path: path,
	}

	if !v.IsSet("max_brightness") {
		return nil, errors.InvalidConfigf("max_brightness should be a part of the config")
	}
	maxBrightness, err := cast.ToIntE(v.Get("max_brightness"))
	if err != nil || maxBrightness < MinBrightness || maxBrightness > MaxBrightness {
		return nil, errors.InvalidConfigf("max_brightness should be in the range [%d, %d], got %v",
			MinBrightness, MaxBrightness, v.Get("max_brightness"))
	}
	cfg.MaxBrightness = maxBrightness

	if !v.IsSet("days") {
		return nil, errors.InvalidConfigf("days should be a part of the config")
	}
	sched, err := parseDays(v.Get("days"))
	if err != nil {
		return nil, err
	}
	cfg.Schedule = sched

	if cfg.BulbMAC == "" {
		return nil, errors.InvalidConfigf("bulb_mac should be a part of the config")
	}
	if cfg.BroadcastAddr == "" {
		return nil, errors.InvalidConfigf("broadcast_addr should be a part of the config")
	}

	if err := parseEffect(v, &cfg.Effect); err != nil {
		return nil, err
	}

	if cfg.Scheduler.NextDayOffset <= 0 || cfg.Scheduler.NextDayOffset >= 24*time.Hour {
		return nil, errors.InvalidConfigf("scheduler.next_day_offset should be positive and within a day, got %s", cfg.Scheduler.NextDayOffset)
	}
	if cfg.Discovery.Timeout <= 0 {
		return nil, errors.InvalidConfigf("discovery.timeout should be positive, got %s", cfg.Discovery.Timeout)
	}
	if cfg.Discovery.CommandTimeout <= 0 {
		return nil, errors.InvalidConfigf("discovery.command_timeout should be positive, got %s", cfg.Discovery.CommandTimeout)
	}
	if cfg.Discovery.Port <= 0 || cfg.Discovery.Port > 65535 {
		return nil, errors.InvalidConfigf("discovery.port should be a valid UDP port, got %d", cfg.Discovery.Port)
	}

	if qos := v.GetInt("mqtt.qos"); qos >= 0 && qos <= 2 {
		cfg.MQTT.QoS = byte(qos)
	} else if cfg.MQTT.Enabled {
		return nil, errors.InvalidConfigf("mqtt.qos should be 0, 1 or 2, got %d", qos)
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return nil, errors.InvalidConfigf("mqtt.broker should be set when mqtt is enabled")
		}
		if cfg.MQTT.QueueSize <= 0 {
			return nil, errors.InvalidConfigf("mqtt.queue_size should be positive, got %d", cfg.MQTT.QueueSize)
		}
	}

	return cfg, nil
}

// parseDays builds the weekly schedule from the days mapping. Days left out have no window.
func parseDays(raw any) (schedule.Schedule, error) {
	days, ok := raw.(map[string]any)
	if !ok {
		return schedule.Schedule{}, errors.InvalidConfigf("days should be a mapping of weekday names")
	}

	var slots [schedule.DaysPerWeek]*schedule.Window
	for _, name := range slices.Sorted(maps.Keys(days)) {
		index, ok := schedule.DayIndex(name)
		if !ok {
			return schedule.Schedule{}, errors.InvalidConfigf("days.%s: unknown day, expected one of %s",
				name, strings.Join(schedule.DayNames[:], ", "))
		}
		fields, ok := days[name].(map[string]any)
		if !ok {
			return schedule.Schedule{}, errors.InvalidConfigf("days.%s: start and end should be part of each day", name)
		}

		var window schedule.Window
		for _, part := range []struct {
			key string
			dst *schedule.TimeOfDay
		}{
			{"start", &window.Start},
			{"end", &window.End},
		} {
			value, ok := fields[part.key]
			if !ok || value == nil {
				return schedule.Schedule{}, errors.InvalidConfigf("days.%s.%s: start and end should be part of each day", name, part.key)
			}
			text, ok := value.(string)
			if !ok {
				return schedule.Schedule{}, errors.InvalidConfigf("days.%s.%s: expected a time as HH:MM, got %v", name, part.key, value)
			}
			parsed, err := schedule.ParseTimeOfDay(text)
			if err != nil {
				return schedule.Schedule{}, errors.InvalidConfigf("days.%s.%s: %v", name, part.key, err)
			}
			*part.dst = parsed
		}

		if !window.Valid() {
			return schedule.Schedule{}, errors.InvalidConfigf("days.%s: start %s should be before end %s", name, window.Start, window.End)
		}
		slots[index] = &window
	}
	return schedule.New(slots), nil
}

func parseEffect(v *viper.Viper, effect *EffectConfig) error {
	curve, err := wake.CurveByName(effect.CurveName)
	if err != nil {
		return errors.InvalidConfigf("effect.curve: %v", err)
	}
	effect.Curve = curve

	rounding, err := wake.ParseRounding(v.GetString("effect.rounding"))
	if err != nil {
		return errors.InvalidConfigf("effect.rounding: %v", err)
	}
	effect.Rounding = rounding

	if effect.SamplingInterval <= 0 {
		return errors.InvalidConfigf("effect.sampling_interval should be positive, got %s", effect.SamplingInterval)
	}
	if effect.ColorTemp < MinTemperature || effect.ColorTemp > MaxTemperature {
		return errors.InvalidConfigf("effect.color_temp should be in the range [%d, %d], got %d",
			MinTemperature, MaxTemperature, effect.ColorTemp)
	}

	if v.IsSet("effect.rgb") {
		values, err := cast.ToIntSliceE(v.Get("effect.rgb"))
		if err != nil || len(values) != 3 {
			return errors.InvalidConfigf("effect.rgb should be a list of three values [r, g, b]")
		}
		for _, c := range values {
			if c < 0 || c > 255 {
				return errors.InvalidConfigf("effect.rgb values should be in the range [0, 255], got %v", values)
			}
		}
		effect.RGB = &wake.RGB{R: uint8(values[0]), G: uint8(values[1]), B: uint8(values[2])}
	}
	return nil
}

// settings returns the effective configuration as nested maps for serialisation
func (c *Config) settings() map[string]any {
	days := make(map[string]any)
	for i, w := range c.Schedule.Days() {
		if w != nil {
			days[schedule.DayNames[i]] = map[string]string{
				"start": w.Start.String(),
				"end":   w.End.String(),
			}
		}
	}

	effect := map[string]any{
		"curve":             c.Effect.CurveName,
		"sampling_interval": c.Effect.SamplingInterval.String(),
		"color_temp":        c.Effect.ColorTemp,
		"rounding":          string(c.Effect.Rounding),
	}
	if c.Effect.RGB != nil {
		effect["rgb"] = []int{int(c.Effect.RGB.R), int(c.Effect.RGB.G), int(c.Effect.RGB.B)}
	}

	mqtt := map[string]any{
		"enabled":      c.MQTT.Enabled,
		"broker":       c.MQTT.Broker,
		"client_id":    c.MQTT.ClientID,
		"topic_prefix": c.MQTT.TopicPrefix,
		"qos":          int(c.MQTT.QoS),
		"queue_size":   c.MQTT.QueueSize,
	}
	if c.MQTT.Username != "" {
		mqtt["username"] = c.MQTT.Username
	}
	if c.MQTT.Password != "" {
		mqtt["password"] = "********"
	}

	return map[string]any{
		"max_brightness": c.MaxBrightness,
		"broadcast_addr": c.BroadcastAddr,
		"bulb_mac":       c.BulbMAC,
		"days":           days,
		"effect":         effect,
		"scheduler": map[string]any{
			"next_day_offset": c.Scheduler.NextDayOffset.String(),
		},
		"discovery": map[string]any{
			"timeout":         c.Discovery.Timeout.String(),
			"command_timeout": c.Discovery.CommandTimeout.String(),
			"port":            c.Discovery.Port,
		},
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
		"mqtt": mqtt,
	}
}

// WriteYAML writes the effective configuration as YAML. Secrets are masked.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.settings()); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}
