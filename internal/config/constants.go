package config

import "time"

// File and directory names
const (
	// ConfigDirName is the name of the config directory within XDG_CONFIG_HOME
	ConfigDirName = "wakelight"

	// DaemonConfigFilename is the base filename for daemon config
	DaemonConfigFilename = "wakelightd.yaml"

	// SystemConfigDir is XDG_CONFIG_HOME for the system service
	SystemConfigDir = "/etc/wakelightd"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "WAKELIGHT"
)

// Default timeouts and intervals
const (
	// DefaultSamplingInterval is how often the effect updates the bulb
	DefaultSamplingInterval = 15 * time.Second

	// DefaultNextDayOffset is how long after midnight the scheduler wakes up
	DefaultNextDayOffset = 5 * time.Minute

	// DefaultDiscoveryTimeout bounds the search for the bulb at startup
	DefaultDiscoveryTimeout = 10 * time.Second

	// DefaultCommandTimeout bounds one bulb command including resends
	DefaultCommandTimeout = 5 * time.Second

	// DefaultMQTTQueueSize is the number of status messages buffered for the broker
	DefaultMQTTQueueSize = 64
)

// Light constraints
const (
	// MinBrightness is the minimum allowed max_brightness value
	MinBrightness = 0

	// MaxBrightness is the maximum allowed max_brightness value
	MaxBrightness = 255

	// DefaultColorTemp is the colour temperature used when no RGB colour is set
	DefaultColorTemp = 2200

	// MinTemperature is the minimum allowed colour temperature (in Kelvin)
	MinTemperature = 1000

	// MaxTemperature is the maximum allowed colour temperature (in Kelvin)
	MaxTemperature = 10000
)

// Logging constants
const (
	// LogLevelDebug represents debug log level
	LogLevelDebug = "debug"

	// LogLevelInfo represents info log level
	LogLevelInfo = "info"

	// LogLevelWarn represents warning log level
	LogLevelWarn = "warn"

	// LogLevelError represents error log level
	LogLevelError = "error"

	// LogFormatText represents text log format
	LogFormatText = "text"

	// LogFormatJSON represents JSON log format
	LogFormatJSON = "json"
)
