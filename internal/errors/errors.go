package errors

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidConfig is returned when the configuration is missing a field or holds an invalid value
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrNotFound is returned when the configured bulb does not answer discovery
var ErrNotFound = errors.New("bulb not found")

// ErrNotDiscovered is returned when a bulb command is issued before discovery succeeded
var ErrNotDiscovered = errors.New("bulb should be discovered first")

// ErrDeviceUnavailable is returned when a device can't be reached or is not responding
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrInternal is returned for unexpected internal errors
var ErrInternal = errors.New("internal error")

// LogErrorAndReturn logs an error with structured context and returns it
func LogErrorAndReturn(logger *slog.Logger, err error, message string, args ...any) error {
	if err == nil {
		return nil
	}

	logger.Error(message, append([]any{"error", err}, args...)...)
	return err
}

// WrapErrorf wraps an error with additional context using fmt.Errorf
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// IsInvalidConfig returns true if the error is or wraps ErrInvalidConfig
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsNotFound returns true if the error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotDiscovered returns true if the error is or wraps ErrNotDiscovered
func IsNotDiscovered(err error) bool {
	return errors.Is(err, ErrNotDiscovered)
}

// IsDeviceUnavailable returns true if the error is or wraps ErrDeviceUnavailable
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}

// InvalidConfigf returns a formatted ErrInvalidConfig error
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidConfig)...)
}

// NotFoundf returns a formatted ErrNotFound error
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// NotDiscoveredf returns a formatted ErrNotDiscovered error
func NotDiscoveredf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotDiscovered)...)
}

// DeviceUnavailablef returns a formatted ErrDeviceUnavailable error
func DeviceUnavailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrDeviceUnavailable)...)
}

// Internalf returns a formatted ErrInternal error
func Internalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInternal)...)
}
