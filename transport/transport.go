package transport

import (
	"context"
	"time"
)

// Shared timing constants for both transport strategies.
const (
	// backoffCeiling is the maximum delay between retry attempts.
	// Exponential growth is capped here regardless of failure count.
	backoffCeiling = 300 * time.Second

	// defaultReconnectSeed is the first retry delay after a failed
	// connection session. The delay doubles on each consecutive failure
	// and resets to the seed after any successful session.
	defaultReconnectSeed = 5 * time.Second

	// defaultJoinTimeout bounds how long Stop waits for a background loop
	// to wind down before abandoning it.
	defaultJoinTimeout = 5 * time.Second
)

// Device is the contract transports consume. It is implemented by the
// appliance models in the device package; tests supply their own fakes.
type Device interface {
	// ID returns a key that is unique and stable for the device's lifetime.
	ID() string

	// Refresh pulls the latest state from the remote source of truth and
	// merges it into the device. Safe to call repeatedly.
	Refresh(ctx context.Context) error

	// UpdateData merges inbound data (push or poll) into device state.
	// Must accept partial payloads.
	UpdateData(data map[string]any)
}

// Transport is the unit of "keep this device's state fresh".
//
// Start and Stop are both idempotent: starting delivery twice for the same
// device is a no-op, and stopping a device that was never started is safe.
type Transport interface {
	Start(ctx context.Context, d Device) error
	Stop(ctx context.Context, d Device) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// nextDelay doubles a retry delay, capped at the backoff ceiling.
func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > backoffCeiling {
		d = backoffCeiling
	}
	return d
}
