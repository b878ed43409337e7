package influxdb

import "errors"

var (
	// ErrNotConnected means the client was closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed dial or ping during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when the influxdb section of
	// config.yaml has enabled set to false. Callers treat it as "run
	// without telemetry", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
