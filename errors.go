package pawlink

import "errors"

var (
	// ErrNotConnected is returned when device access or transport control is
	// attempted before Connect has succeeded.
	ErrNotConnected = errors.New("pawlink: account not connected")

	// ErrUnknownDevice is returned when a device ID does not belong to this
	// account.
	ErrUnknownDevice = errors.New("pawlink: unknown device")
)
