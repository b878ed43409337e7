package bridge

import "time"

// AckStatus describes the lifecycle stage of a command acknowledgement.
type AckStatus string

// Acknowledgement statuses.
const (
	// AckAccepted means the command was parsed and is being executed.
	AckAccepted AckStatus = "accepted"

	// AckCompleted means the vendor cloud accepted the command.
	AckCompleted AckStatus = "completed"

	// AckFailed means the command could not be executed.
	AckFailed AckStatus = "failed"
)

// Command error codes published in failed acks.
const (
	ErrCodeInvalidPayload    = "invalid_payload"
	ErrCodeUnknownDevice     = "unknown_device"
	ErrCodeInvalidCommand    = "invalid_command"
	ErrCodeInvalidParameters = "invalid_parameters"
	ErrCodeUnsupported       = "unsupported"
	ErrCodeCloudError        = "cloud_error"
)

// CommandMessage is the payload expected on pawlink/command/{class}/{id}.
type CommandMessage struct {
	// ID is a caller-chosen correlation ID echoed back in acks.
	ID string `json:"id"`

	// Command names the operation: clean, nightlight, feed, set_schedule,
	// refresh.
	Command string `json:"command"`

	// Parameters carries command-specific arguments.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AckMessage is published to pawlink/ack/{class}/{id} in response to a
// command. A command normally produces two acks: accepted, then completed
// or failed.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMessage is published retained to pawlink/state/{class}/{id} whenever
// an appliance reports a state change.
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Class     string         `json:"class"`
	Name      string         `json:"name,omitempty"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// newAck builds an acknowledgement for the given command.
func newAck(cmd CommandMessage, deviceID string, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// newAckError builds a failed acknowledgement with an error code and detail.
func newAckError(cmd CommandMessage, deviceID, code, message string) AckMessage {
	ack := newAck(cmd, deviceID, AckFailed)
	ack.ErrorCode = code
	ack.Error = message
	return ack
}
