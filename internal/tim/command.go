package tim

import (
	"time"

	"github.com/google/uuid"
)

// CommandRequest is the outbound device command. Correlation with the later
// confirmation is by ID (the aggregate/instance ID).
type CommandRequest struct {
	Action   Action    `json:"action"`
	ID       uuid.UUID `json:"id"`
	DeviceID uuid.UUID `json:"device_id"`

	SlotIndex   *int `json:"slot_index,omitempty"`
	Alternating bool `json:"alternating"`

	DeliveryStart    time.Time     `json:"delivery_start"`
	DeliveryDuration time.Duration `json:"delivery_duration"`
	Enable           bool          `json:"enable"`

	Payload []int  `json:"payload"`
	Text    string `json:"text,omitempty"`

	Timestamp time.Time     `json:"timestamp"`
	Location  []float64     `json:"location,omitempty"`
	Region    [][][]float64 `json:"region,omitempty"`
}

// CommandResponse is the asynchronous confirmation returned by a device,
// keyed by the instance ID it responds to. Error is empty on success.
type CommandResponse struct {
	ID        uuid.UUID `json:"id"`
	Success   bool      `json:"success"`
	SlotIndex *int      `json:"slot_index,omitempty"`
	Error     string    `json:"error,omitempty"`
}
