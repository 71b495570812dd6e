package tim

import (
	"time"

	"github.com/google/uuid"

	"timcast/internal/itis"
)

// Document is one concrete broadcast instance dispatched to one device.
type Document struct {
	ID      uuid.UUID `json:"id"`
	BatchID uuid.UUID `json:"batch_id"`

	SiteID   uuid.UUID `json:"site_id"`
	DeviceID uuid.UUID `json:"device_id"`

	Deleted   bool       `json:"deleted"`
	State     State      `json:"state"`
	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	Action    Action     `json:"action"`

	// SlotIndex is the device-assigned message slot, set on confirmation.
	SlotIndex   *int `json:"slot_index,omitempty"`
	Alternating bool `json:"alternating"`

	DeliveryStart    time.Time     `json:"delivery_start"`
	DeliveryDuration time.Duration `json:"delivery_duration"`
	Enable           bool          `json:"enable"`

	Code     itis.Code     `json:"itis_code"`
	Category itis.Category `json:"category"`
	Payload  []int         `json:"payload"`
	Text     string        `json:"text,omitempty"`

	// CancelOnDuration marks broadcasts that self-expire after their
	// delivery duration instead of being renewed indefinitely.
	CancelOnDuration bool `json:"cancel_on_duration"`

	// Location is the broadcast anchor point (lon, lat). Region is the
	// geofence polygon in GeoJSON ring order.
	Location []float64     `json:"location,omitempty"`
	Region   [][][]float64 `json:"region,omitempty"`
}

// Command converts a document to its outbound device command.
func (d Document) Command(now time.Time) CommandRequest {
	return CommandRequest{
		Action:           d.Action,
		ID:               d.ID,
		DeviceID:         d.DeviceID,
		SlotIndex:        d.SlotIndex,
		Alternating:      d.Alternating,
		DeliveryStart:    d.DeliveryStart,
		DeliveryDuration: d.DeliveryDuration,
		Enable:           d.Enable,
		Payload:          d.Payload,
		Text:             d.Text,
		Timestamp:        now,
		Location:         d.Location,
		Region:           d.Region,
	}
}
