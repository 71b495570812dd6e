package tim

import (
	"time"

	"github.com/google/uuid"

	"timcast/internal/itis"
)

// TargetKind is the abstract targeting intent of a request.
type TargetKind string

const (
	TargetNone       TargetKind = "None"
	TargetExplicit   TargetKind = "Target"
	TargetRadius     TargetKind = "Radius"
	TargetDownstream TargetKind = "Downstream"
	TargetUpstream   TargetKind = "Upstream"
)

// Request is an inbound broadcast request. Its ID doubles as the batch ID of
// every instance it creates.
type Request struct {
	ID     uuid.UUID `json:"id"`
	Cancel bool      `json:"cancel"`

	Category itis.Category `json:"category"`
	Code     itis.Code     `json:"itis_code"`
	Text     string        `json:"text,omitempty"`

	TransmitMode TransmitMode      `json:"transmit_mode"`
	DurationUnit itis.DurationUnit `json:"duration_unit,omitempty"`
	Duration     *int              `json:"duration,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	TargetKind TargetKind  `json:"target_kind"`
	Targets    []uuid.UUID `json:"targets,omitempty"`
	Parameters []string    `json:"parameters,omitempty"`
}

// HasPoint reports whether the request carries an anchor point.
func (r Request) HasPoint() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// DeliveryDuration scales the numeric duration by its unit.
// Requests without a duration default to one minute.
func (r Request) DeliveryDuration() time.Duration {
	if r.Duration == nil {
		return time.Minute
	}
	n := time.Duration(*r.Duration)
	switch r.DurationUnit {
	case itis.UnitHours:
		return n * time.Hour
	case itis.UnitDays:
		return n * 24 * time.Hour
	case itis.UnitWeeks:
		return n * 7 * 24 * time.Hour
	default:
		return n * time.Minute
	}
}
