package tim

import "github.com/google/uuid"

// TargetEndpoint is a resolved broadcast destination: a device and its
// parent site, with the geometry the broadcast should carry.
type TargetEndpoint struct {
	SiteID   uuid.UUID `json:"site_id"`
	SiteName string    `json:"site_name"`

	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`

	SiteValid   bool `json:"site_valid"`
	DeviceValid bool `json:"device_valid"`

	Location []float64     `json:"location,omitempty"`
	Region   [][][]float64 `json:"region,omitempty"`
}

// Usable reports whether both sides of the endpoint resolved.
func (t TargetEndpoint) Usable() bool {
	return t.SiteValid && t.DeviceValid
}
