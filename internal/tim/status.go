package tim

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"timcast/internal/itis"
)

// StatusView is the operator-facing summary of an active aggregate.
type StatusView struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	Site        string    `json:"site"`
	Device      string    `json:"device"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Status renders the aggregate against the resolved endpoints of its site.
func (a *Aggregate) Status(endpoints []TargetEndpoint) StatusView {
	var site, device string
	for _, e := range endpoints {
		if e.SiteID == a.SiteID {
			site = e.SiteName
			device = e.DeviceName
			break
		}
	}

	labels := make([]string, len(a.Payload))
	for i, code := range a.Payload {
		labels[i] = itis.Code(code).Label()
	}

	return StatusView{
		ID:          a.ID,
		BatchID:     a.BatchID,
		Site:        site,
		Device:      device,
		Status:      string(a.State),
		Message:     strings.Join(labels, ", "),
		DeliveredAt: a.DeliveryStart,
	}
}
