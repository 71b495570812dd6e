package tim

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is the consolidated broadcast for one (device, category, code)
// key. It embeds the Document the device actually sees; Members holds the
// per-request instances currently contributing to it.
//
// Version is the store's optimistic-concurrency token; it is bumped on every
// committed write.
type Aggregate struct {
	Document

	Members []Document `json:"members"`
	Version int64      `json:"-"`
}

// NewAggregate creates an aggregate from its first member. The aggregate
// adopts the member's identity; devices correlate confirmations by this ID.
func NewAggregate(doc Document) *Aggregate {
	return &Aggregate{
		Document: doc,
		Members:  []Document{doc},
	}
}

// AddMember merges another instance into the aggregate and recomputes the
// delivery window.
func (a *Aggregate) AddMember(doc Document) {
	a.Members = append(a.Members, doc)
	a.applyWindow()
}

// RemoveMember drops the instance with the given ID. The window is
// recomputed only while members remain; an emptied aggregate keeps its last
// window so the final cancel command still carries it.
func (a *Aggregate) RemoveMember(id uuid.UUID) {
	kept := a.Members[:0]
	for _, m := range a.Members {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	a.Members = kept
	if len(a.Members) == 0 {
		return
	}
	a.applyWindow()
}

// MemberByBatch returns the member created by the given batch, if any.
func (a *Aggregate) MemberByBatch(batchID uuid.UUID) (Document, bool) {
	for _, m := range a.Members {
		if m.BatchID == batchID {
			return m, true
		}
	}
	return Document{}, false
}

func (a *Aggregate) applyWindow() {
	start, duration, end := recomputeWindow(a.Members)
	a.DeliveryStart = start
	a.DeliveryDuration = duration
	a.EndedAt = end
}

// recomputeWindow derives the aggregate delivery window from its members:
// earliest start, longest duration, and the latest end time of the members
// that have one (nil when none do).
func recomputeWindow(members []Document) (start time.Time, duration time.Duration, end *time.Time) {
	for i, m := range members {
		if i == 0 || m.DeliveryStart.Before(start) {
			start = m.DeliveryStart
		}
		if m.DeliveryDuration > duration {
			duration = m.DeliveryDuration
		}
		if m.EndedAt != nil && (end == nil || m.EndedAt.After(*end)) {
			e := *m.EndedAt
			end = &e
		}
	}
	return start, duration, end
}

// Expired reports whether the delivery window has lapsed at the given time.
func (a *Aggregate) Expired(now time.Time) bool {
	return a.DeliveryStart.Add(a.DeliveryDuration).Before(now)
}
