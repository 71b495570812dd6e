// Package reconciler re-drives live broadcasts once a minute: it renews
// open-ended broadcasts, expires duration-bound ones, and finalizes confirmed
// cancellations whose window has closed.
package reconciler

import (
	"time"

	"timcast/internal/tim"
)

// Decide mutates the aggregate for the current tick and reports whether it
// must be saved and re-dispatched. tick is the reconciliation interval used
// as the renewal window for open-ended broadcasts.
func Decide(agg *tim.Aggregate, now time.Time, tick time.Duration) bool {
	if agg.Deleted {
		return false
	}
	switch agg.State {
	case tim.StateRunning:
		if agg.CancelOnDuration {
			if agg.Expired(now) {
				agg.State = tim.StateCanceling
				agg.Action = tim.ActionDelete
				return true
			}
			return false
		}
		// Open-ended broadcasts are kept alive by sliding the delivery
		// window forward one interval each tick.
		agg.DeliveryStart = now
		agg.DeliveryDuration = tick
		agg.Action = tim.ActionUpdate
		return true
	case tim.StateCanceling:
		if !agg.CancelOnDuration && agg.Expired(now) {
			agg.State = tim.StateStopped
			agg.Action = tim.ActionDelete
			return true
		}
	}
	return false
}
