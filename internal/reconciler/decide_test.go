package reconciler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"timcast/internal/tim"
)

func aggregate(state tim.State, cancelOnDuration bool, start time.Time, dur time.Duration) *tim.Aggregate {
	return tim.NewAggregate(tim.Document{
		ID:               uuid.New(),
		State:            state,
		CancelOnDuration: cancelOnDuration,
		DeliveryStart:    start,
		DeliveryDuration: dur,
	})
}

func TestDecide(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := time.Minute

	t.Run("running within its duration is untouched", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateRunning, true, now.Add(-time.Minute), 5*time.Minute)
		if Decide(agg, now, tick) {
			t.Fatal("unexpired duration-bound broadcast must not update")
		}
	})

	t.Run("running past its duration starts deleting", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateRunning, true, now.Add(-10*time.Minute), 5*time.Minute)
		if !Decide(agg, now, tick) {
			t.Fatal("expired duration-bound broadcast must update")
		}
		if agg.State != tim.StateCanceling || agg.Action != tim.ActionDelete {
			t.Fatalf("transition = (%s, %s), want (Canceling, Delete)", agg.State, agg.Action)
		}
	})

	t.Run("open-ended running renews every tick", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateRunning, false, now.Add(-time.Hour), time.Minute)
		if !Decide(agg, now, tick) {
			t.Fatal("open-ended broadcast must renew")
		}
		if !agg.DeliveryStart.Equal(now) || agg.DeliveryDuration != tick {
			t.Fatalf("window = (%v, %v), want (%v, %v)", agg.DeliveryStart, agg.DeliveryDuration, now, tick)
		}
		if agg.Action != tim.ActionUpdate || agg.State != tim.StateRunning {
			t.Fatalf("transition = (%s, %s), want (Running, Update)", agg.State, agg.Action)
		}
	})

	t.Run("canceling banner past its window is finalized", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateCanceling, false, now.Add(-10*time.Minute), time.Minute)
		if !Decide(agg, now, tick) {
			t.Fatal("expired cancel banner must be finalized")
		}
		if agg.State != tim.StateStopped || agg.Action != tim.ActionDelete {
			t.Fatalf("transition = (%s, %s), want (Stopped, Delete)", agg.State, agg.Action)
		}
	})

	t.Run("canceling banner still inside its window waits", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateCanceling, false, now.Add(-30*time.Second), 5*time.Minute)
		if Decide(agg, now, tick) {
			t.Fatal("cancel banner must run out its window first")
		}
	})

	t.Run("canceling expiry deletion waits for its confirmation", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateCanceling, true, now.Add(-10*time.Minute), time.Minute)
		if Decide(agg, now, tick) {
			t.Fatal("duration-bound cancel is driven by its confirmation, not the tick")
		}
	})

	t.Run("pending and terminal states are untouched", func(t *testing.T) {
		t.Parallel()
		for _, state := range []tim.State{tim.StatePending, tim.StateStopped, tim.StateError} {
			agg := aggregate(state, false, now.Add(-time.Hour), time.Minute)
			if Decide(agg, now, tick) {
				t.Fatalf("state %s must not update", state)
			}
		}
	})

	t.Run("deleted aggregates are untouched", func(t *testing.T) {
		t.Parallel()
		agg := aggregate(tim.StateRunning, false, now.Add(-time.Hour), time.Minute)
		agg.Deleted = true
		if Decide(agg, now, tick) {
			t.Fatal("tombstoned aggregate must not update")
		}
	})
}
