package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"timcast/internal/itis"
	"timcast/internal/store"
	"timcast/internal/tim"
	"timcast/pkg/logx"
)

type fakeSink struct {
	commands []tim.CommandRequest
}

func (f *fakeSink) Dispatch(_ context.Context, cmd tim.CommandRequest) error {
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeSink) last(t *testing.T) tim.CommandRequest {
	t.Helper()
	if len(f.commands) == 0 {
		t.Fatal("no command dispatched")
	}
	return f.commands[len(f.commands)-1]
}

type fakeResolver struct {
	endpoints []tim.TargetEndpoint
}

func (f *fakeResolver) Resolve(context.Context, tim.Request) ([]tim.TargetEndpoint, error) {
	return f.endpoints, nil
}

func (f *fakeResolver) Sites(context.Context, []uuid.UUID) ([]tim.TargetEndpoint, error) {
	return f.endpoints, nil
}

type harness struct {
	svc   *Service
	store store.Store
	sink  *fakeSink
	now   time.Time
}

func newHarness(t *testing.T, endpoints ...tim.TargetEndpoint) *harness {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })

	sink := &fakeSink{}
	h := &harness{
		store: st,
		sink:  sink,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = New(st, sink, &fakeResolver{endpoints: endpoints}, logx.Nop())
	h.svc.now = func() time.Time { return h.now }
	return h
}

func endpoint() tim.TargetEndpoint {
	return tim.TargetEndpoint{
		SiteID:      uuid.New(),
		SiteName:    "Academy & Flintridge",
		DeviceID:    uuid.New(),
		DeviceName:  "rsu-north",
		SiteValid:   true,
		DeviceValid: true,
		Location:    []float64{-104.821298, 38.915467},
	}
}

func request(category itis.Category, code itis.Code, minutes int) tim.Request {
	return tim.Request{
		ID:           uuid.New(),
		Category:     category,
		Code:         code,
		TargetKind:   tim.TargetRadius,
		Duration:     &minutes,
		DurationUnit: itis.UnitMinutes,
	}
}

func (h *harness) only(t *testing.T) *tim.Aggregate {
	t.Helper()
	aggs, err := h.store.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive error: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("active aggregates = %d, want 1", len(aggs))
	}
	return aggs[0]
}

func TestSubmitCreatesPendingAggregate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(context.Background(), req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	agg := h.only(t)
	if agg.State != tim.StatePending {
		t.Fatalf("State = %s, want Pending", agg.State)
	}
	if agg.Action != tim.ActionCreate {
		t.Fatalf("Action = %s, want Create", agg.Action)
	}
	if agg.BatchID != req.ID {
		t.Fatalf("BatchID = %s, want %s", agg.BatchID, req.ID)
	}
	if len(agg.Payload) != 1 || agg.Payload[0] != int(itis.SlowTraffic) {
		t.Fatalf("Payload = %v, want [%d]", agg.Payload, int(itis.SlowTraffic))
	}
	if agg.DeliveryDuration != time.Minute {
		t.Fatalf("DeliveryDuration = %v, want 1m", agg.DeliveryDuration)
	}
	if agg.CancelOnDuration {
		t.Fatal("SlowTraffic broadcasts should renew, not self-expire")
	}

	cmd := h.sink.last(t)
	if cmd.Action != tim.ActionCreate || cmd.ID != agg.ID {
		t.Fatalf("command = (%s, %s), want (Create, %s)", cmd.Action, cmd.ID, agg.ID)
	}
}

func TestSubmitBanneredPayload(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())

	req := request(itis.CategoryWarning, itis.Tornado, 10)
	if _, err := h.svc.Submit(context.Background(), req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	agg := h.only(t)
	want := []int{int(itis.Warning), int(itis.Tornado)}
	if len(agg.Payload) != 2 || agg.Payload[0] != want[0] || agg.Payload[1] != want[1] {
		t.Fatalf("Payload = %v, want %v", agg.Payload, want)
	}
}

func TestSubmitRejectsCodeOutsideCategory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())

	req := request(itis.CategoryAlert, itis.Tornado, 1)
	if _, err := h.svc.Submit(context.Background(), req, tim.SourceManual); err == nil {
		t.Fatal("expected whitelist error")
	}
	if len(h.sink.commands) != 0 {
		t.Fatalf("commands dispatched = %d, want 0", len(h.sink.commands))
	}
}

func TestOverlappingSubmitsMergeIntoOneAggregate(t *testing.T) {
	t.Parallel()
	ep := endpoint()
	h := newHarness(t, ep)
	ctx := context.Background()

	first := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, first, tim.SourceManual); err != nil {
		t.Fatalf("Submit first error: %v", err)
	}
	second := request(itis.CategoryInformation, itis.SlowTraffic, 2)
	if _, err := h.svc.Submit(ctx, second, tim.SourceManual); err != nil {
		t.Fatalf("Submit second error: %v", err)
	}

	agg := h.only(t)
	if len(agg.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(agg.Members))
	}
	if agg.DeliveryDuration != 2*time.Minute {
		t.Fatalf("DeliveryDuration = %v, want longest member duration 2m", agg.DeliveryDuration)
	}
	if agg.Action != tim.ActionUpdate {
		t.Fatalf("Action = %s, want Update after merge", agg.Action)
	}

	// Canceling the first batch shrinks the window without a device command.
	sent := len(h.sink.commands)
	if err := h.svc.CancelBatch(ctx, first.ID); err != nil {
		t.Fatalf("CancelBatch error: %v", err)
	}
	agg = h.only(t)
	if len(agg.Members) != 1 {
		t.Fatalf("members = %d, want 1 after cancel", len(agg.Members))
	}
	if agg.State == tim.StateCanceling {
		t.Fatal("aggregate with remaining members must not start canceling")
	}
	if len(h.sink.commands) != sent {
		t.Fatalf("commands dispatched on partial cancel = %d, want 0", len(h.sink.commands)-sent)
	}
}

func TestCancelLastMemberInformation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := h.svc.CancelBatch(ctx, req.ID); err != nil {
		t.Fatalf("CancelBatch error: %v", err)
	}

	agg := h.only(t)
	if agg.State != tim.StateCanceling {
		t.Fatalf("State = %s, want Canceling", agg.State)
	}
	if agg.Action != tim.ActionDelete {
		t.Fatalf("Action = %s, want Delete for plain information cancel", agg.Action)
	}

	cmd := h.sink.last(t)
	if cmd.Action != tim.ActionDelete {
		t.Fatalf("command action = %s, want Delete", cmd.Action)
	}
}

func TestCancelLastMemberBanneredBroadcastsCancellation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryWatch, itis.WinterStorm, 30)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := h.svc.CancelBatch(ctx, req.ID); err != nil {
		t.Fatalf("CancelBatch error: %v", err)
	}

	agg := h.only(t)
	if agg.State != tim.StateCanceling || agg.Action != tim.ActionUpdate {
		t.Fatalf("transition = (%s, %s), want (Canceling, Update)", agg.State, agg.Action)
	}
	want := []int{int(itis.WatchCanceled), int(itis.WinterStorm)}
	if len(agg.Payload) != 2 || agg.Payload[0] != want[0] || agg.Payload[1] != want[1] {
		t.Fatalf("Payload = %v, want %v", agg.Payload, want)
	}
}

func TestCancelBatchWithEmptyPayloadIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	agg := h.only(t)
	agg.Payload = nil
	tx := h.store.Begin()
	tx.Update(agg)
	if err := tx.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	sent := len(h.sink.commands)
	if err := h.svc.CancelBatch(ctx, req.ID); err != nil {
		t.Fatalf("CancelBatch error: %v", err)
	}
	if len(h.sink.commands) != sent {
		t.Fatal("empty-payload aggregate must not be touched")
	}
	got := h.only(t)
	if got.State != agg.State || len(got.Members) != len(agg.Members) {
		t.Fatal("empty-payload aggregate was mutated")
	}
}

func TestSubmitCancelFlagDelegatesToCancelBatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.StoppedTraffic, 5)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	agg := h.only(t)
	if !agg.CancelOnDuration {
		t.Fatal("StoppedTraffic broadcasts should self-expire on duration")
	}

	cancel := req
	cancel.Cancel = true
	if _, err := h.svc.Submit(ctx, cancel, tim.SourceManual); err != nil {
		t.Fatalf("Submit cancel error: %v", err)
	}
	if got := h.only(t); got.State != tim.StateCanceling {
		t.Fatalf("State = %s, want Canceling", got.State)
	}
}

func TestDeleteInstanceTombstones(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	agg := h.only(t)

	if err := h.svc.DeleteInstance(ctx, agg.ID); err != nil {
		t.Fatalf("DeleteInstance error: %v", err)
	}

	got, err := h.store.GetByID(ctx, agg.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if !got.Deleted || got.EndedAt == nil {
		t.Fatalf("tombstone = (deleted=%v, ended=%v), want both set", got.Deleted, got.EndedAt)
	}

	active, err := h.store.FindActive(ctx)
	if err != nil {
		t.Fatalf("FindActive error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active aggregates = %d, want 0 after delete", len(active))
	}
}

func TestSubmitFansOutPerEndpoint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint(), endpoint(), endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	aggs, err := h.store.FindActive(ctx)
	if err != nil {
		t.Fatalf("FindActive error: %v", err)
	}
	if len(aggs) != 3 {
		t.Fatalf("aggregates = %d, want 3", len(aggs))
	}
	if len(h.sink.commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(h.sink.commands))
	}
}

func TestListStatus(t *testing.T) {
	t.Parallel()
	ep := endpoint()
	h := newHarness(t, ep)
	ctx := context.Background()

	req := request(itis.CategoryWarning, itis.Tornado, 30)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	views, err := h.svc.ListStatus(ctx)
	if err != nil {
		t.Fatalf("ListStatus error: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	v := views[0]
	if v.Site != ep.SiteName || v.Device != ep.DeviceName {
		t.Fatalf("view names = (%q, %q), want (%q, %q)", v.Site, v.Device, ep.SiteName, ep.DeviceName)
	}
	if v.Message != "Warning, Tornado" {
		t.Fatalf("Message = %q, want %q", v.Message, "Warning, Tornado")
	}
	if v.Status != string(tim.StatePending) {
		t.Fatalf("Status = %q, want Pending", v.Status)
	}
}

func TestSendUpdatesPersistsAndDispatches(t *testing.T) {
	t.Parallel()
	h := newHarness(t, endpoint())
	ctx := context.Background()

	req := request(itis.CategoryInformation, itis.SlowTraffic, 1)
	if _, err := h.svc.Submit(ctx, req, tim.SourceManual); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	agg := h.only(t)
	agg.State = tim.StateRunning
	agg.Action = tim.ActionUpdate
	agg.DeliveryStart = h.now.Add(time.Minute)

	if err := h.svc.SendUpdates(ctx, []*tim.Aggregate{agg}); err != nil {
		t.Fatalf("SendUpdates error: %v", err)
	}

	got := h.only(t)
	if got.State != tim.StateRunning || !got.DeliveryStart.Equal(h.now.Add(time.Minute)) {
		t.Fatalf("persisted = (%s, %v), want mutation saved", got.State, got.DeliveryStart)
	}
	if cmd := h.sink.last(t); cmd.Action != tim.ActionUpdate {
		t.Fatalf("command action = %s, want Update", cmd.Action)
	}
}
