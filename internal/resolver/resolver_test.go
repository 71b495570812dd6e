package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"timcast/internal/entities"
	"timcast/internal/itis"
	"timcast/internal/tim"
	"timcast/pkg/logx"
)

type fakeEntities struct {
	radius     []entities.Entity
	downstream []entities.Entity
	upstream   []entities.Entity
	byID       map[uuid.UUID]*entities.Entity
	sites      map[uuid.UUID]*entities.Entity
}

func (f *fakeEntities) QueryRadius(context.Context, float64, float64, float64) ([]entities.Entity, error) {
	return f.radius, nil
}

func (f *fakeEntities) QueryDownstream(context.Context, float64, float64, string) ([]entities.Entity, error) {
	return f.downstream, nil
}

func (f *fakeEntities) QueryUpstream(context.Context, float64, float64, string) ([]entities.Entity, error) {
	return f.upstream, nil
}

func (f *fakeEntities) GetByID(_ context.Context, id uuid.UUID) (*entities.Entity, error) {
	return f.byID[id], nil
}

func (f *fakeEntities) GetByIDs(_ context.Context, ids []uuid.UUID) ([]entities.Entity, error) {
	var out []entities.Entity
	for _, id := range ids {
		if s, ok := f.sites[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeEntities) GetSite(_ context.Context, id uuid.UUID) (*entities.Entity, error) {
	return f.sites[id], nil
}

func ptr(v float64) *float64 { return &v }

func radiusRequest() tim.Request {
	return tim.Request{
		ID:         uuid.New(),
		Code:       itis.SlowTraffic,
		TargetKind: tim.TargetRadius,
		Latitude:   ptr(38.915467),
		Longitude:  ptr(-104.821298),
		Parameters: []string{"1"},
	}
}

func TestResolveNone(t *testing.T) {
	t.Parallel()
	r := New(&fakeEntities{}, logx.Nop())

	eps, err := r.Resolve(context.Background(), tim.Request{TargetKind: tim.TargetNone})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 0 {
		t.Fatalf("endpoints = %d, want 0", len(eps))
	}
}

func TestResolveUnknownKindFails(t *testing.T) {
	t.Parallel()
	r := New(&fakeEntities{}, logx.Nop())
	if _, err := r.Resolve(context.Background(), tim.Request{TargetKind: "Sideways"}); err == nil {
		t.Fatal("expected error for unrecognized targeting kind")
	}
}

func TestResolveRadius(t *testing.T) {
	t.Parallel()
	siteID := uuid.New()
	device := entities.Entity{
		ID:     uuid.New(),
		Name:   "rsu-north",
		Type:   entities.TypeDevice,
		Parent: siteID,
		Point:  []float64{-104.8, 38.9},
	}
	fake := &fakeEntities{
		radius: []entities.Entity{
			device,
			{ID: uuid.New(), Name: "camera-1", Type: "camera", Parent: siteID},
		},
		byID: map[uuid.UUID]*entities.Entity{
			siteID: {ID: siteID, Name: "Academy & Flintridge", Type: entities.TypeSite},
		},
	}
	r := New(fake, logx.Nop())

	eps, err := r.Resolve(context.Background(), radiusRequest())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("endpoints = %d, want 1 (non-device entities dropped)", len(eps))
	}

	ep := eps[0]
	if ep.DeviceID != device.ID || ep.SiteID != siteID {
		t.Fatalf("endpoint = (%s, %s), want (%s, %s)", ep.DeviceID, ep.SiteID, device.ID, siteID)
	}
	if !ep.Usable() {
		t.Fatal("resolved endpoint must be usable")
	}
	// The geofence is centered on the request point, not the device.
	if ep.Location[0] != -104.821298 || ep.Location[1] != 38.915467 {
		t.Fatalf("Location = %v, want request point", ep.Location)
	}
	if len(ep.Region) == 0 || len(ep.Region[0]) == 0 {
		t.Fatal("endpoint missing geofence ring")
	}
}

func TestResolveRadiusDropsOrphanDevices(t *testing.T) {
	t.Parallel()
	fake := &fakeEntities{
		radius: []entities.Entity{
			{ID: uuid.New(), Name: "orphan", Type: entities.TypeDevice, Parent: uuid.New()},
		},
		byID: map[uuid.UUID]*entities.Entity{},
	}
	r := New(fake, logx.Nop())

	eps, err := r.Resolve(context.Background(), radiusRequest())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 0 {
		t.Fatalf("endpoints = %d, want 0 for device without a valid site", len(eps))
	}
}

func TestResolveRadiusMissingPoint(t *testing.T) {
	t.Parallel()
	r := New(&fakeEntities{}, logx.Nop())

	req := radiusRequest()
	req.Latitude = nil
	eps, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 0 {
		t.Fatalf("endpoints = %d, want 0 without an anchor point", len(eps))
	}
}

func TestResolveExplicit(t *testing.T) {
	t.Parallel()
	siteID := uuid.New()
	deadID := uuid.New()
	fake := &fakeEntities{
		sites: map[uuid.UUID]*entities.Entity{
			siteID: {
				ID:   siteID,
				Name: "Academy & Flintridge",
				Type: entities.TypeSite,
				Children: []entities.Entity{
					{ID: uuid.New(), Name: "rsu-north", Type: entities.TypeDevice, Point: []float64{-104.8, 38.9}},
				},
			},
		},
	}
	r := New(fake, logx.Nop())

	req := tim.Request{
		ID:         uuid.New(),
		Code:       itis.SlowTraffic,
		TargetKind: tim.TargetExplicit,
		Targets:    []uuid.UUID{siteID, deadID},
	}
	eps, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("endpoints = %d, want 1 (unresolvable target dropped)", len(eps))
	}
	if eps[0].SiteName != "Academy & Flintridge" || eps[0].DeviceName != "rsu-north" {
		t.Fatalf("endpoint names = (%q, %q)", eps[0].SiteName, eps[0].DeviceName)
	}
}

func TestResolveDownstreamDropsPointlessDevices(t *testing.T) {
	t.Parallel()
	withPoint := entities.Entity{
		ID:     uuid.New(),
		Name:   "rsu-south",
		Type:   entities.TypeDevice,
		Parent: uuid.New(),
		Point:  []float64{-104.8, 38.9},
	}
	fake := &fakeEntities{
		downstream: []entities.Entity{
			withPoint,
			{ID: uuid.New(), Name: "rsu-unmapped", Type: entities.TypeDevice, Parent: uuid.New()},
		},
	}
	r := New(fake, logx.Nop())

	req := tim.Request{
		ID:         uuid.New(),
		Code:       itis.SlowTraffic,
		TargetKind: tim.TargetDownstream,
		Latitude:   ptr(38.915467),
		Longitude:  ptr(-104.821298),
		Parameters: []string{"2"},
	}
	eps, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("endpoints = %d, want 1 (device without geometry dropped)", len(eps))
	}
	// Graph-resolved devices carry their own point and a one-mile buffer.
	if eps[0].Location[0] != withPoint.Point[0] || eps[0].Location[1] != withPoint.Point[1] {
		t.Fatalf("Location = %v, want device point %v", eps[0].Location, withPoint.Point)
	}
}

func TestSites(t *testing.T) {
	t.Parallel()
	siteID := uuid.New()
	fake := &fakeEntities{
		sites: map[uuid.UUID]*entities.Entity{
			siteID: {
				ID:   siteID,
				Name: "Academy & Flintridge",
				Type: entities.TypeSite,
				Children: []entities.Entity{
					{ID: uuid.New(), Name: "rsu-north", Type: entities.TypeDevice},
				},
			},
		},
	}
	r := New(fake, logx.Nop())

	eps, err := r.Sites(context.Background(), []uuid.UUID{siteID})
	if err != nil {
		t.Fatalf("Sites error: %v", err)
	}
	if len(eps) != 1 || eps[0].SiteName != "Academy & Flintridge" || eps[0].DeviceName != "rsu-north" {
		t.Fatalf("Sites = %+v", eps)
	}
}
