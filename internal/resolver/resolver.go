// Package resolver turns a request's abstract targeting intent into concrete
// device endpoints.
package resolver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"timcast/internal/entities"
	"timcast/internal/tim"
	logx "timcast/pkg/logx"
)

// Graph-resolved devices get a fixed one-mile geofence around their own
// point; only radius targeting centers the geofence on the request point.
const deviceBufferMiles = 1.0

type Resolver struct {
	entities entities.Service
	log      logx.Logger
}

func New(svc entities.Service, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{entities: svc, log: log}
}

// Resolve expands the request's targeting intent into usable endpoints.
//
// Resolution is best-effort: unresolvable or invalid targets are logged and
// dropped, and a spatial request missing its point or parameter yields an
// empty result. Only an unrecognized targeting kind is an error.
func (r *Resolver) Resolve(ctx context.Context, req tim.Request) ([]tim.TargetEndpoint, error) {
	switch req.TargetKind {
	case tim.TargetNone:
		return nil, nil
	case tim.TargetExplicit:
		return r.resolveExplicit(ctx, req), nil
	case tim.TargetRadius:
		return r.resolveRadius(ctx, req), nil
	case tim.TargetDownstream:
		return r.resolveGraph(ctx, req, r.entities.QueryDownstream), nil
	case tim.TargetUpstream:
		return r.resolveGraph(ctx, req, r.entities.QueryUpstream), nil
	default:
		return nil, fmt.Errorf("resolver: unrecognized targeting kind %q", req.TargetKind)
	}
}

func (r *Resolver) resolveExplicit(ctx context.Context, req tim.Request) []tim.TargetEndpoint {
	var out []tim.TargetEndpoint
	for _, target := range req.Targets {
		ep := r.explicitEndpoint(ctx, target)
		if ep.Usable() {
			out = append(out, ep)
			continue
		}
		r.log.Warn("target is not valid",
			logx.String("target", target.String()),
			logx.String("itis_code", req.Code.Label()))
	}
	return out
}

// explicitEndpoint resolves one site ID to its broadcast device.
func (r *Resolver) explicitEndpoint(ctx context.Context, target uuid.UUID) tim.TargetEndpoint {
	var ep tim.TargetEndpoint
	if target == uuid.Nil {
		return ep
	}

	site, err := r.entities.GetSite(ctx, target)
	if err != nil || site == nil {
		ep.SiteID = target
		return ep
	}

	ep.SiteID = site.ID
	ep.SiteName = site.Name
	ep.SiteValid = true

	for _, child := range site.Children {
		if child.Type != entities.TypeDevice {
			continue
		}
		ep.DeviceID = child.ID
		ep.DeviceName = child.Name
		ep.DeviceValid = true

		point := child.Point
		if len(point) < 2 {
			point = []float64{0, 0}
		}
		ep.Location = point
		ep.Region = entities.BufferMiles(point[0], point[1], deviceBufferMiles)
		break
	}
	return ep
}

func (r *Resolver) resolveRadius(ctx context.Context, req tim.Request) []tim.TargetEndpoint {
	radiusRaw := firstParameter(req)
	if radiusRaw == "" || !req.HasPoint() {
		r.log.Warn("radius request is missing its point or radius",
			logx.String("request", req.ID.String()),
			logx.String("itis_code", req.Code.Label()))
		return nil
	}
	radius, err := strconv.ParseFloat(radiusRaw, 64)
	if err != nil {
		r.log.Warn("radius parameter is not numeric",
			logx.String("request", req.ID.String()),
			logx.String("radius", radiusRaw))
		return nil
	}

	lon, lat := *req.Longitude, *req.Latitude
	found, err := r.entities.QueryRadius(ctx, lon, lat, radius)
	if err != nil {
		r.log.Warn("radius query failed", logx.String("request", req.ID.String()), logx.Err(err))
		return nil
	}

	var out []tim.TargetEndpoint
	for _, entity := range found {
		if entity.Type != entities.TypeDevice {
			continue
		}
		parent, err := r.entities.GetByID(ctx, entity.Parent)
		if err != nil || parent == nil || parent.Type != entities.TypeSite {
			continue
		}
		ep := endpointOf(entity, parent.Name)
		// The geofence of a radius broadcast is the queried circle itself,
		// centered on the request point rather than the device.
		ep.Location = []float64{lon, lat}
		ep.Region = entities.BufferMiles(lon, lat, radius)
		out = append(out, ep)
	}
	return out
}

type graphQuery func(ctx context.Context, lon, lat float64, param string) ([]entities.Entity, error)

func (r *Resolver) resolveGraph(ctx context.Context, req tim.Request, query graphQuery) []tim.TargetEndpoint {
	param := firstParameter(req)
	if param == "" || !req.HasPoint() {
		r.log.Warn("graph request is missing its point or traversal parameter",
			logx.String("request", req.ID.String()),
			logx.String("itis_code", req.Code.Label()))
		return nil
	}

	lon, lat := *req.Longitude, *req.Latitude
	found, err := query(ctx, lon, lat, param)
	if err != nil {
		r.log.Warn("graph query failed", logx.String("request", req.ID.String()), logx.Err(err))
		return nil
	}

	var out []tim.TargetEndpoint
	for _, entity := range found {
		if !entity.HasPoint() {
			r.log.Warn("device has no point geometry", logx.String("device", entity.Name))
			continue
		}
		ep := endpointOf(entity, "")
		ep.Location = []float64{entity.Point[0], entity.Point[1]}
		ep.Region = entities.BufferMiles(entity.Point[0], entity.Point[1], deviceBufferMiles)
		out = append(out, ep)
	}
	return out
}

// Sites resolves site IDs to named endpoints for status rendering.
func (r *Resolver) Sites(ctx context.Context, ids []uuid.UUID) ([]tim.TargetEndpoint, error) {
	sites, err := r.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolver: sites lookup: %w", err)
	}
	out := make([]tim.TargetEndpoint, 0, len(sites))
	for _, site := range sites {
		ep := tim.TargetEndpoint{
			SiteID:    site.ID,
			SiteName:  site.Name,
			SiteValid: true,
		}
		for _, child := range site.Children {
			if child.Type == entities.TypeDevice {
				ep.DeviceID = child.ID
				ep.DeviceName = child.Name
				ep.DeviceValid = true
				break
			}
		}
		out = append(out, ep)
	}
	return out, nil
}

func firstParameter(req tim.Request) string {
	if len(req.Parameters) == 0 {
		return ""
	}
	return req.Parameters[0]
}

func endpointOf(device entities.Entity, parentName string) tim.TargetEndpoint {
	return tim.TargetEndpoint{
		SiteID:      device.Parent,
		SiteName:    parentName,
		SiteValid:   true,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		DeviceValid: true,
	}
}
