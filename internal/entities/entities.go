// Package entities is the client side of the geospatial entity-configuration
// service: the external system that knows where sites and roadside units are
// and how they connect along the roadway graph.
package entities

import (
	"context"

	"github.com/google/uuid"
)

// Entity type identifiers as published by the entity-configuration service.
const (
	TypeSite   = "intersection"
	TypeDevice = "rsu"
)

// Entity is one node of the entity-configuration tree.
type Entity struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Parent   uuid.UUID `json:"parent,omitempty"`
	Point    []float64 `json:"point,omitempty"` // lon, lat
	Children []Entity  `json:"children,omitempty"`
}

// HasPoint reports whether the entity carries point geometry.
func (e Entity) HasPoint() bool { return len(e.Point) >= 2 }

// Service answers spatial and graph queries against the entity
// configuration. Radius is in miles; downstream/upstream take the service's
// traversal parameter verbatim (hop count or distance, depending on
// deployment).
type Service interface {
	QueryRadius(ctx context.Context, lon, lat, radiusMiles float64) ([]Entity, error)
	QueryDownstream(ctx context.Context, lon, lat float64, param string) ([]Entity, error)
	QueryUpstream(ctx context.Context, lon, lat float64, param string) ([]Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Entity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Entity, error)
	// GetSite returns a site with its children populated.
	GetSite(ctx context.Context, id uuid.UUID) (*Entity, error)
}
