// Package overlay draws the violence-index annotations onto a map surface.
package overlay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/geo"
)

// Error taxonomy for rendering.
var (
	ErrMapUnavailable = eris.New("overlay: map surface unavailable")
	ErrInvalidInput   = eris.New("overlay: invalid input")
	ErrLayerNotFound  = eris.New("overlay: layer not found")
)

// Annotation is a colored circle with a popup.
type Annotation struct {
	Center       geo.Coordinate `json:"center"`
	RadiusMeters float64        `json:"radius_m"`
	Color        string         `json:"color"`
	Level        geo.Level      `json:"level"`
	ZoneName     string         `json:"zone_name"`
	Popup        string         `json:"popup"`
}

// GroupKind identifies what produced an annotation group.
type GroupKind string

const (
	KindZones GroupKind = "zones"
	KindRoute GroupKind = "route"
)

// Group is the unit added to and removed from a surface.
type Group struct {
	Kind        GroupKind    `json:"kind"`
	Annotations []Annotation `json:"annotations"`
}

// LayerID identifies a group once it has been added to a surface.
type LayerID string

// Surface is the map capability the renderer draws on.
type Surface interface {
	AddLayer(ctx context.Context, g Group) (LayerID, error)
	RemoveLayer(ctx context.Context, id LayerID) error
}

// MemorySurface is a Surface that keeps layers in memory so clients can
// fetch and draw them.
type MemorySurface struct {
	mu     sync.RWMutex
	order  []LayerID
	layers map[LayerID]Group
}

// NewMemorySurface returns an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{layers: make(map[LayerID]Group)}
}

// AddLayer implements Surface.
func (s *MemorySurface) AddLayer(_ context.Context, g Group) (LayerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := LayerID(uuid.New().String())
	s.layers[id] = g
	s.order = append(s.order, id)
	return id, nil
}

// RemoveLayer implements Surface.
func (s *MemorySurface) RemoveLayer(_ context.Context, id LayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layers[id]; !ok {
		return eris.Wrapf(ErrLayerNotFound, "overlay: remove %s", id)
	}
	delete(s.layers, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Layers returns the groups currently on the surface, oldest first.
func (s *MemorySurface) Layers() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Group, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.layers[id])
	}
	return out
}

// Board tracks one surface per client session. A session has no surface
// until its map view attaches.
type Board struct {
	mu       sync.RWMutex
	surfaces map[string]*MemorySurface
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{surfaces: make(map[string]*MemorySurface)}
}

// Attach registers a map surface for the session, reusing an existing one.
func (b *Board) Attach(session string) *MemorySurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.surfaces[session]; ok {
		return s
	}
	s := NewMemorySurface()
	b.surfaces[session] = s
	return s
}

// Detach drops the session's surface and everything drawn on it.
func (b *Board) Detach(session string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.surfaces, session)
}

// Len is the number of attached surfaces.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.surfaces)
}

// Surface returns the session's surface, if attached.
func (b *Board) Surface(session string) (*MemorySurface, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.surfaces[session]
	return s, ok
}
