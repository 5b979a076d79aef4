package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/geo"
)

// Circle radii in meters.
const (
	ZoneRadiusMeters  = 600.0
	RouteRadiusMeters = 500.0
)

// Renderer owns at most one annotation group on its surface. Every render
// clears the previous group before adding the new one.
type Renderer struct {
	catalog    *geo.Catalog
	classifier *geo.Classifier
	surface    Surface
	maxPoints  int

	mu      sync.Mutex
	current *LayerID
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMaxPoints overrides how many route points are annotated.
func WithMaxPoints(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.maxPoints = n
		}
	}
}

// NewRenderer creates a renderer. A nil surface makes every render fail with
// ErrMapUnavailable until a surface-backed renderer replaces it.
func NewRenderer(catalog *geo.Catalog, classifier *geo.Classifier, surface Surface, opts ...Option) *Renderer {
	r := &Renderer{
		catalog:    catalog,
		classifier: classifier,
		surface:    surface,
		maxPoints:  geo.DefaultSamplePoints,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RenderGlobalZones draws every catalog zone.
func (r *Renderer) RenderGlobalZones(ctx context.Context) error {
	zones := r.catalog.Zones()
	g := Group{Kind: KindZones, Annotations: make([]Annotation, 0, len(zones))}
	for _, z := range zones {
		g.Annotations = append(g.Annotations, Annotation{
			Center:       z.Coordinate,
			RadiusMeters: ZoneRadiusMeters,
			Color:        z.Level.Color(),
			Level:        z.Level,
			ZoneName:     z.Name,
			Popup:        zonePopup(z.Name, z.Level),
		})
	}
	return r.replace(ctx, g)
}

// RenderAlongCoordinates samples the route and draws one classified circle
// per sampled point.
func (r *Renderer) RenderAlongCoordinates(ctx context.Context, coords []geo.Coordinate) error {
	if len(coords) == 0 {
		zap.L().Warn("overlay: no route coordinates to render")
		return eris.Wrap(ErrInvalidInput, "overlay: empty coordinate list")
	}
	sampled := geo.Sample(coords, r.maxPoints)
	g := Group{Kind: KindRoute, Annotations: make([]Annotation, 0, len(sampled))}
	for _, p := range sampled {
		res := r.classifier.Classify(p)
		g.Annotations = append(g.Annotations, Annotation{
			Center:       p,
			RadiusMeters: RouteRadiusMeters,
			Color:        res.Level.Color(),
			Level:        res.Level,
			ZoneName:     res.ZoneName,
			Popup:        routePopup(res),
		})
	}
	return r.replace(ctx, g)
}

// Clear removes the current group, if any. Safe to call repeatedly.
func (r *Renderer) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked(ctx)
}

// HasSurface reports whether the renderer can draw.
func (r *Renderer) HasSurface() bool {
	return r.surface != nil
}

// Current returns the id of the group currently drawn.
func (r *Renderer) Current() (LayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return *r.current, true
}

func (r *Renderer) replace(ctx context.Context, g Group) error {
	if r.surface == nil {
		zap.L().Warn("overlay: map surface not ready", zap.String("kind", string(g.Kind)))
		return ErrMapUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.clearLocked(ctx); err != nil {
		return err
	}
	id, err := r.surface.AddLayer(ctx, g)
	if err != nil {
		return eris.Wrap(err, "overlay: add layer")
	}
	r.current = &id
	zap.L().Debug("overlay: rendered",
		zap.String("kind", string(g.Kind)),
		zap.Int("annotations", len(g.Annotations)),
	)
	return nil
}

func (r *Renderer) clearLocked(ctx context.Context) error {
	if r.current == nil || r.surface == nil {
		r.current = nil
		return nil
	}
	err := r.surface.RemoveLayer(ctx, *r.current)
	if err != nil && !eris.Is(err, ErrLayerNotFound) {
		return eris.Wrap(err, "overlay: remove layer")
	}
	r.current = nil
	return nil
}

func zonePopup(name string, level geo.Level) string {
	return fmt.Sprintf("<b>%s</b><br>Nível de risco: %s", name, level.Label())
}

func routePopup(res geo.ClassificationResult) string {
	return fmt.Sprintf("<b>Trecho da rota</b><br>Zona: %s<br>Nível de risco: %s", res.ZoneName, res.Level.Label())
}
