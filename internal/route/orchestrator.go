package route

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/overlay"
	"github.com/navis-app/navis-api/pkg/geocode"
	"github.com/navis-app/navis-api/pkg/osrm"
)

// Errors surfaced to callers. None of them are fatal.
var (
	ErrNotFound       = eris.New("endereço não encontrado")
	ErrInvalidInput   = overlay.ErrInvalidInput
	ErrMapUnavailable = overlay.ErrMapUnavailable
	ErrRouting        = eris.New("erro ao calcular a rota")
	ErrSuperseded     = eris.New("route: superseded by a newer request")
)

// Router computes the path between waypoints.
type Router interface {
	Route(ctx context.Context, waypoints ...osrm.LatLng) (*osrm.Route, error)
}

// ClassifiedPoint is a sampled route point with its risk classification.
type ClassifiedPoint struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	Level      geo.Level      `json:"level"`
	ZoneName   string         `json:"zone_name"`
}

// Result is a computed route.
type Result struct {
	Origin          geo.Coordinate    `json:"origin"`
	Destination     geo.Coordinate    `json:"destination"`
	Coordinates     []geo.Coordinate  `json:"coordinates"`
	DistanceMeters  float64           `json:"distance_m"`
	DurationSeconds float64           `json:"duration_s"`
	Points          []ClassifiedPoint `json:"points"`
	OverlayDrawn    bool              `json:"overlay_drawn"`
}

// session fields are guarded by Orchestrator.mu. render serializes every
// draw on the session's surface; it is always taken before mu.
type session struct {
	render sync.Mutex

	renderer   *overlay.Renderer
	overlayOn  bool
	generation uint64
}

// Orchestrator owns per-session map state: the attached surface, the
// overlay toggle and the latest route request.
type Orchestrator struct {
	geocoder   geocode.Client
	router     Router
	catalog    *geo.Catalog
	classifier *geo.Classifier
	board      *overlay.Board
	maxPoints  int

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSamplePoints caps how many route points are classified and drawn.
func WithSamplePoints(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPoints = n
		}
	}
}

// NewOrchestrator wires the collaborators together.
func NewOrchestrator(gc geocode.Client, router Router, catalog *geo.Catalog, board *overlay.Board, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		geocoder:   gc,
		router:     router,
		catalog:    catalog,
		classifier: geo.NewClassifier(catalog),
		board:      board,
		maxPoints:  geo.DefaultSamplePoints,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Classifier exposes the classifier built over the catalog.
func (o *Orchestrator) Classifier() *geo.Classifier {
	return o.classifier
}

func (o *Orchestrator) session(id string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionLocked(id)
}

func (o *Orchestrator) sessionLocked(id string) *session {
	s, ok := o.sessions[id]
	if !ok {
		s = &session{renderer: overlay.NewRenderer(o.catalog, o.classifier, nil, overlay.WithMaxPoints(o.maxPoints))}
		o.sessions[id] = s
	}
	return s
}

// AttachMap registers the session's map surface. If the overlay toggle is
// already on, the zones are drawn immediately.
func (o *Orchestrator) AttachMap(ctx context.Context, sessionID string) error {
	surface := o.board.Attach(sessionID)
	s := o.session(sessionID)
	s.render.Lock()
	defer s.render.Unlock()

	o.mu.Lock()
	if !s.renderer.HasSurface() {
		s.renderer = overlay.NewRenderer(o.catalog, o.classifier, surface, overlay.WithMaxPoints(o.maxPoints))
	}
	on := s.overlayOn
	r := s.renderer
	o.mu.Unlock()

	if on {
		return r.RenderGlobalZones(ctx)
	}
	return nil
}

// DetachMap drops the session's surface and everything drawn on it.
func (o *Orchestrator) DetachMap(sessionID string) {
	o.board.Detach(sessionID)
	s := o.session(sessionID)
	s.render.Lock()
	defer s.render.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	s.renderer = overlay.NewRenderer(o.catalog, o.classifier, nil, overlay.WithMaxPoints(o.maxPoints))
}

// Layers returns what is currently drawn on the session's surface.
func (o *Orchestrator) Layers(sessionID string) ([]overlay.Group, error) {
	s, ok := o.board.Surface(sessionID)
	if !ok {
		return nil, ErrMapUnavailable
	}
	return s.Layers(), nil
}

// OverlayEnabled reports the session's toggle.
func (o *Orchestrator) OverlayEnabled(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s.overlayOn
	}
	return false
}

// SetOverlay flips the violence overlay toggle. Turning it on draws every
// catalog zone; turning it off clears the map.
func (o *Orchestrator) SetOverlay(ctx context.Context, sessionID string, enabled bool) error {
	s := o.session(sessionID)
	s.render.Lock()
	defer s.render.Unlock()

	o.mu.Lock()
	s.overlayOn = enabled
	r := s.renderer
	o.mu.Unlock()

	if enabled {
		return r.RenderGlobalZones(ctx)
	}
	return r.Clear(ctx)
}

// ResolveEndpoint turns an endpoint into a coordinate, geocoding address text
// and taking the first candidate.
func (o *Orchestrator) ResolveEndpoint(ctx context.Context, e Endpoint) (geo.Coordinate, error) {
	if c, ok := e.Coordinate(); ok {
		return c, nil
	}
	addr, ok := e.Address()
	if !ok || addr == "" {
		return geo.Coordinate{}, eris.Wrap(ErrInvalidInput, "route: empty endpoint")
	}

	cands, err := o.geocoder.Search(ctx, addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return geo.Coordinate{}, eris.Wrap(ctxErr, "route: geocode canceled")
		}
		zap.L().Warn("route: geocoding failed", zap.String("address", addr), zap.Error(err))
		return geo.Coordinate{}, routingError(err)
	}
	if len(cands) == 0 {
		return geo.Coordinate{}, eris.Wrapf(ErrNotFound, "route: %q", addr)
	}
	return geo.Coordinate{Lat: cands[0].Lat, Lng: cands[0].Lon}, nil
}

// ComputeRoute resolves both endpoints, asks the router for a path and, when
// the session's overlay is on, draws the classified route overlay. A result
// that completes after a newer ComputeRoute started for the same session is
// dropped with ErrSuperseded.
func (o *Orchestrator) ComputeRoute(ctx context.Context, sessionID string, origin, destination Endpoint) (*Result, error) {
	if origin.IsZero() || destination.IsZero() {
		return nil, eris.Wrap(ErrInvalidInput, "route: origin and destination are required")
	}

	o.mu.Lock()
	s := o.sessionLocked(sessionID)
	if !s.renderer.HasSurface() {
		o.mu.Unlock()
		zap.L().Warn("route: map surface not ready", zap.String("session", sessionID))
		return nil, ErrMapUnavailable
	}
	s.generation++
	gen := s.generation
	o.mu.Unlock()

	var from, to geo.Coordinate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = o.ResolveEndpoint(gctx, origin)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = o.ResolveEndpoint(gctx, destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rt, err := o.router.Route(ctx, osrm.LatLng{Lat: from.Lat, Lng: from.Lng}, osrm.LatLng{Lat: to.Lat, Lng: to.Lng})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "route: routing canceled")
		}
		zap.L().Warn("route: routing failed", zap.Stringer("origin", from), zap.Stringer("destination", to), zap.Error(err))
		if eris.Is(err, osrm.ErrNoRoute) {
			return nil, eris.Wrap(ErrNotFound, "route: no path between endpoints")
		}
		return nil, routingError(err)
	}

	coords := make([]geo.Coordinate, len(rt.Coordinates))
	for i, c := range rt.Coordinates {
		coords[i] = geo.Coordinate{Lat: c.Lat, Lng: c.Lng}
	}
	res := &Result{
		Origin:          from,
		Destination:     to,
		Coordinates:     coords,
		DistanceMeters:  rt.DistanceMeters,
		DurationSeconds: rt.DurationSeconds,
		Points:          o.classifyAlong(coords),
	}

	s.render.Lock()
	defer s.render.Unlock()

	o.mu.Lock()
	if s.generation != gen {
		o.mu.Unlock()
		return nil, ErrSuperseded
	}
	on := s.overlayOn
	r := s.renderer
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "route: canceled")
	}

	if on {
		if err := r.RenderAlongCoordinates(ctx, coords); err != nil {
			zap.L().Warn("route: overlay render failed", zap.String("session", sessionID), zap.Error(err))
		} else {
			res.OverlayDrawn = true
		}
	}
	return res, nil
}

// routingError marks err as ErrRouting without dropping it from the chain.
// eris.Is compares wrap messages, so the sentinel's text is enough.
func routingError(err error) error {
	return eris.Wrap(err, ErrRouting.Error())
}

func (o *Orchestrator) classifyAlong(coords []geo.Coordinate) []ClassifiedPoint {
	sampled := geo.Sample(coords, o.maxPoints)
	out := make([]ClassifiedPoint, len(sampled))
	for i, p := range sampled {
		c := o.classifier.Classify(p)
		out[i] = ClassifiedPoint{Coordinate: p, Level: c.Level, ZoneName: c.ZoneName}
	}
	return out
}
