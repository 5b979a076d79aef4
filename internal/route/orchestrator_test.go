package route

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/overlay"
	"github.com/navis-app/navis-api/pkg/geocode"
	"github.com/navis-app/navis-api/pkg/osrm"
)

type mockGeocoder struct{ mock.Mock }

func (m *mockGeocoder) Search(ctx context.Context, q string) ([]geocode.Candidate, error) {
	args := m.Called(ctx, q)
	if c := args.Get(0); c != nil {
		return c.([]geocode.Candidate), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRouter struct{ mock.Mock }

func (m *mockRouter) Route(ctx context.Context, waypoints ...osrm.LatLng) (*osrm.Route, error) {
	args := m.Called(ctx, waypoints)
	if r := args.Get(0); r != nil {
		return r.(*osrm.Route), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	luz = geo.Coordinate{Lat: -23.5415, Lng: -46.6390}
	far = geo.Coordinate{Lat: -23.0, Lng: -46.0}
)

func straightRoute(n int) *osrm.Route {
	r := &osrm.Route{DistanceMeters: 1000, DurationSeconds: 120}
	for i := 0; i < n; i++ {
		r.Coordinates = append(r.Coordinates, osrm.LatLng{Lat: luz.Lat + float64(i)*0.01, Lng: luz.Lng})
	}
	return r
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mockGeocoder, *mockRouter, *overlay.Board) {
	t.Helper()
	gc := &mockGeocoder{}
	rt := &mockRouter{}
	board := overlay.NewBoard()
	return NewOrchestrator(gc, rt, geo.DefaultCatalog(), board), gc, rt, board
}

func TestParseEndpoint(t *testing.T) {
	e, err := ParseEndpoint("-23.5412, -46.6386")
	require.NoError(t, err)
	c, ok := e.Coordinate()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{Lat: -23.5412, Lng: -46.6386}, c)

	e, err = ParseEndpoint("Praça da Sé, São Paulo")
	require.NoError(t, err)
	addr, ok := e.Address()
	require.True(t, ok)
	assert.Equal(t, "Praça da Sé, São Paulo", addr)

	e, err = ParseEndpoint("95,10")
	require.NoError(t, err)
	_, ok = e.Coordinate()
	assert.False(t, ok, "out-of-range latitude is treated as text")

	_, err = ParseEndpoint("   ")
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestResolveEndpoint(t *testing.T) {
	o, gc, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	got, err := o.ResolveEndpoint(ctx, CoordinateEndpoint(luz))
	require.NoError(t, err)
	assert.Equal(t, luz, got)

	gc.On("Search", mock.Anything, "Sé").Return([]geocode.Candidate{{Lat: -23.5503, Lon: -46.6340}, {Lat: 1, Lon: 1}}, nil)
	gc.On("Search", mock.Anything, "Atlantida").Return([]geocode.Candidate{}, nil)
	gc.On("Search", mock.Anything, "offline").Return(nil, errors.New("dial tcp: timeout"))

	got, err = o.ResolveEndpoint(ctx, AddressEndpoint("Sé"))
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: -23.5503, Lng: -46.6340}, got)

	_, err = o.ResolveEndpoint(ctx, AddressEndpoint("Atlantida"))
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = o.ResolveEndpoint(ctx, AddressEndpoint("offline"))
	assert.True(t, eris.Is(err, ErrRouting))
}

func TestComputeRoute_RequiresMap(t *testing.T) {
	o, _, rt, _ := newTestOrchestrator(t)

	_, err := o.ComputeRoute(context.Background(), "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	assert.True(t, eris.Is(err, ErrMapUnavailable))
	rt.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
}

func TestComputeRoute_OverlayOff(t *testing.T) {
	o, _, rt, board := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))

	rt.On("Route", mock.Anything, []osrm.LatLng{{Lat: luz.Lat, Lng: luz.Lng}, {Lat: far.Lat, Lng: far.Lng}}).Return(straightRoute(30), nil)

	res, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	require.NoError(t, err)

	assert.Len(t, res.Coordinates, 30)
	assert.False(t, res.OverlayDrawn)
	require.NotEmpty(t, res.Points)
	assert.Equal(t, ClassifiedPoint{Coordinate: luz, Level: geo.LevelHigh, ZoneName: "Luz"}, res.Points[0])

	s, _ := board.Surface("s1")
	assert.Empty(t, s.Layers())
}

func TestComputeRoute_OverlayOnDrawsRoute(t *testing.T) {
	o, gc, rt, board := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))
	require.NoError(t, o.SetOverlay(ctx, "s1", true))

	s, _ := board.Surface("s1")
	require.Len(t, s.Layers(), 1)
	assert.Equal(t, overlay.KindZones, s.Layers()[0].Kind)

	gc.On("Search", mock.Anything, "Luz").Return([]geocode.Candidate{{Lat: luz.Lat, Lon: luz.Lng}}, nil)
	rt.On("Route", mock.Anything, mock.Anything).Return(straightRoute(30), nil)

	res, err := o.ComputeRoute(ctx, "s1", AddressEndpoint("Luz"), CoordinateEndpoint(far))
	require.NoError(t, err)
	assert.True(t, res.OverlayDrawn)

	layers := s.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, overlay.KindRoute, layers[0].Kind)
	assert.Len(t, layers[0].Annotations, len(res.Points))

	// A second route replaces the first overlay.
	_, err = o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	require.NoError(t, err)
	assert.Len(t, s.Layers(), 1)
}

func TestComputeRoute_Failures(t *testing.T) {
	o, gc, rt, _ := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))

	gc.On("Search", mock.Anything, "nowhere").Return([]geocode.Candidate{}, nil)
	_, err := o.ComputeRoute(ctx, "s1", AddressEndpoint("nowhere"), CoordinateEndpoint(far))
	assert.True(t, eris.Is(err, ErrNotFound))

	rt.On("Route", mock.Anything, mock.Anything).Return(nil, eris.Wrap(osrm.ErrNoRoute, "island")).Once()
	_, err = o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	assert.True(t, eris.Is(err, ErrNotFound))

	reset := errors.New("connection reset")
	rt.On("Route", mock.Anything, mock.Anything).Return(nil, reset).Once()
	_, err = o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	assert.True(t, eris.Is(err, ErrRouting))
	assert.ErrorIs(t, err, reset)

	_, err = o.ComputeRoute(ctx, "s1", Endpoint{}, CoordinateEndpoint(far))
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

type blockingRouter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRouter) Route(ctx context.Context, _ ...osrm.LatLng) (*osrm.Route, error) {
	b.started <- struct{}{}
	<-b.release
	return straightRoute(5), nil
}

func TestComputeRoute_StaleResultIsDropped(t *testing.T) {
	br := &blockingRouter{started: make(chan struct{}, 2), release: make(chan struct{})}
	board := overlay.NewBoard()
	o := NewOrchestrator(&mockGeocoder{}, br, geo.DefaultCatalog(), board)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
		first <- outcome{res, err}
	}()
	<-br.started

	second := make(chan outcome, 1)
	go func() {
		res, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(far), CoordinateEndpoint(luz))
		second <- outcome{res, err}
	}()
	<-br.started

	close(br.release)
	a, b := <-first, <-second

	assert.True(t, eris.Is(a.err, ErrSuperseded))
	require.NoError(t, b.err)
	assert.NotNil(t, b.res)
}

func TestSetOverlay_Off(t *testing.T) {
	o, _, _, board := newTestOrchestrator(t)
	ctx := context.Background()

	// Toggling without a map reports the missing surface but keeps the flag.
	err := o.SetOverlay(ctx, "s1", true)
	assert.True(t, eris.Is(err, ErrMapUnavailable))
	assert.True(t, o.OverlayEnabled("s1"))

	// Attaching later draws the zones.
	require.NoError(t, o.AttachMap(ctx, "s1"))
	s, _ := board.Surface("s1")
	require.Len(t, s.Layers(), 1)

	require.NoError(t, o.SetOverlay(ctx, "s1", false))
	assert.False(t, o.OverlayEnabled("s1"))
	assert.Empty(t, s.Layers())

	layers, err := o.Layers("s1")
	require.NoError(t, err)
	assert.Empty(t, layers)

	o.DetachMap("s1")
	_, err = o.Layers("s1")
	assert.True(t, eris.Is(err, ErrMapUnavailable))
}

func TestWithSamplePoints(t *testing.T) {
	rt := &mockRouter{}
	o := NewOrchestrator(&mockGeocoder{}, rt, geo.DefaultCatalog(), overlay.NewBoard(), WithSamplePoints(5))
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))
	rt.On("Route", mock.Anything, mock.Anything).Return(straightRoute(30), nil)

	res, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Points)
	assert.LessOrEqual(t, len(res.Points), 5)
}

func TestComputeRoute_Canceled(t *testing.T) {
	o, gc, rt, _ := newTestOrchestrator(t)
	require.NoError(t, o.AttachMap(context.Background(), "s1"))

	ctx, cancel := context.WithCancel(context.Background())
	rt.On("Route", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, eris.Wrap(context.Canceled, "osrm: request"))

	_, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, eris.Is(err, ErrRouting))

	gctx, gcancel := context.WithCancel(context.Background())
	gc.On("Search", mock.Anything, "Sé").
		Run(func(mock.Arguments) { gcancel() }).
		Return(nil, errors.New("request aborted"))

	_, err = o.ResolveEndpoint(gctx, AddressEndpoint("Sé"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, eris.Is(err, ErrRouting))
}

func TestComputeRoute_OverlayTurnedOffWhileRouting(t *testing.T) {
	o, _, rt, board := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))
	require.NoError(t, o.SetOverlay(ctx, "s1", true))

	rt.On("Route", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { assert.NoError(t, o.SetOverlay(ctx, "s1", false)) }).
		Return(straightRoute(10), nil)

	res, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
	require.NoError(t, err)
	assert.False(t, res.OverlayDrawn)

	s, _ := board.Surface("s1")
	assert.Empty(t, s.Layers())
}

func TestComputeRoute_ConcurrentToggleKeepsMapConsistent(t *testing.T) {
	o, _, rt, board := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.AttachMap(ctx, "s1"))
	rt.On("Route", mock.Anything, mock.Anything).Return(straightRoute(10), nil)

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := o.ComputeRoute(ctx, "s1", CoordinateEndpoint(luz), CoordinateEndpoint(far))
				if err != nil {
					assert.True(t, eris.Is(err, ErrSuperseded), "unexpected error: %v", err)
				}
			}()
			go func(on bool) {
				defer wg.Done()
				assert.NoError(t, o.SetOverlay(ctx, "s1", on))
			}(i%2 == 0)
		}
		wg.Wait()

		s, _ := board.Surface("s1")
		if o.OverlayEnabled("s1") {
			assert.Len(t, s.Layers(), 1, "round %d", round)
		} else {
			assert.Empty(t, s.Layers(), "round %d", round)
		}
	}
}
