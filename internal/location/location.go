// Package location tracks each user's last known position and resolves a
// best-effort position when none is known.
package location

import (
	"context"
	"math"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/oschwald/geoip2-golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

// São Paulo city center, used when nothing better is known.
const (
	FallbackLat = -23.550500
	FallbackLng = -46.633300
)

// Position sources.
const (
	SourceDevice   = "device"
	SourceGeoIP    = "geoip"
	SourceFallback = "fallback"
)

var ErrInvalidCoordinates = eris.New("Coordenadas inválidas")

// CityLookup is the subset of *geoip2.Reader the service uses.
type CityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Service stores and resolves positions.
type Service struct {
	store store.Store
	geoip CityLookup
	clock clockwork.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithGeoIP enables the IP lookup step.
func WithGeoIP(l CityLookup) Option {
	return func(s *Service) { s.geoip = l }
}

// WithClock sets the clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a location Service.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenGeoIP opens a MaxMind City database.
func OpenGeoIP(path string) (*geoip2.Reader, error) {
	r, err := geoip2.Open(path)
	return r, eris.Wrapf(err, "location: open geoip db %s", path)
}

// Update stores the device-reported position, rounded to 6 decimals.
func (s *Service) Update(ctx context.Context, userID string, lat, lng, accuracy float64) (*model.Location, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || math.IsNaN(lat) || math.IsNaN(lng) {
		return nil, ErrInvalidCoordinates
	}
	loc := model.Location{
		UserID:    userID,
		Lat:       round6(lat),
		Lng:       round6(lng),
		Accuracy:  math.Max(accuracy, 0),
		Source:    SourceDevice,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.SaveLocation(ctx, loc); err != nil {
		return nil, eris.Wrap(err, "location: save")
	}
	return &loc, nil
}

// Current returns the last stored position, then a GeoIP estimate for
// remoteIP, then the fallback.
func (s *Service) Current(ctx context.Context, userID, remoteIP string) (*model.Location, error) {
	loc, err := s.store.GetLocation(ctx, userID)
	if err == nil {
		return loc, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "location: get")
	}

	if l := s.lookupIP(userID, remoteIP); l != nil {
		return l, nil
	}
	return &model.Location{
		UserID:    userID,
		Lat:       FallbackLat,
		Lng:       FallbackLng,
		Source:    SourceFallback,
		UpdatedAt: s.clock.Now().UTC(),
	}, nil
}

func (s *Service) lookupIP(userID, remoteIP string) *model.Location {
	if s.geoip == nil {
		return nil
	}
	ip := net.ParseIP(remoteIP)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return nil
	}
	city, err := s.geoip.City(ip)
	if err != nil {
		zap.L().Debug("location: geoip lookup failed", zap.String("ip", remoteIP), zap.Error(err))
		return nil
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return nil
	}
	return &model.Location{
		UserID:    userID,
		Lat:       round6(city.Location.Latitude),
		Lng:       round6(city.Location.Longitude),
		Accuracy:  float64(city.Location.AccuracyRadius) * 1000,
		Source:    SourceGeoIP,
		UpdatedAt: s.clock.Now().UTC(),
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
