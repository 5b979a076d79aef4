package location

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/store"
)

type mockLookup struct{ mock.Mock }

func (m *mockLookup) City(ip net.IP) (*geoip2.City, error) {
	args := m.Called(ip.String())
	if c := args.Get(0); c != nil {
		return c.(*geoip2.City), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "loc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewService(st, append([]Option{WithClock(clock)}, opts...)...)
}

func TestUpdate_RoundsAndStores(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	loc, err := svc.Update(ctx, "u1", -23.55052345678, -46.63330987654, 15)
	require.NoError(t, err)
	assert.InDelta(t, -23.550523, loc.Lat, 1e-9)
	assert.InDelta(t, -46.633310, loc.Lng, 1e-9)
	assert.Equal(t, SourceDevice, loc.Source)

	got, err := svc.Current(ctx, "u1", "203.0.113.9")
	require.NoError(t, err)
	assert.InDelta(t, loc.Lat, got.Lat, 1e-9)
	assert.Equal(t, SourceDevice, got.Source)
}

func TestUpdate_RejectsOutOfRange(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Update(context.Background(), "u1", 91, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	_, err = svc.Update(context.Background(), "u1", 0, -181, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestCurrent_GeoIP(t *testing.T) {
	lookup := &mockLookup{}
	city := &geoip2.City{}
	city.Location.Latitude = -22.9068
	city.Location.Longitude = -43.1729
	city.Location.AccuracyRadius = 20
	lookup.On("City", "200.160.2.3").Return(city, nil)

	svc := newTestService(t, WithGeoIP(lookup))
	loc, err := svc.Current(context.Background(), "u1", "200.160.2.3")
	require.NoError(t, err)
	assert.Equal(t, SourceGeoIP, loc.Source)
	assert.InDelta(t, -22.9068, loc.Lat, 1e-9)
	assert.InDelta(t, 20000, loc.Accuracy, 1e-9)
	lookup.AssertExpectations(t)
}

func TestCurrent_Fallback(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("City", "200.160.2.3").Return(nil, errors.New("not found"))

	svc := newTestService(t, WithGeoIP(lookup))
	ctx := context.Background()

	for _, ip := range []string{"200.160.2.3", "127.0.0.1", "10.0.0.4", ""} {
		loc, err := svc.Current(ctx, "u1", ip)
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, loc.Source, "ip %q", ip)
		assert.InDelta(t, FallbackLat, loc.Lat, 1e-9)
		assert.InDelta(t, FallbackLng, loc.Lng, 1e-9)
		assert.Zero(t, loc.Accuracy)
	}
	lookup.AssertNumberOfCalls(t, "City", 1)
}

func TestCurrent_NoGeoIPConfigured(t *testing.T) {
	svc := newTestService(t)
	loc, err := svc.Current(context.Background(), "u1", "200.160.2.3")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, loc.Source)
}
