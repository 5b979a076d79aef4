// Package route resolves endpoints, computes routes and drives the
// violence-index overlay for each client session.
package route

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/geo"
)

type endpointKind int

const (
	kindCoordinate endpointKind = iota + 1
	kindAddress
)

// Endpoint is either a raw coordinate or free address text.
type Endpoint struct {
	kind    endpointKind
	coord   geo.Coordinate
	address string
}

// CoordinateEndpoint wraps a known coordinate.
func CoordinateEndpoint(c geo.Coordinate) Endpoint {
	return Endpoint{kind: kindCoordinate, coord: c}
}

// AddressEndpoint wraps address text to be geocoded.
func AddressEndpoint(s string) Endpoint {
	return Endpoint{kind: kindAddress, address: strings.TrimSpace(s)}
}

// ParseEndpoint reads "lat,lng" as a coordinate and anything else as an
// address.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, eris.Wrap(ErrInvalidInput, "route: empty endpoint")
	}
	if parts := strings.Split(s, ","); len(parts) == 2 {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if latErr == nil && lngErr == nil {
			c := geo.Coordinate{Lat: lat, Lng: lng}
			if c.Valid() {
				return CoordinateEndpoint(c), nil
			}
		}
	}
	return AddressEndpoint(s), nil
}

// Coordinate returns the wrapped coordinate, if this is a coordinate endpoint.
func (e Endpoint) Coordinate() (geo.Coordinate, bool) {
	return e.coord, e.kind == kindCoordinate
}

// Address returns the address text, if this is an address endpoint.
func (e Endpoint) Address() (string, bool) {
	return e.address, e.kind == kindAddress
}

// IsZero reports whether the endpoint was never set.
func (e Endpoint) IsZero() bool {
	return e.kind == 0
}

func (e Endpoint) String() string {
	switch e.kind {
	case kindCoordinate:
		return e.coord.String()
	case kindAddress:
		return e.address
	default:
		return ""
	}
}
