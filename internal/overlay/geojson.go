package overlay

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	circleSegments = 32
	earthRadiusM   = 6371000.0
)

// FeatureCollection converts groups into a GeoJSON FeatureCollection. Each
// annotation becomes a polygon approximating its circle, with the center,
// radius, color and popup carried as properties.
func FeatureCollection(groups []Group) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for gi, g := range groups {
		for ai, a := range g.Annotations {
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:       fmt.Sprintf("%s-%d-%d", g.Kind, gi, ai),
				Geometry: circlePolygon(a.Center.Lat, a.Center.Lng, a.RadiusMeters),
				Properties: map[string]interface{}{
					"kind":      string(g.Kind),
					"center":    []float64{a.Center.Lng, a.Center.Lat},
					"radius_m":  a.RadiusMeters,
					"color":     a.Color,
					"level":     a.Level.String(),
					"zone_name": a.ZoneName,
					"popup":     a.Popup,
				},
			})
		}
	}
	return fc
}

// MarshalGeoJSON renders groups as GeoJSON bytes.
func MarshalGeoJSON(groups []Group) ([]byte, error) {
	b, err := json.Marshal(FeatureCollection(groups))
	if err != nil {
		return nil, eris.Wrap(err, "overlay: marshal geojson")
	}
	return b, nil
}

// circlePolygon approximates a circle on the sphere with a closed ring.
func circlePolygon(lat, lng, radius float64) *geom.Polygon {
	latR := lat * math.Pi / 180
	lngR := lng * math.Pi / 180
	d := radius / earthRadiusM

	flat := make([]float64, 0, (circleSegments+1)*2)
	for i := 0; i < circleSegments; i++ {
		bearing := 2 * math.Pi * float64(i) / circleSegments
		pLat := math.Asin(math.Sin(latR)*math.Cos(d) + math.Cos(latR)*math.Sin(d)*math.Cos(bearing))
		pLng := lngR + math.Atan2(
			math.Sin(bearing)*math.Sin(d)*math.Cos(latR),
			math.Cos(d)-math.Sin(latR)*math.Sin(pLat),
		)
		flat = append(flat, pLng*180/math.Pi, pLat*180/math.Pi)
	}
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}
