package geo

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/umahmood/haversine"
)

// DangerRadiusMeters is the distance within which a zone counts as near.
const DangerRadiusMeters = 1000.0

const (
	metersPerDegreeLat = 2 * math.Pi * 6371000 / 360
	searchMargin       = 1.1
	// Below this cos(lat) the search box degenerates and a linear scan is used.
	minLngScale = 0.05
)

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lng},
		haversine.Coord{Lat: b.Lat, Lon: b.Lng},
	)
	return km * 1000
}

type zoneEntry struct {
	index int
	rect  rtreego.Rect
}

func (e *zoneEntry) Bounds() rtreego.Rect {
	return e.rect
}

// Classifier answers "which zone is this point in" against a fixed catalog.
type Classifier struct {
	zones []RiskZone
	tree  *rtreego.Rtree
}

// NewClassifier indexes the catalog for proximity lookups.
func NewClassifier(c *Catalog) *Classifier {
	cl := &Classifier{
		zones: c.Zones(),
		tree:  rtreego.NewTree(2, 2, 16),
	}
	for i, z := range cl.zones {
		rect, err := rtreego.NewRect(rtreego.Point{z.Coordinate.Lat, z.Coordinate.Lng}, []float64{1e-9, 1e-9})
		if err != nil {
			continue
		}
		cl.tree.Insert(&zoneEntry{index: i, rect: rect})
	}
	return cl
}

// Classify returns the highest-priority zone within DangerRadiusMeters of p,
// or DefaultResult when none is. Equal priorities resolve to catalog order.
func (cl *Classifier) Classify(p Coordinate) ClassificationResult {
	result := DefaultResult()
	found := false
	best := 0
	for _, i := range cl.candidates(p) {
		z := cl.zones[i]
		if DistanceMeters(p, z.Coordinate) > DangerRadiusMeters {
			continue
		}
		if !found || z.Level.Priority() > best {
			found = true
			best = z.Level.Priority()
			result = ClassificationResult{Level: z.Level, ZoneName: z.Name}
		}
	}
	return result
}

// candidates returns catalog indexes, in catalog order, of zones that may lie
// within the danger radius of p.
func (cl *Classifier) candidates(p Coordinate) []int {
	dLat := DangerRadiusMeters / metersPerDegreeLat * searchMargin
	scale := math.Cos(p.Lat * math.Pi / 180)
	if scale < minLngScale || !p.Valid() {
		return cl.all()
	}
	dLng := dLat / scale
	if p.Lng-dLng < -180 || p.Lng+dLng > 180 {
		return cl.all()
	}

	box, err := rtreego.NewRect(rtreego.Point{p.Lat - dLat, p.Lng - dLng}, []float64{2 * dLat, 2 * dLng})
	if err != nil {
		return cl.all()
	}
	hits := cl.tree.SearchIntersect(box)
	idx := make([]int, 0, len(hits))
	for _, h := range hits {
		idx = append(idx, h.(*zoneEntry).index)
	}
	sort.Ints(idx)
	return idx
}

func (cl *Classifier) all() []int {
	idx := make([]int, len(cl.zones))
	for i := range idx {
		idx[i] = i
	}
	return idx
}
