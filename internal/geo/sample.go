package geo

// DefaultSamplePoints bounds the number of points annotated along a route.
const DefaultSamplePoints = 12

// Sample picks an evenly spaced subset of coords: indices 0, step, 2*step...
// with step = max(1, len/maxPoints). The result may hold one point more than
// maxPoints when len is not a multiple of it.
func Sample(coords []Coordinate, maxPoints int) []Coordinate {
	if len(coords) == 0 {
		return []Coordinate{}
	}
	if maxPoints <= 0 {
		maxPoints = DefaultSamplePoints
	}
	step := len(coords) / maxPoints
	if step < 1 {
		step = 1
	}
	out := make([]Coordinate, 0, len(coords)/step+1)
	for i := 0; i < len(coords); i += step {
		out = append(out, coords[i])
	}
	return out
}
