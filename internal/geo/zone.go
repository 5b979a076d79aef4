// Package geo provides the risk-zone catalog, proximity classification and
// route sampling used by the violence-index overlay.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Level is the qualitative risk level of a zone.
type Level int

// Risk levels. The numeric value is the classification priority.
const (
	LevelLow      Level = 1
	LevelModerate Level = 2
	LevelHigh     Level = 3
)

// GeneralArea is the zone name reported when no catalog zone is near.
const GeneralArea = "Área Geral"

// Priority returns the tie-break priority of the level (High=3 > Moderate=2 > Low=1).
func (l Level) Priority() int {
	return int(l)
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Label returns the localized popup text for the level.
func (l Level) Label() string {
	switch l {
	case LevelModerate:
		return "Moderado"
	case LevelHigh:
		return "Alto (Risco)"
	default:
		return "Baixo (Seguro)"
	}
}

// Color returns the hex color used for overlay annotations of this level.
func (l Level) Color() string {
	switch l {
	case LevelModerate:
		return "#eab308"
	case LevelHigh:
		return "#ef4444"
	default:
		return "#22c55e"
	}
}

// ParseLevel parses a level name. Accepted forms are the English names and
// the Portuguese ones used by the catalog files (baixo, moderado, alto).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixo":
		return LevelLow, nil
	case "moderate", "moderado", "medio", "médio":
		return LevelModerate, nil
	case "high", "alto":
		return LevelHigh, nil
	default:
		return 0, eris.Errorf("geo: unknown risk level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < LevelLow || l > LevelHigh {
		return nil, eris.Errorf("geo: invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// RiskZone is a named point tagged with a risk level.
type RiskZone struct {
	Name       string     `json:"name" yaml:"name"`
	Coordinate Coordinate `json:"coordinate" yaml:"coordinate"`
	Level      Level      `json:"level" yaml:"level"`
}

// ClassificationResult is the outcome of classifying a single point.
type ClassificationResult struct {
	Level    Level  `json:"level"`
	ZoneName string `json:"zone_name"`
}

// DefaultResult is returned when no zone is within the danger radius.
func DefaultResult() ClassificationResult {
	return ClassificationResult{Level: LevelLow, ZoneName: GeneralArea}
}
