package geo

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable, ordered list of risk zones. Order matters:
// classification ties between equal-priority zones go to the earlier entry.
type Catalog struct {
	zones []RiskZone
}

// NewCatalog validates zones and returns a catalog holding a private copy.
func NewCatalog(zones []RiskZone) (*Catalog, error) {
	out := make([]RiskZone, len(zones))
	for i, z := range zones {
		z.Name = strings.TrimSpace(z.Name)
		if z.Name == "" {
			return nil, eris.Errorf("geo: zone %d has no name", i)
		}
		if !z.Coordinate.Valid() {
			return nil, eris.Errorf("geo: zone %q has invalid coordinate %v", z.Name, z.Coordinate)
		}
		if z.Level < LevelLow || z.Level > LevelHigh {
			return nil, eris.Errorf("geo: zone %q has invalid level %d", z.Name, int(z.Level))
		}
		out[i] = z
	}
	return &Catalog{zones: out}, nil
}

// Zones returns a copy of the catalog entries in catalog order.
func (c *Catalog) Zones() []RiskZone {
	out := make([]RiskZone, len(c.zones))
	copy(out, c.zones)
	return out
}

// Len returns the number of zones.
func (c *Catalog) Len() int {
	return len(c.zones)
}

type catalogFile struct {
	Zones []RiskZone `yaml:"zones"`
}

// LoadCatalog reads a YAML catalog file of the form:
//
//	zones:
//	  - name: Luz
//	    coordinate: {lat: -23.5412, lng: -46.6386}
//	    level: high
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read catalog %s", path)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "geo: parse catalog %s", path)
	}
	if len(f.Zones) == 0 {
		return nil, eris.Errorf("geo: catalog %s has no zones", path)
	}
	return NewCatalog(f.Zones)
}

// DefaultCatalog returns the built-in São Paulo catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultZones)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultZones = []RiskZone{
	{Name: "Luz", Coordinate: Coordinate{Lat: -23.5412, Lng: -46.6386}, Level: LevelHigh},
	{Name: "Sé", Coordinate: Coordinate{Lat: -23.5503, Lng: -46.6340}, Level: LevelHigh},
	{Name: "República", Coordinate: Coordinate{Lat: -23.5432, Lng: -46.6424}, Level: LevelModerate},
	{Name: "Santa Cecília", Coordinate: Coordinate{Lat: -23.5380, Lng: -46.6520}, Level: LevelModerate},
	{Name: "Bom Retiro", Coordinate: Coordinate{Lat: -23.5268, Lng: -46.6394}, Level: LevelModerate},
	{Name: "Brás", Coordinate: Coordinate{Lat: -23.5452, Lng: -46.6169}, Level: LevelModerate},
	{Name: "Liberdade", Coordinate: Coordinate{Lat: -23.5587, Lng: -46.6350}, Level: LevelModerate},
	{Name: "Avenida Paulista", Coordinate: Coordinate{Lat: -23.5614, Lng: -46.6559}, Level: LevelLow},
	{Name: "Pinheiros", Coordinate: Coordinate{Lat: -23.5671, Lng: -46.6928}, Level: LevelLow},
	{Name: "Vila Mariana", Coordinate: Coordinate{Lat: -23.5891, Lng: -46.6345}, Level: LevelLow},
	{Name: "Moema", Coordinate: Coordinate{Lat: -23.6010, Lng: -46.6650}, Level: LevelLow},
	{Name: "Paraisópolis", Coordinate: Coordinate{Lat: -23.6168, Lng: -46.7297}, Level: LevelHigh},
	{Name: "Capão Redondo", Coordinate: Coordinate{Lat: -23.6715, Lng: -46.7795}, Level: LevelHigh},
	{Name: "Jardim Ângela", Coordinate: Coordinate{Lat: -23.7064, Lng: -46.7727}, Level: LevelHigh},
	{Name: "Brasilândia", Coordinate: Coordinate{Lat: -23.4690, Lng: -46.6888}, Level: LevelHigh},
	{Name: "Cidade Tiradentes", Coordinate: Coordinate{Lat: -23.5837, Lng: -46.4098}, Level: LevelHigh},
	{Name: "Itaim Paulista", Coordinate: Coordinate{Lat: -23.5000, Lng: -46.3950}, Level: LevelModerate},
}
