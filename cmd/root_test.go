package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/config"
	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/route"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "zones", "route"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "navis", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestZonesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range zonesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["classify"])
}

func TestParseCoordinate(t *testing.T) {
	p, err := parseCoordinate("-23.5412", "-46.6386")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: -23.5412, Lng: -46.6386}, p)

	_, err = parseCoordinate("abc", "1")
	assert.Error(t, err)
	_, err = parseCoordinate("91", "0")
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, geo.DefaultCatalog().Len(), c.Len())

	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`zones:
  - name: Centro
    coordinate: {lat: -22.9035, lng: -43.2096}
    level: high
`), 0o600))
	c, err = loadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "Centro", c.Zones()[0].Name)

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatZones(t *testing.T) {
	var buf bytes.Buffer
	formatZones(&buf, geo.DefaultCatalog().Zones())
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Luz")
	assert.Contains(t, out, "high")
}

func TestFormatRoute(t *testing.T) {
	var buf bytes.Buffer
	formatRoute(&buf, &route.Result{
		Origin:          geo.Coordinate{Lat: -23.5412, Lng: -46.6386},
		Destination:     geo.Coordinate{Lat: -23.5503, Lng: -46.6340},
		DistanceMeters:  2500,
		DurationSeconds: 600,
		Points: []route.ClassifiedPoint{
			{Coordinate: geo.Coordinate{Lat: -23.5412, Lng: -46.6386}, Level: geo.LevelHigh, ZoneName: "Luz"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "2.5 km")
	assert.Contains(t, out, "10 min")
	assert.Contains(t, out, "Luz")
}

func TestServerTimeouts(t *testing.T) {
	read, write, shutdown := serverTimeouts(config.ServerConfig{ReadTimeoutSecs: 15, WriteTimeoutSecs: 60, ShutdownTimeoutSecs: 10})
	assert.Equal(t, 15.0, read.Seconds())
	assert.Equal(t, 60.0, write.Seconds())
	assert.Equal(t, 10.0, shutdown.Seconds())
}
