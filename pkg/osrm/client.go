// Package osrm computes driving routes with the OSRM HTTP API.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const defaultBaseURL = "https://router.project-osrm.org"

// ErrNoRoute is returned when OSRM cannot connect the waypoints.
var ErrNoRoute = eris.New("osrm: no route between waypoints")

// LatLng is a waypoint or path vertex in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is the best route OSRM returned.
type Route struct {
	Coordinates     []LatLng `json:"coordinates"`
	DistanceMeters  float64  `json:"distance_m"`
	DurationSeconds float64  `json:"duration_s"`
}

// Client computes routes between waypoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	profile    string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a self-hosted OSRM instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithProfile selects the routing profile (driving, walking, cycling).
func WithProfile(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.profile = p
		}
	}
}

// NewClient creates an OSRM client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultBaseURL,
		profile:    "driving",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
		Geometry *geojson.Geometry `json:"geometry"`
	} `json:"routes"`
}

// Route requests the route through the given waypoints (at least two).
func (c *Client) Route(ctx context.Context, waypoints ...LatLng) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, eris.New("osrm: at least two waypoints required")
	}

	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = fmt.Sprintf("%.6f,%.6f", w.Lng, w.Lat)
	}
	params := url.Values{
		"overview":     {"full"},
		"geometries":   {"geojson"},
		"alternatives": {"false"},
		"steps":        {"false"},
	}
	reqURL := fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, c.profile, strings.Join(parts, ";"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: read body")
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrapf(err, "osrm: parse response (status %d)", resp.StatusCode)
	}

	switch rr.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, eris.Wrap(ErrNoRoute, rr.Message)
	default:
		return nil, eris.Errorf("osrm: %s: %s (status %d)", rr.Code, rr.Message, resp.StatusCode)
	}
	if len(rr.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := rr.Routes[0]
	coords, err := decodeLine(best.Geometry)
	if err != nil {
		return nil, err
	}
	return &Route{
		Coordinates:     coords,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

func decodeLine(g *geojson.Geometry) ([]LatLng, error) {
	if g == nil {
		return nil, eris.New("osrm: route has no geometry")
	}
	t, err := g.Decode()
	if err != nil {
		return nil, eris.Wrap(err, "osrm: decode geometry")
	}
	ls, ok := t.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("osrm: unexpected geometry %T", t)
	}
	out := make([]LatLng, 0, ls.NumCoords())
	for _, c := range ls.Coords() {
		out = append(out, LatLng{Lat: c.Y(), Lng: c.X()})
	}
	return out, nil
}
