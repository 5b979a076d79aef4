// Package geocode resolves free-text addresses to coordinates using the
// Nominatim search API, with optional in-memory or Redis caching.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client geocodes free-text queries.
type Client interface {
	// Search returns candidates ordered by relevance. An empty slice means no
	// match and is not an error.
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Candidate is a single geocoding match.
type Candidate struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Option configures the geocoder.
type Option func(*nominatim)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithBaseURL points the client at a different Nominatim deployment.
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		if u != "" {
			n.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the requests-per-second limit. The public Nominatim
// usage policy allows at most 1 req/s.
func WithRateLimit(rps float64) Option {
	return func(n *nominatim) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(n *nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithCountryCodes restricts results to ISO 3166-1 alpha-2 codes, e.g. "br".
func WithCountryCodes(codes ...string) Option {
	return func(n *nominatim) {
		n.countryCodes = codes
	}
}

// WithLimit sets how many candidates Nominatim returns.
func WithLimit(limit int) Option {
	return func(n *nominatim) {
		if limit > 0 {
			n.limit = limit
		}
	}
}

type nominatim struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes []string
	limit        int
	limiter      *rate.Limiter
}

// NewClient creates a Nominatim-backed Client.
func NewClient(opts ...Option) Client {
	n := &nominatim{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  "navis-api/1.0",
		limit:      5,
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search implements Client.
func (n *nominatim) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("geocode: empty query")
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {strconv.Itoa(n.limit)},
	}
	if len(n.countryCodes) > 0 {
		params.Set("countrycodes", strings.Join(n.countryCodes, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var raw []nominatimResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		out = append(out, Candidate{Lat: lat, Lon: lon, DisplayName: r.DisplayName})
	}
	return out, nil
}
