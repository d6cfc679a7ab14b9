// Package mapbox implements a routing backend on the Mapbox Directions API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/pkg/geospatial"
)

const (
	DefaultBaseURL = "https://api.mapbox.com"
	defaultTimeout = 5 * time.Second
)

// directionsResponse is the subset of the Directions v5 response we read.
type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry string  `json:"geometry"` // polyline, precision 5
	} `json:"routes"`
}

// Client calls the Directions API. It implements ports.RoutingBackend.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *fasthttp.Client
}

// New creates a Client. An empty baseURL means DefaultBaseURL and a
// non-positive timeout means five seconds.
func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client: &fasthttp.Client{
			Name:                "tourguide",
			MaxConnsPerHost:     32,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Name identifies the backend in logs and metrics.
func (c *Client) Name() string { return domain.RouteSourceMapbox }

func profile(mode domain.TravelMode) string {
	if mode == domain.TravelModeDriving {
		return "driving"
	}
	return "walking"
}

func (c *Client) directionsURL(start, end domain.Coordinate, mode domain.TravelMode) string {
	// Mapbox orders positions as lon,lat.
	return fmt.Sprintf("%s/directions/v5/mapbox/%s/%.6f,%.6f;%.6f,%.6f?geometries=polyline&overview=full&access_token=%s",
		c.baseURL, profile(mode),
		start.Longitude, start.Latitude, end.Longitude, end.Latitude,
		url.QueryEscape(c.token))
}

// Directions fetches the fastest route between start and end. It fails with
// domain.ErrNoRoute when Mapbox finds none.
func (c *Client) Directions(ctx context.Context, start, end domain.Coordinate, mode domain.TravelMode) (*domain.RouteInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.directionsURL(start, end, mode))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("mapbox directions: %w", err)
	}

	var body directionsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("mapbox directions: status %d: decode: %w", resp.StatusCode(), err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("mapbox directions: status %d: %s", resp.StatusCode(), body.Message)
	}
	return toRoute(body, mode)
}

func toRoute(body directionsResponse, mode domain.TravelMode) (*domain.RouteInfo, error) {
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("%w: mapbox code %s", domain.ErrNoRoute, body.Code)
	}
	best := body.Routes[0]

	path, err := geospatial.DecodePolyline(best.Geometry)
	if err != nil {
		return nil, fmt.Errorf("mapbox geometry: %w", err)
	}
	coords := make([]domain.Coordinate, len(path))
	for i, p := range path {
		coords[i] = domain.Coordinate{Latitude: p[0], Longitude: p[1]}
	}

	return &domain.RouteInfo{
		Distance:    best.Distance,
		Duration:    best.Duration,
		Coordinates: coords,
		Mode:        mode,
		Source:      domain.RouteSourceMapbox,
	}, nil
}
