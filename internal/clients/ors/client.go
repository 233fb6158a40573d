package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

var (
	// ErrRateLimited is returned when the provider answers 429
	ErrRateLimited = errors.New("directions rate limit exceeded")
	// ErrNoRoutes is returned when the provider found no route
	ErrNoRoutes = errors.New("no routes found in response")
)

// HTTPDoer is the subset of *http.Client the client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to an OpenRouteService compatible directions API
type Client struct {
	apiKey     string
	profile    string
	baseURL    string
	httpClient HTTPDoer
}

// RouteData represents the processed route returned by the provider
type RouteData struct {
	DistanceMeters  float64
	DurationSeconds float64
	Polyline        geo.Polyline
}

// NewClient creates a directions client using a default HTTP client
func NewClient(apiKey, baseURL, profile string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTPDoer(apiKey, baseURL, profile, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a directions client with an injected HTTP doer
func NewClientWithHTTPDoer(apiKey, baseURL, profile string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if profile == "" {
		profile = "driving-car"
	}
	return &Client{
		apiKey:     apiKey,
		profile:    profile,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// Directions returns the route polyline between origin and destination.
// A nil avoid omits the avoid_polygons option entirely.
func (c *Client) Directions(ctx context.Context, origin, destination geo.Point, avoid geo.MultiPolygon) (geo.Polyline, error) {
	route, err := c.ComputeRoute(ctx, origin, destination, avoid)
	if err != nil {
		return geo.Polyline{}, err
	}
	return route.Polyline, nil
}

// ComputeRoute performs the directions request and decodes the first route
func (c *Client) ComputeRoute(ctx context.Context, origin, destination geo.Point, avoid geo.MultiPolygon) (*RouteData, error) {
	requestBody := directionsRequest{
		Coordinates: [][2]float64{
			{origin.Longitude, origin.Latitude},
			{destination.Longitude, destination.Latitude},
		},
	}
	if len(avoid) > 0 {
		polygons, err := geo.MarshalGeometry(avoid)
		if err != nil {
			return nil, fmt.Errorf("failed to encode avoid polygons: %w", err)
		}
		requestBody.Options = &directionsOptions{AvoidPolygons: polygons}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error %d (code %d): %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	return processRoute(response.Routes[0])
}

func processRoute(route directionsRoute) (*RouteData, error) {
	points, err := geo.DecodePolyline(route.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route geometry: %w", err)
	}

	return &RouteData{
		DistanceMeters:  route.Summary.Distance,
		DurationSeconds: route.Summary.Duration,
		Polyline: geo.Polyline{
			EncodedPolyline: route.Geometry,
			Points:          points,
		},
	}, nil
}

type directionsRequest struct {
	Coordinates [][2]float64       `json:"coordinates"`
	Options     *directionsOptions `json:"options,omitempty"`
}

type directionsOptions struct {
	AvoidPolygons json.RawMessage `json:"avoid_polygons"`
}

type directionsResponse struct {
	Routes []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Geometry string `json:"geometry"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
