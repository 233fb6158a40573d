package ors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const routeFixture = `{
  "routes": [{
    "summary": {"distance": 592318.4, "duration": 21530.2},
    "geometry": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"
  }]
}`

var (
	murphys = geo.Point{Latitude: 38.1327, Longitude: -120.4606}
	arnold  = geo.Point{Latitude: 38.2458, Longitude: -120.3486}
)

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	var body map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	return body
}

func TestComputeRoute_Success(t *testing.T) {
	var captured map[string]any
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodPost &&
			req.URL.String() == "https://ors.test/v2/directions/driving-car" &&
			req.Header.Get("Authorization") == "test-api-key"
	})).Run(func(args mock.Arguments) {
		captured = decodeBody(t, args.Get(0).(*http.Request))
	}).Return(createMockResponse(200, routeFixture), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://ors.test", "", mockHTTP)
	avoid := geo.MultiPolygon{geo.BufferCircle(arnold, 1000, 16)}

	route, err := client.ComputeRoute(context.Background(), murphys, arnold, avoid)
	require.NoError(t, err)
	mockHTTP.AssertExpectations(t)

	assert.InDelta(t, 592318.4, route.DistanceMeters, 1e-6)
	assert.InDelta(t, 21530.2, route.DurationSeconds, 1e-6)
	require.Len(t, route.Polyline.Points, 3)
	assert.InDelta(t, 38.5, route.Polyline.Points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, route.Polyline.Points[0].Longitude, 1e-5)
	assert.NotEmpty(t, route.Polyline.EncodedPolyline)

	coordinates := captured["coordinates"].([]any)
	require.Len(t, coordinates, 2)
	assert.Equal(t, []any{murphys.Longitude, murphys.Latitude}, coordinates[0], "coordinates are lng,lat")

	options := captured["options"].(map[string]any)
	polygons := options["avoid_polygons"].(map[string]any)
	assert.Equal(t, "MultiPolygon", polygons["type"])
}

func TestDirections_OmitsEmptyAvoidance(t *testing.T) {
	var captured map[string]any
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
		captured = decodeBody(t, args.Get(0).(*http.Request))
	}).Return(createMockResponse(200, routeFixture), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://ors.test", "driving-hgv", mockHTTP)
	line, err := client.Directions(context.Background(), murphys, arnold, nil)
	require.NoError(t, err)
	assert.Len(t, line.Points, 3)

	_, hasOptions := captured["options"]
	assert.False(t, hasOptions, "an empty avoidance option must be omitted")

	req := mockHTTP.Calls[0].Arguments.Get(0).(*http.Request)
	assert.Equal(t, "/v2/directions/driving-hgv", req.URL.Path)
}

func TestComputeRoute_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		doErr      error
		wantErr    error
		contains   string
	}{
		{
			name:       "rate limited",
			statusCode: 429,
			body:       `{}`,
			wantErr:    ErrRateLimited,
		},
		{
			name:       "provider error",
			statusCode: 400,
			body:       `{"error":{"code":2004,"message":"Request parameters exceed the server configuration limits."}}`,
			contains:   "code 2004",
		},
		{
			name:       "plain error body",
			statusCode: 502,
			body:       `bad gateway`,
			contains:   "API error 502: bad gateway",
		},
		{
			name:       "no routes",
			statusCode: 200,
			body:       `{"routes":[]}`,
			wantErr:    ErrNoRoutes,
		},
		{
			name:       "malformed response",
			statusCode: 200,
			body:       `{"routes":`,
			contains:   "failed to decode response",
		},
		{
			name:       "empty geometry",
			statusCode: 200,
			body:       `{"routes":[{"summary":{"distance":1,"duration":1},"geometry":""}]}`,
			contains:   "failed to decode route geometry",
		},
		{
			name:     "transport failure",
			doErr:    errors.New("connection refused"),
			contains: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			var resp *http.Response
			if tt.doErr == nil {
				resp = createMockResponse(tt.statusCode, tt.body)
			}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(resp, tt.doErr)

			client := NewClientWithHTTPDoer("k", "https://ors.test", "", mockHTTP)
			_, err := client.Directions(context.Background(), murphys, arnold, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}
