package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHTTP_HazardLifecycle(t *testing.T) {
	planner, _ := newTestPlanner(t, nil)
	h := NewHTTPHandler(planner)

	rr := serve(t, h, http.MethodPost, "/api/v1/hazards",
		`{"kind":"buffered_point","center":{"lat":38.19,"lng":-120.405},"radius_meters":500}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode(t, rr)
	id := created["hazard"].(map[string]any)["id"].(string)
	avoidance := created["avoidance"].(map[string]any)
	assert.Equal(t, "MultiPolygon", avoidance["accepted"].(map[string]any)["type"])

	rr = serve(t, h, http.MethodPost, "/api/v1/hazards",
		`{"geojson":{"type":"Polygon","coordinates":[[[-120.35,38.25],[-120.34,38.25],[-120.34,38.26],[-120.35,38.26],[-120.35,38.25]]]}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "drawn_polygon", decode(t, rr)["hazard"].(map[string]any)["kind"])

	rr = serve(t, h, http.MethodGet, "/api/v1/hazards", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["hazards"], 2)

	rr = serve(t, h, http.MethodGet, "/api/v1/hazards/"+id, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, h, http.MethodDelete, "/api/v1/hazards/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = serve(t, h, http.MethodDelete, "/api/v1/hazards/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, h, http.MethodDelete, "/api/v1/hazards", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(t, h, http.MethodGet, "/api/v1/avoidance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	region := decode(t, rr)
	assert.Nil(t, region["accepted"])
	assert.Empty(t, region["dropped"])
}

func TestHTTP_HazardValidation(t *testing.T) {
	planner, _ := newTestPlanner(t, nil)
	h := NewHTTPHandler(planner)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"kind":`},
		{"unknown kind", `{"kind":"triangle"}`},
		{"missing radius", `{"kind":"drawn_circle","center":{"lat":38,"lng":-120}}`},
		{"point geometry", `{"geojson":{"type":"Point","coordinates":[-120,38]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, http.MethodPost, "/api/v1/hazards", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

func TestHTTP_RouteErrors(t *testing.T) {
	router := &MockRouter{}
	planner, _ := newTestPlanner(t, router)
	h := NewHTTPHandler(planner)

	rr := serve(t, h, http.MethodPost, "/api/v1/hazards",
		`{"kind":"buffered_point","center":{"lat":0,"lng":1},"radius_meters":500}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(t, h, http.MethodPost, "/api/v1/route",
		`{"origin":{"lat":0,"lng":0},"destination":{"lat":0,"lng":2}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, false, body["feasibility"].(map[string]any)["ok"])

	router.On("Directions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(geo.Polyline{}, errors.New("upstream timeout")).Once()
	rr = serve(t, h, http.MethodPost, "/api/v1/route",
		`{"origin":{"lat":0,"lng":0.5},"destination":{"lat":0,"lng":1.5}}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = serve(t, h, http.MethodPost, "/api/v1/route", `{"origin":{"lat":95,"lng":0},"destination":{"lat":0,"lng":1}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, h, http.MethodGet, "/api/v1/route", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, h, http.MethodPost, "/api/v1/simulation", `{"speed_kmh":50}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHTTP_RouteTrackingAndExport(t *testing.T) {
	router := &MockRouter{}
	planner, _ := newTestPlanner(t, router)
	h := NewHTTPHandler(planner)

	router.On("Directions", mock.Anything, murphys, arnold, mock.MatchedBy(isNilAvoid)).Return(hwy4, nil).Once()

	rr := serve(t, h, http.MethodPost, "/api/v1/route",
		`{"origin":{"lat":38.1327,"lng":-120.4606},"destination":{"lat":38.2458,"lng":-120.3486}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode(t, rr)["route"].(map[string]any)["points"], 3)

	rr = serve(t, h, http.MethodGet, "/api/v1/route", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, h, http.MethodPost, "/api/v1/position", `{"point":{"lat":38.19,"lng":-120.405},"source":"simulated"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, string(routing.OnRoute), decode(t, rr)["status"])

	rr = serve(t, h, http.MethodPost, "/api/v1/position", `{"point":{"lat":38.19,"lng":-120.405},"source":"gps"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, h, http.MethodGet, "/api/v1/deviation", "")
	assert.Equal(t, string(routing.OnRoute), decode(t, rr)["status"])

	rr = serve(t, h, http.MethodDelete, "/api/v1/tracking", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, routing.NoRoute, planner.DeviationState().Status)

	rr = serve(t, h, http.MethodPost, "/api/v1/simulation", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	sim := decode(t, rr)
	assert.Greater(t, sim["total_ticks"], 0.0)
	assert.Equal(t, 1.0, sim["tick_interval_ms"])

	assert.Eventually(t, func() bool {
		return planner.DeviationState().Status == routing.OnRoute
	}, time.Second, time.Millisecond)

	rr = serve(t, h, http.MethodGet, "/api/v1/simulation", "")
	assert.Equal(t, true, decode(t, rr)["running"])

	rr = serve(t, h, http.MethodDelete, "/api/v1/simulation", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, routing.NoRoute, planner.DeviationState().Status)

	rr = serve(t, h, http.MethodGet, "/api/v1/export.kml", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<LineString>")

	rr = serve(t, h, http.MethodGet, "/api/v1/avoidance.geojson", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "FeatureCollection", decode(t, rr)["type"])

	rr = serve(t, h, http.MethodDelete, "/api/v1/route", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, ok := planner.ActiveRoute()
	assert.False(t, ok)
}
