package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dpup/prefab/logging"

	"github.com/alvaro-cleavant/hazard-map/internal/export"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/avoidance"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/hazard"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/motion"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

// maxBodyBytes bounds request bodies; hand-drawn polygons are small
const maxBodyBytes = 1 << 20

// HTTPHandler exposes a Planner as a JSON API under /api/v1/
type HTTPHandler struct {
	planner *Planner
	mux     *http.ServeMux
}

// NewHTTPHandler creates the API handler for planner
func NewHTTPHandler(planner *Planner) *HTTPHandler {
	h := &HTTPHandler{planner: planner, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/v1/hazards", h.listHazards)
	h.mux.HandleFunc("POST /api/v1/hazards", h.addHazard)
	h.mux.HandleFunc("DELETE /api/v1/hazards", h.clearHazards)
	h.mux.HandleFunc("GET /api/v1/hazards/{id}", h.getHazard)
	h.mux.HandleFunc("DELETE /api/v1/hazards/{id}", h.removeHazard)

	h.mux.HandleFunc("GET /api/v1/avoidance", h.getAvoidance)
	h.mux.HandleFunc("GET /api/v1/avoidance.geojson", h.getAvoidanceGeoJSON)
	h.mux.HandleFunc("GET /api/v1/export.kml", h.exportKML)

	h.mux.HandleFunc("POST /api/v1/route", h.planRoute)
	h.mux.HandleFunc("GET /api/v1/route", h.getRoute)
	h.mux.HandleFunc("DELETE /api/v1/route", h.clearRoute)

	h.mux.HandleFunc("POST /api/v1/position", h.submitPosition)
	h.mux.HandleFunc("GET /api/v1/deviation", h.getDeviation)
	h.mux.HandleFunc("DELETE /api/v1/tracking", h.stopTracking)

	h.mux.HandleFunc("POST /api/v1/simulation", h.startSimulation)
	h.mux.HandleFunc("GET /api/v1/simulation", h.getSimulation)
	h.mux.HandleFunc("DELETE /api/v1/simulation", h.stopSimulation)

	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// hazardRequest accepts either the internal shape fields or, for polygons,
// a GeoJSON Polygon/MultiPolygon geometry.
type hazardRequest struct {
	hazard.Shape
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
}

type regionResponse struct {
	Accepted        json.RawMessage           `json:"accepted"`
	AcceptedAreaKm2 float64                   `json:"accepted_area_km2"`
	Dropped         []avoidance.DroppedHazard `json:"dropped"`
}

type routeRequest struct {
	Origin      geo.Point `json:"origin"`
	Destination geo.Point `json:"destination"`
}

type positionRequest struct {
	Point  geo.Point      `json:"point"`
	Source routing.Source `json:"source"`
}

type simulationRequest struct {
	SpeedKmh float64 `json:"speed_kmh"`
}

type simulationResponse struct {
	Running        bool    `json:"running"`
	Done           bool    `json:"done"`
	LengthKm       float64 `json:"length_km"`
	StepKm         float64 `json:"step_km"`
	TotalTicks     int     `json:"total_ticks"`
	Progress       float64 `json:"progress"`
	RemainingKm    float64 `json:"remaining_km"`
	TickIntervalMs int64   `json:"tick_interval_ms"`
}

func (h *HTTPHandler) listHazards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"hazards": h.planner.Hazards()})
}

func (h *HTTPHandler) addHazard(w http.ResponseWriter, r *http.Request) {
	var req hazardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	shape := req.Shape
	if len(req.GeoJSON) > 0 {
		geometry, err := geo.UnmarshalGeometry(req.GeoJSON)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		shape.Geometry = geometry
		if shape.Kind == "" {
			shape.Kind = hazard.DrawnPolygon
		}
	}

	created, err := h.planner.AddHazard(r.Context(), shape)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	region, err := newRegionResponse(h.planner.AvoidanceRegion())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"hazard": created, "avoidance": region})
}

func (h *HTTPHandler) clearHazards(w http.ResponseWriter, r *http.Request) {
	h.planner.ClearHazards(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) getHazard(w http.ResponseWriter, r *http.Request) {
	found, ok := h.planner.Hazard(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("hazard not found: %s", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *HTTPHandler) removeHazard(w http.ResponseWriter, r *http.Request) {
	if !h.planner.RemoveHazard(r.Context(), r.PathValue("id")) {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("hazard not found: %s", r.PathValue("id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) getAvoidance(w http.ResponseWriter, r *http.Request) {
	region, err := newRegionResponse(h.planner.AvoidanceRegion())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (h *HTTPHandler) getAvoidanceGeoJSON(w http.ResponseWriter, r *http.Request) {
	data, err := export.RegionGeoJSON(h.planner.AvoidanceRegion(), h.activeRoute())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (h *HTTPHandler) exportKML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="hazard-avoidance.kml"`)
	if err := export.WriteKML(w, h.planner.AvoidanceRegion(), h.activeRoute(), export.DefaultRouteTolerance); err != nil {
		logging.Errorw(r.Context(), "Failed to write KML export", "error", err)
	}
}

func (h *HTTPHandler) planRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := h.planner.PlanRoute(r.Context(), req.Origin, req.Destination)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, avoidance.ErrRouteTooLong):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       err.Error(),
			"feasibility": result.Feasibility,
		})
	case errors.Is(err, ErrInvalidPoint):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, ErrNoRouter):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		writeError(w, r, http.StatusBadGateway, err)
	}
}

func (h *HTTPHandler) getRoute(w http.ResponseWriter, r *http.Request) {
	route := h.activeRoute()
	if route == nil {
		writeError(w, r, http.StatusNotFound, ErrNoRoute)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *HTTPHandler) clearRoute(w http.ResponseWriter, r *http.Request) {
	h.planner.ClearRoute()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) submitPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Source == "" {
		req.Source = routing.Live
	}
	if req.Source != routing.Live && req.Source != routing.Simulated {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown position source %q", req.Source))
		return
	}

	state, err := h.planner.OnPositionSample(req.Point, req.Source)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, state)
}

func (h *HTTPHandler) getDeviation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.planner.DeviationState())
}

func (h *HTTPHandler) stopTracking(w http.ResponseWriter, r *http.Request) {
	h.planner.StopTracking()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) startSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}

	sim, err := h.planner.StartSimulation(req.SpeedKmh)
	switch {
	case errors.Is(err, ErrNoRoute):
		writeError(w, r, http.StatusConflict, err)
		return
	case errors.Is(err, motion.ErrInvalidSpeed):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newSimulationResponse(sim))
}

func (h *HTTPHandler) getSimulation(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.planner.Simulation()
	if !ok {
		writeJSON(w, http.StatusOK, simulationResponse{})
		return
	}
	writeJSON(w, http.StatusOK, newSimulationResponse(sim))
}

func (h *HTTPHandler) stopSimulation(w http.ResponseWriter, r *http.Request) {
	h.planner.StopSimulation()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) activeRoute() *geo.Polyline {
	route, ok := h.planner.ActiveRoute()
	if !ok {
		return nil
	}
	return &route
}

func newRegionResponse(region avoidance.Region) (regionResponse, error) {
	resp := regionResponse{
		Accepted:        json.RawMessage("null"),
		AcceptedAreaKm2: region.AcceptedAreaKm2(),
		Dropped:         region.Dropped,
	}
	if resp.Dropped == nil {
		resp.Dropped = []avoidance.DroppedHazard{}
	}
	if len(region.Accepted) > 0 {
		data, err := geo.MarshalGeometry(region.Accepted)
		if err != nil {
			return regionResponse{}, fmt.Errorf("failed to encode avoidance region: %w", err)
		}
		resp.Accepted = data
	}
	return resp, nil
}

func newSimulationResponse(sim *motion.Simulator) simulationResponse {
	return simulationResponse{
		Running:        !sim.Done(),
		Done:           sim.Done(),
		LengthKm:       sim.LengthKm(),
		StepKm:         sim.StepDistanceKm(),
		TotalTicks:     sim.TotalTicks(),
		Progress:       sim.Progress(),
		RemainingKm:    sim.RemainingKm(),
		TickIntervalMs: sim.Tick().Milliseconds(),
	}
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.Errorw(r.Context(), "API request failed", "error", err, "http.path", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
