package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alvaro-cleavant/hazard-map/internal/cache"
	"github.com/alvaro-cleavant/hazard-map/internal/clients/ors"
	"github.com/alvaro-cleavant/hazard-map/internal/config"
	"github.com/alvaro-cleavant/hazard-map/internal/observability"
	"github.com/alvaro-cleavant/hazard-map/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// One logger for the server and the planner's background work
	ctx := logging.EnsureLogger(context.Background())

	// Route cache with background cleanup
	routeCache := cache.NewCache()
	routeCache.StartPeriodicCleanup(ctx, appConfig.Cache.CleanupInterval)

	metrics, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}
	if err := metrics.ObserveRouteCache(func() (int, int) {
		stats := routeCache.Stats()
		return stats.FreshEntries, stats.StaleEntries
	}); err != nil {
		log.Fatalf("Failed to register cache metrics: %v", err)
	}

	// Directions provider; without a key routes can not be planned but
	// hazards, export and tracking of a supplied route still work
	var router services.Router
	if appConfig.Router.APIKey != "" {
		router = ors.NewClient(appConfig.Router.APIKey, appConfig.Router.BaseURL, appConfig.Router.Profile, appConfig.Router.Timeout)
	} else {
		log.Printf("No router API key configured, route planning disabled")
	}

	planner := services.NewPlanner(ctx, router, routeCache, metrics, appConfig)
	defer planner.Close()
	api := services.NewHTTPHandler(planner)

	log.Printf("Hazard avoidance server starting")
	log.Printf("Avoidance limits: %.0f km² area, %.0f km side, %.0f km route",
		appConfig.Avoidance.MaxAreaKm2, appConfig.Avoidance.MaxBoundingSideKm, appConfig.Avoidance.MaxRouteKmWithAvoidance)
	log.Printf("Off-route threshold: %.0f m", appConfig.Monitor.OffRouteThresholdMeters)

	// Server configuration (port, etc.) is loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithContext(ctx),
		prefab.WithHTTPHandlerFunc("/api/v1/", api.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/metrics", metrics.Handler().ServeHTTP),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := map[string]any{
		"avoidance":  &appConfig.Avoidance,
		"monitor":    &appConfig.Monitor,
		"simulation": &appConfig.Simulation,
		"router":     &appConfig.Router,
		"cache":      &appConfig.Cache,
	}
	for key, target := range sections {
		if err := prefab.Config.Unmarshal(key, target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", key, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	return appConfig
}

// homepageHandler serves a short plain-text index at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	index := `hazard-map

Hazards:
  GET    /api/v1/hazards              list hazards
  POST   /api/v1/hazards              add a buffered point, circle, rectangle or polygon
  DELETE /api/v1/hazards/{id}         remove a hazard
  DELETE /api/v1/hazards              remove all hazards

Avoidance:
  GET    /api/v1/avoidance            validated avoidance region and dropped hazards
  GET    /api/v1/avoidance.geojson    region and route as a FeatureCollection
  GET    /api/v1/export.kml           region and simplified route as KML

Routing and tracking:
  POST   /api/v1/route                plan a route around the avoidance region
  POST   /api/v1/position             submit a live or simulated position
  GET    /api/v1/deviation            current deviation state
  POST   /api/v1/simulation           simulate driving the active route
  DELETE /api/v1/simulation           stop the simulation

Metrics:
  GET    /metrics
`

	if _, err := fmt.Fprint(w, index); err != nil {
		slog.Error("Failed to write index", "error", err)
	}
}
