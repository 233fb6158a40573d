package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/avoidance"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/motion"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

// Config represents the complete server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Avoidance  avoidance.Limits `yaml:"avoidance" koanf:"avoidance"`
	Monitor    MonitorConfig    `yaml:"monitor" koanf:"monitor"`
	Simulation SimulationConfig `yaml:"simulation" koanf:"simulation"`
	Router     RouterConfig     `yaml:"router" koanf:"router"`
	Cache      CacheConfig      `yaml:"cache" koanf:"cache"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Port        int      `yaml:"port" koanf:"port"`
	CorsOrigins []string `yaml:"cors_origins" koanf:"cors_origins"`
}

// MonitorConfig holds deviation monitoring settings
type MonitorConfig struct {
	OffRouteThresholdMeters float64       `yaml:"off_route_threshold_meters" koanf:"off_route_threshold_meters"`
	LiveDebounce            time.Duration `yaml:"live_debounce" koanf:"live_debounce"`
}

// SimulationConfig holds simulated motion settings
type SimulationConfig struct {
	Tick            time.Duration `yaml:"tick" koanf:"tick"`
	DefaultSpeedKmh float64       `yaml:"default_speed_kmh" koanf:"default_speed_kmh"`
}

// RouterConfig holds directions provider settings
type RouterConfig struct {
	BaseURL string        `yaml:"base_url" koanf:"base_url"`
	APIKey  string        `yaml:"api_key" koanf:"api_key"`
	Profile string        `yaml:"profile" koanf:"profile"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}

// CacheConfig holds route cache settings
type CacheConfig struct {
	RouteTTL        time.Duration `yaml:"route_ttl" koanf:"route_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" koanf:"cleanup_interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CorsOrigins: []string{"*"},
		},
		Avoidance: avoidance.DefaultLimits(),
		Monitor: MonitorConfig{
			OffRouteThresholdMeters: routing.DefaultOffRouteThreshold,
			LiveDebounce:            motion.DefaultDebounceWindow,
		},
		Simulation: SimulationConfig{
			Tick:            motion.DefaultTick,
			DefaultSpeedKmh: 50,
		},
		Router: RouterConfig{
			BaseURL: "https://api.openrouteservice.org",
			Profile: "driving-car",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			RouteTTL:        10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load reads a YAML file over the defaults. Fields missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the planner can not run with
func (c *Config) Validate() error {
	var errs []error
	if c.Avoidance.MaxAreaKm2 <= 0 {
		errs = append(errs, errors.New("avoidance.max_area_km2 must be positive"))
	}
	if c.Avoidance.MaxBoundingSideKm <= 0 {
		errs = append(errs, errors.New("avoidance.max_bounding_side_km must be positive"))
	}
	if c.Avoidance.MaxRouteKmWithAvoidance <= 0 {
		errs = append(errs, errors.New("avoidance.max_route_km_with_avoidance must be positive"))
	}
	if c.Monitor.OffRouteThresholdMeters <= 0 {
		errs = append(errs, errors.New("monitor.off_route_threshold_meters must be positive"))
	}
	if c.Simulation.Tick <= 0 {
		errs = append(errs, errors.New("simulation.tick must be positive"))
	}
	if c.Simulation.DefaultSpeedKmh <= 0 {
		errs = append(errs, errors.New("simulation.default_speed_kmh must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
