package main

import (
	"fmt"
	"os"

	"github.com/alvaro-cleavant/hazard-map/internal/export"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/avoidance"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/hazard"
)

type regionCommand struct {
	Input         string  `short:"i" long:"input" required:"true" description:"GeoJSON FeatureCollection of hazards"`
	DefaultRadius float64 `short:"r" long:"radius" default:"500" description:"Radius in meters for Point features without radius_meters"`
	KML           string  `short:"k" long:"kml" description:"Write the accepted region to this KML file"`
	GeoJSON       string  `short:"g" long:"geojson" description:"Write the accepted region to this GeoJSON file"`
}

func (c *regionCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read hazards: %w", err)
	}
	shapes, err := hazard.ShapesFromGeoJSON(data, c.DefaultRadius)
	if err != nil {
		return err
	}

	set := hazard.NewSet()
	for i, shape := range shapes {
		if _, err := set.Add(shape); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}

	region := avoidance.Validate(hazard.Union(set.List()), cfg.Avoidance)

	fmt.Printf("Hazards:  %d\n", set.Len())
	fmt.Printf("Accepted: %d polygons, %.2f km²\n", len(region.Accepted), region.AcceptedAreaKm2())
	for i, d := range region.Dropped {
		fmt.Printf("Dropped %d: %.2f km² (%.1f x %.1f km)\n", i+1, d.AreaKm2, d.WidthKm, d.HeightKm)
	}
	if _, ok := region.Constraint(); !ok {
		fmt.Println("No avoidance constraint; routes would be requested without avoid_polygons")
	}

	if c.KML != "" {
		f, err := os.Create(c.KML)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.KML, err)
		}
		defer f.Close()
		if err := export.WriteKML(f, region, nil, 0); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", c.KML)
	}

	if c.GeoJSON != "" {
		out, err := export.RegionGeoJSON(region, nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.GeoJSON, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", c.GeoJSON, err)
		}
		fmt.Printf("Wrote %s\n", c.GeoJSON)
	}

	return nil
}
