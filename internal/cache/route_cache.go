package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

const routeSource = "directions"

// RouteKey creates a content hash for a directions request. Coordinates are
// rounded to 1e-6 degrees (about 10 cm) so requests that differ only by
// float noise share an entry.
func RouteKey(origin, destination geo.Point, avoid geo.MultiPolygon) string {
	var b strings.Builder
	writePoint(&b, origin)
	b.WriteByte('|')
	writePoint(&b, destination)

	for _, poly := range avoid {
		b.WriteString("|P")
		for _, ring := range poly {
			b.WriteString("|R")
			for _, p := range ring {
				writePoint(&b, p)
			}
		}
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("route:%x", hash)
}

func writePoint(b *strings.Builder, p geo.Point) {
	fmt.Fprintf(b, "%.6f,%.6f;", p.Latitude, p.Longitude)
}

// SetRoute caches a route polyline for the request
func (c *Cache) SetRoute(origin, destination geo.Point, avoid geo.MultiPolygon, route geo.Polyline, ttl time.Duration) error {
	return c.Set(RouteKey(origin, destination, avoid), route, ttl, routeSource)
}

// GetRoute retrieves a fresh cached route for the request. An entry that no
// longer decodes is evicted so the next request goes to the provider.
func (c *Cache) GetRoute(origin, destination geo.Point, avoid geo.MultiPolygon) (geo.Polyline, bool, error) {
	key := RouteKey(origin, destination, avoid)

	var route geo.Polyline
	found, err := c.Get(key, &route)
	if err != nil {
		c.Delete(key)
		return geo.Polyline{}, false, err
	}
	if !found {
		return geo.Polyline{}, false, nil
	}
	return route, true, nil
}
