package hazard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapesFromGeoJSON(t *testing.T) {
	data := []byte(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"radius_meters": 750}, "geometry": {"type": "Point", "coordinates": [-120.3486, 38.2458]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [-120.4606, 38.1327]}},
    {"type": "Feature", "properties": null, "geometry": {"type": "Polygon", "coordinates": [[[-120.35, 38.25], [-120.34, 38.25], [-120.34, 38.26], [-120.35, 38.25]]]}}
  ]
}`)

	shapes, err := ShapesFromGeoJSON(data, 300)
	require.NoError(t, err)
	require.Len(t, shapes, 3)

	assert.Equal(t, BufferedPoint, shapes[0].Kind)
	require.NotNil(t, shapes[0].Center)
	assert.Equal(t, 38.2458, shapes[0].Center.Latitude)
	assert.Equal(t, -120.3486, shapes[0].Center.Longitude)
	assert.Equal(t, 750.0, shapes[0].RadiusMeters)

	assert.Equal(t, 300.0, shapes[1].RadiusMeters, "default radius")

	assert.Equal(t, DrawnPolygon, shapes[2].Kind)
	require.Len(t, shapes[2].Geometry, 1)

	set := NewSet()
	for _, s := range shapes {
		_, err := set.Add(s)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, set.Len())
}

func TestShapesFromGeoJSON_Errors(t *testing.T) {
	_, err := ShapesFromGeoJSON([]byte(`{"type":`), 100)
	assert.Error(t, err)

	_, err = ShapesFromGeoJSON([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`), 100)
	assert.ErrorContains(t, err, "feature 0")
}
