package avoidance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// Arnold, CA
var arnold = geo.Point{Latitude: 38.2458, Longitude: -120.3486}

func square(center geo.Point, sideMeters float64) geo.Polygon {
	half := sideMeters / 2
	sw := geo.DestinationPoint(geo.DestinationPoint(center, 180, half), 270, half)
	ne := geo.DestinationPoint(geo.DestinationPoint(center, 0, half), 90, half)
	return geo.Polygon{geo.Ring{
		{Latitude: sw.Latitude, Longitude: sw.Longitude},
		{Latitude: sw.Latitude, Longitude: ne.Longitude},
		{Latitude: ne.Latitude, Longitude: ne.Longitude},
		{Latitude: ne.Latitude, Longitude: sw.Longitude},
		{Latitude: sw.Latitude, Longitude: sw.Longitude},
	}}
}

// strip is a long thin rectangle: small area, long bounding side
func strip(center geo.Point, lengthMeters, widthMeters float64) geo.Polygon {
	west := geo.DestinationPoint(center, 270, lengthMeters/2)
	east := geo.DestinationPoint(center, 90, lengthMeters/2)
	north := geo.DestinationPoint(center, 0, widthMeters/2).Latitude
	south := geo.DestinationPoint(center, 180, widthMeters/2).Latitude
	return geo.Polygon{geo.Ring{
		{Latitude: south, Longitude: west.Longitude},
		{Latitude: south, Longitude: east.Longitude},
		{Latitude: north, Longitude: east.Longitude},
		{Latitude: north, Longitude: west.Longitude},
		{Latitude: south, Longitude: west.Longitude},
	}}
}

func TestValidate_AcceptsSmallPolygons(t *testing.T) {
	merged := geo.MultiPolygon{
		geo.BufferCircle(arnold, 1000, geo.DefaultCircleSteps),
		square(geo.DestinationPoint(arnold, 90, 10000), 5000),
	}

	region := Validate(merged, DefaultLimits())
	assert.Len(t, region.Accepted, 2)
	assert.Empty(t, region.Dropped)

	constraint, ok := region.Constraint()
	require.True(t, ok)
	assert.Equal(t, region.Accepted, constraint)
	assert.InEpsilon(t, geo.MultiArea(merged), region.AcceptedAreaKm2(), 1e-9)
}

func TestValidate_DropsOversizedPolygons(t *testing.T) {
	limits := DefaultLimits()
	merged := geo.MultiPolygon{
		geo.BufferCircle(arnold, 1000, geo.DefaultCircleSteps),              // accepted
		square(arnold, 18000),                                               // 324 km², sides under 20 km
		strip(arnold, 25000, 500),                                           // 12.5 km², 25 km wide
		geo.Polygon{geo.Ring{arnold, arnold}},                               // collapses, skipped silently
		strip(geo.DestinationPoint(arnold, 0, 30000), 19000, 1000),          // accepted
	}

	region := Validate(merged, limits)
	assert.Len(t, region.Accepted, 2)
	require.Len(t, region.Dropped, 2, "every rejected polygon is reported exactly once")

	assert.Greater(t, region.Dropped[0].AreaKm2, limits.MaxAreaKm2)
	assert.LessOrEqual(t, region.Dropped[0].WidthKm, limits.MaxBoundingSideKm)
	assert.InDelta(t, 18, region.Dropped[0].HeightKm, 0.1)

	assert.Less(t, region.Dropped[1].AreaKm2, limits.MaxAreaKm2)
	assert.InDelta(t, 25, region.Dropped[1].WidthKm, 0.1)

	for _, poly := range region.Accepted {
		width, height := geo.BoundingBoxSpan(poly)
		assert.LessOrEqual(t, geo.Area(poly), limits.MaxAreaKm2)
		assert.LessOrEqual(t, width, limits.MaxBoundingSideKm)
		assert.LessOrEqual(t, height, limits.MaxBoundingSideKm)
	}
}

func TestValidate_NothingAccepted(t *testing.T) {
	region := Validate(geo.MultiPolygon{square(arnold, 30000)}, DefaultLimits())
	assert.Nil(t, region.Accepted)
	assert.Len(t, region.Dropped, 1)

	_, ok := region.Constraint()
	assert.False(t, ok, "empty avoidance must be omitted, not sent empty")

	empty := Validate(nil, DefaultLimits())
	assert.Nil(t, empty.Accepted)
	assert.Empty(t, empty.Dropped)
}

func TestValidate_ClosesOpenRingsAndKeepsHoles(t *testing.T) {
	outer := square(arnold, 4000)[0]
	open := outer[:len(outer)-1]
	hole := square(arnold, 1000)[0]

	region := Validate(geo.MultiPolygon{{open, hole}}, DefaultLimits())
	require.Len(t, region.Accepted, 1)
	require.Len(t, region.Accepted[0], 2, "hole passes through")
	assert.True(t, region.Accepted[0][0].IsClosed())
	assert.InDelta(t, 15, geo.Area(region.Accepted[0]), 0.2)
}

func TestValidate_CustomLimits(t *testing.T) {
	limits := Limits{MaxAreaKm2: 1, MaxBoundingSideKm: 20}
	region := Validate(geo.MultiPolygon{geo.BufferCircle(arnold, 1000, geo.DefaultCircleSteps)}, limits)
	assert.Nil(t, region.Accepted)
	require.Len(t, region.Dropped, 1)
	assert.InDelta(t, 3.14, region.Dropped[0].AreaKm2, 0.02)
}

func TestCheckFeasible(t *testing.T) {
	origin := geo.Point{Latitude: 0, Longitude: 0}
	destination := geo.Point{Latitude: 0, Longitude: 2}

	result := CheckFeasible(origin, destination, true, 150)
	assert.False(t, result.OK)
	assert.InDelta(t, 222.6, result.EstimatedKm, 0.5)
	assert.True(t, errors.Is(result.Err(), ErrRouteTooLong))

	result = CheckFeasible(origin, destination, false, 150)
	assert.True(t, result.OK, "no avoidance means no length limit")
	assert.NoError(t, result.Err())

	result = CheckFeasible(origin, geo.Point{Latitude: 0, Longitude: 1}, true, 150)
	assert.True(t, result.OK)
	assert.InDelta(t, 111.3, result.EstimatedKm, 0.5)
}
