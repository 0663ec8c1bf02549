package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 0.0001 degrees of arc on a 6,371 km sphere
var tenThousandthDegree = 0.0001 * math.Pi / 180 * EarthRadius

func TestDistance(t *testing.T) {
	// Pebble Beach 18th tee to the clubhouse
	tee := Point{Latitude: 36.5680, Longitude: -121.9500}
	clubhouse := Point{Latitude: 36.5690, Longitude: -121.9490}

	distance := Distance(tee, clubhouse)
	assert.InDelta(t, 142.6, distance, 1.0, "Distance should be approximately 142m")
}

func TestDistance_Symmetric(t *testing.T) {
	a := Point{Latitude: 51.4790, Longitude: -0.0015}
	b := Point{Latitude: 51.4801, Longitude: -0.0032}

	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Equal(t, 0.0, Distance(a, a), "Distance from point to itself should be 0")
}

func TestDistance_Equator(t *testing.T) {
	origin := Point{}
	east := Point{Longitude: 0.0001}
	north := Point{Latitude: 0.0001}

	assert.InDelta(t, tenThousandthDegree, Distance(origin, east), 1e-6)
	assert.InDelta(t, tenThousandthDegree, Distance(origin, north), 1e-6)
	assert.InDelta(t, 11.1, Distance(origin, east), 0.05)
}

func TestDistance_Collinear(t *testing.T) {
	a := Point{Latitude: 40.0, Longitude: -75.0}
	b := Point{Latitude: 40.0005, Longitude: -75.0}
	c := Point{Latitude: 40.0010, Longitude: -75.0}

	assert.InDelta(t, Distance(a, b)+Distance(b, c), Distance(a, c), 0.01)
}

func TestDistance_Monotonic(t *testing.T) {
	origin := Point{Latitude: 33.5, Longitude: -82.02}
	prev := 0.0
	for i := 1; i <= 10; i++ {
		d := Distance(origin, Point{Latitude: 33.5 + float64(i)*0.00005, Longitude: -82.02})
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestProject(t *testing.T) {
	p := Project(Point{Latitude: 0.0001, Longitude: 0.0001}, 0)
	assert.InDelta(t, tenThousandthDegree, p.X, 1e-6)
	assert.InDelta(t, tenThousandthDegree, p.Y, 1e-6)

	// east-west scale shrinks with the cosine of the anchor latitude
	p60 := Project(Point{Latitude: 60, Longitude: 0.0001}, 60)
	assert.InDelta(t, tenThousandthDegree/2, p60.X, 1e-6)
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(36.568, -121.95)
	require.NoError(t, err)
	assert.Equal(t, Point{Latitude: 36.568, Longitude: -121.95}, p)

	_, err = NewPoint(200, -300)
	assert.Error(t, err, "Should return error for invalid coordinates")
}

func TestPolylineRoundTrip(t *testing.T) {
	points := []Point{
		{Latitude: 38.5, Longitude: -120.2},
		{Latitude: 40.7, Longitude: -120.95},
		{Latitude: 43.252, Longitude: -126.453},
	}

	encoded := EncodePolyline(points)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", encoded.EncodedPolyline)

	decoded, err := DecodePolyline(encoded.EncodedPolyline)
	require.NoError(t, err)
	require.Len(t, decoded, len(points))
	for i := range points {
		assert.InDelta(t, points[i].Latitude, decoded[i].Latitude, 1e-5)
		assert.InDelta(t, points[i].Longitude, decoded[i].Longitude, 1e-5)
	}

	_, err = DecodePolyline("")
	assert.Error(t, err)
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "green", Green.String())
	assert.Equal(t, "bunker", Bunker.String())
}
