package fov

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/mstid"
)

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		lat, lon, az, d float64
	}{
		{"north", 37.1, -77.95, 0, 500},
		{"east", 37.1, -77.95, 90, 800},
		{"southwest", 60, 10, 225, 1200},
		{"antimeridian", 50, 179.5, 90, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat2, lon2 := Destination(tt.lat, tt.lon, tt.az, tt.d)
			assert.InDelta(t, tt.d, Distance(tt.lat, tt.lon, lat2, lon2), 1e-6)
			assert.InDelta(t, 0, angleDiff(tt.az, Bearing(tt.lat, tt.lon, lat2, lon2)), 1e-6)
			assert.True(t, lon2 > -180 && lon2 <= 180)
		})
	}
}

// angleDiff returns the signed smallest difference b-a in degrees.
func angleDiff(a, b float64) float64 {
	d := math.Mod(b-a+540, 360) - 180
	return d
}

func TestLocalXY(t *testing.T) {
	t.Parallel()

	lat0, lon0 := 40.0, -100.0
	eLat, eLon := Destination(lat0, lon0, 90, 100)
	nLat, nLon := Destination(lat0, lon0, 0, 50)

	xs, ys := LocalXY(lat0, lon0, []float64{lat0, eLat, nLat}, []float64{lon0, eLon, nLon})
	assert.InDeltaSlice(t, []float64{0, 100, 0}, xs, 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0, 50}, ys, 1e-6)
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	lat, lon := Centroid([]float64{10, 10}, []float64{179, -179})
	assert.InDelta(t, 10, lat, 0.01)
	assert.InDelta(t, 180, math.Abs(lon), 1e-9)

	lat, lon = Centroid(nil, nil)
	assert.Zero(t, lat)
	assert.Zero(t, lon)
}

func TestModelByName(t *testing.T) {
	t.Parallel()

	for _, name := range ModelNames() {
		m, err := ModelByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
	}

	assert.Equal(t, []string{
		"generic-projection", "ground-scatter", "half-hop-E", "half-hop-F",
		"hop-and-a-half-F", "ionospheric-scatter", "raw-elevation", "standard",
	}, ModelNames())

	_, err := ModelByName("quarter-hop")
	require.Error(t, err)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))
}

func TestModels_GroundRange(t *testing.T) {
	t.Parallel()

	model := func(name string) Model {
		m, err := ModelByName(name)
		require.NoError(t, err)
		return m
	}

	slant := 1000.0
	iono := model(IonosphericScatter).GroundRange(slant, 0)
	ground := model(GroundScatter).GroundRange(slant, 0)
	eRegion := model(HalfHopE).GroundRange(slant, 0)

	assert.Greater(t, iono, 900.0)
	assert.Less(t, iono, slant)
	assert.Less(t, ground, iono, "two 300 km legs cover less ground than one")
	assert.Greater(t, eRegion, iono, "lower reflection height means longer ground range")

	assert.Equal(t, slant, model(GenericProjection).GroundRange(slant, 45))
	assert.InDelta(t, 500, model(RawElevation).GroundRange(slant, 60), 1e-9)

	// A slant shorter than the scatter height cannot reach it.
	assert.Zero(t, model(IonosphericScatter).GroundRange(200, 0))
	assert.Zero(t, model(Standard).GroundRange(0, 0))
}

func TestVirtualHeights(t *testing.T) {
	t.Parallel()

	std, err := ModelByName(Standard)
	require.NoError(t, err)
	vh, ok := std.(VirtualHeighter)
	require.True(t, ok)

	assert.InDelta(t, 108.974+0.0191271*500+6.68283e-5*500*500, vh.VirtualHeight(500), 1e-9)
	assert.InDelta(t, 384.416-0.178640*1500+1.81405e-4*1500*1500, vh.VirtualHeight(1500), 1e-9)

	hf, err := ModelByName(HalfHopF)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hf.(VirtualHeighter).VirtualHeight(400), 200.0)

	_, ok = Model(genericModel{}).(VirtualHeighter)
	assert.False(t, ok)
}

func testSite() Site {
	return Site{
		Code:         "bks",
		Lat:          37.1,
		Lon:          -77.95,
		Boresight:    -40,
		BeamSepDeg:   3.24,
		NumBeams:     16,
		FirstRangeKm: 180,
		RangeSepKm:   45,
	}
}

func TestSiteBeamBearing(t *testing.T) {
	t.Parallel()

	s := testSite()
	assert.InDelta(t, 320-1.62, s.BeamBearing(7, 16), 1e-9)
	assert.InDelta(t, 320+1.62, s.BeamBearing(8, 16), 1e-9)
	assert.InDelta(t, 180+45*10, s.SlantRange(10), 1e-9)
}

func TestProject(t *testing.T) {
	t.Parallel()

	s := testSite()
	m, err := ModelByName(Standard)
	require.NoError(t, err)

	beams := []int{0, 1, 2, 3}
	gates := []int{10, 11, 12}
	grid, err := Project(s, beams, gates, m, nil)
	require.NoError(t, err)

	assert.Equal(t, "geo", grid.CoordSystem)
	require.Len(t, grid.GroundRange, 12)
	require.Len(t, grid.Altitude, 12)

	for bi, beam := range beams {
		prev := 0.0
		for gi := range gates {
			lat, lon := grid.At(bi, gi)
			d := Distance(s.Lat, s.Lon, lat, lon)
			assert.InDelta(t, grid.GroundRange[grid.Index(bi, gi)], d, 1e-6)
			assert.Greater(t, d, prev)
			prev = d
			assert.InDelta(t, s.BeamBearing(beam, 16), Bearing(s.Lat, s.Lon, lat, lon), 1e-6)
		}
	}
}

func TestProject_Errors(t *testing.T) {
	t.Parallel()

	s := testSite()
	m, err := ModelByName(GenericProjection)
	require.NoError(t, err)

	_, err = Project(s, []int{0}, []int{0}, nil, nil)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))

	_, err = Project(s, nil, []int{0}, m, nil)
	assert.True(t, mstid.IsKind(err, mstid.DataQuality))

	_, err = Project(s, []int{0, 1}, []int{0}, m, []float64{10})
	assert.True(t, mstid.IsKind(err, mstid.DataQuality))

	bad := s
	bad.RangeSepKm = 0
	_, err = Project(bad, []int{0}, []int{0}, m, nil)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))

	grid, err := Project(s, []int{0, 1}, []int{0}, m, nil)
	require.NoError(t, err)
	assert.Nil(t, grid.Altitude)
}
