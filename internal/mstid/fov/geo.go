package fov

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// EarthRadiusKm is the mean Earth radius used for all spherical geometry.
const EarthRadiusKm = 6371.0

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Distance returns the great-circle distance in km between two points
// (haversine form).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := lat1*deg2rad, lat2*deg2rad
	dp := p2 - p1
	dl := (lon2 - lon1) * deg2rad
	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Bearing returns the initial bearing in degrees clockwise from north,
// in [0, 360), from point 1 to point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := lat1*deg2rad, lat2*deg2rad
	dl := (lon2 - lon1) * deg2rad
	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	return normDeg(math.Atan2(y, x) * rad2deg)
}

// Destination returns the point reached by travelling distKm along the
// great circle leaving (lat, lon) at bearingDeg.
func Destination(lat, lon, bearingDeg, distKm float64) (float64, float64) {
	p1 := lat * deg2rad
	l1 := lon * deg2rad
	th := bearingDeg * deg2rad
	d := distKm / EarthRadiusKm

	p2 := math.Asin(math.Sin(p1)*math.Cos(d) + math.Cos(p1)*math.Sin(d)*math.Cos(th))
	l2 := l1 + math.Atan2(math.Sin(th)*math.Sin(d)*math.Cos(p1), math.Cos(d)-math.Sin(p1)*math.Sin(p2))
	return p2 * rad2deg, normLon(l2 * rad2deg)
}

func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func normLon(d float64) float64 {
	d = math.Mod(d+540, 360) - 180
	if d == -180 {
		return 180
	}
	return d
}

// Centroid returns the spherical mean of a set of points. Longitudes are
// averaged as unit vectors so grids crossing the antimeridian behave.
func Centroid(lat, lon []float64) (float64, float64) {
	n := len(lat)
	if n == 0 {
		return 0, 0
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	for i := range lat {
		p, l := lat[i]*deg2rad, lon[i]*deg2rad
		xs[i] = math.Cos(p) * math.Cos(l)
		ys[i] = math.Cos(p) * math.Sin(l)
		zs[i] = math.Sin(p)
	}
	x, y, z := floats.Sum(xs), floats.Sum(ys), floats.Sum(zs)
	return math.Atan2(z, math.Hypot(x, y)) * rad2deg, math.Atan2(y, x) * rad2deg
}

// LocalXY projects points onto an azimuthal equidistant plane centred on
// (lat0, lon0). x is east and y is north, both in km.
func LocalXY(lat0, lon0 float64, lat, lon []float64) (xs, ys []float64) {
	xs = make([]float64, len(lat))
	ys = make([]float64, len(lat))
	for i := range lat {
		d := Distance(lat0, lon0, lat[i], lon[i])
		if d == 0 {
			continue
		}
		b := Bearing(lat0, lon0, lat[i], lon[i]) * deg2rad
		xs[i] = d * math.Sin(b)
		ys[i] = d * math.Cos(b)
	}
	return xs, ys
}

// LocalXYCentroid is LocalXY about the centroid of the points themselves.
func LocalXYCentroid(lat, lon []float64) (xs, ys []float64) {
	lat0, lon0 := Centroid(lat, lon)
	return LocalXY(lat0, lon0, lat, lon)
}
