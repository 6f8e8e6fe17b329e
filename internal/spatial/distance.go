package spatial

import "math"

// DegreesPerKM is an approximate conversion factor for latitude degrees to
// kilometers. At mid-latitudes, 1 degree of latitude is approximately 111 km.
const DegreesPerKM = 1.0 / 111.0

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PointToLineKm returns the minimum distance in kilometers from p to any
// segment of the polyline. Segments are treated as planar in a local
// lon-scaled frame, which is adequate at national scale.
func PointToLineKm(p Coordinate, coords []Coordinate) float64 {
	minKm := math.MaxFloat64
	for i := 0; i+1 < len(coords); i++ {
		if d := pointToSegmentKm(p, coords[i], coords[i+1]); d < minKm {
			minKm = d
		}
	}
	return minKm
}

// pointToSegmentKm projects p onto segment a-b in a planar frame where
// longitude is scaled by cos(lat) so both axes are in comparable units, then
// measures the haversine distance to the closest point.
func pointToSegmentKm(p, a, b Coordinate) float64 {
	cosLat := math.Cos(p.Lat * math.Pi / 180)

	ax, ay := a.Lon*cosLat, a.Lat
	bx, by := b.Lon*cosLat, b.Lat
	px, py := p.Lon*cosLat, p.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return HaversineKm(p, a)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return HaversineKm(p, closest)
}
