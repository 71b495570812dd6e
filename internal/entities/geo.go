package entities

import "math"

const (
	milesPerDegreeLat = 69.0
	milesPerDegreeLon = 69.172 // at the equator; scaled by cos(lat)
	bufferSegments    = 32
)

// BufferMiles approximates a circular buffer polygon of the given radius
// around a point, returned as GeoJSON polygon coordinates (one closed outer
// ring of lon/lat pairs).
func BufferMiles(lon, lat, radiusMiles float64) [][][]float64 {
	dLat := radiusMiles / milesPerDegreeLat
	scale := math.Cos(lat * math.Pi / 180)
	if math.Abs(scale) < 1e-6 {
		scale = 1e-6
	}
	dLon := radiusMiles / (milesPerDegreeLon * scale)

	ring := make([][]float64, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		theta := 2 * math.Pi * float64(i) / bufferSegments
		ring = append(ring, []float64{
			lon + dLon*math.Cos(theta),
			lat + dLat*math.Sin(theta),
		})
	}
	// Close the ring.
	ring = append(ring, []float64{ring[0][0], ring[0][1]})

	return [][][]float64{ring}
}
