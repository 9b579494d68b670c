package geo

import "math"

const earthRadiusKm = 6371.0

// Point es una coordenada WGS84 en grados.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Valid descarta NaN/Inf y valores fuera de rango.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	if math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// DistanceKm calcula la distancia great-circle (haversine) entre dos puntos.
func DistanceKm(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Within indica si b está a radiusKm o menos de a.
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
