package maps

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
)

// ErrInvalidPolyline is returned for strings that are not valid encoded
// polylines.
var ErrInvalidPolyline = errors.New("invalid polyline")

// EncodePolyline encodes points in the polyline algorithm format with five
// decimal places of precision, as used by overview_polyline.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
func EncodePolyline(points []Location) string {
	result := make([]byte, 0, len(points)*12)
	prevLat, prevLng := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))
		result = appendSigned(result, lat-prevLat)
		result = appendSigned(result, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return string(result)
}

// DecodePolyline decodes an encoded polyline into its points
func DecodePolyline(encoded string) ([]Location, error) {
	points := make([]Location, 0, len(encoded)/4)
	index, lat, lng := 0, 0, 0
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next
		lat += dLat
		lng += dLng
		points = append(points, Location{Lat: float64(lat) * 1e-5, Lng: float64(lng) * 1e-5})
	}
	return points, nil
}

func decodeValue(encoded string, index int) (int, int, error) {
	result, shift := 0, 0
	for {
		if index >= len(encoded) {
			return 0, 0, ErrInvalidPolyline
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, ErrInvalidPolyline
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	// zigzag
	return (result >> 1) ^ -(result & 1), index, nil
}

func appendSigned(buf []byte, value int) []byte {
	s := value << 1
	if value < 0 {
		s = ^s
	}
	for s >= 0x20 {
		buf = append(buf, byte((0x20|(s&0x1f))+63))
		s >>= 5
	}
	return append(buf, byte(s+63))
}

// PathLengthMeters sums the great-circle lengths of the path's segments
func PathLengthMeters(points []Location) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceMeters(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

// Midpoint returns the point halfway along the path by distance. ok is
// false for an empty path.
func Midpoint(points []Location) (mid Location, ok bool) {
	if len(points) == 0 {
		return Location{}, false
	}
	half := PathLengthMeters(points) / 2
	if half == 0 {
		return points[0], true
	}

	walked := 0.0
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		seg := DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
		if walked+seg < half {
			walked += seg
			continue
		}
		t := (half - walked) / seg
		p := s2.Interpolate(t,
			s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lng)),
			s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lng)))
		ll := s2.LatLngFromPoint(p)
		return Location{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}, true
	}
	return points[len(points)-1], true
}
