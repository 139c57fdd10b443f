// Package coords recognises coordinates typed into the origin and
// destination fields in grid or sexagesimal notation and converts them to
// the decimal "lat,lng" form the routing provider understands.
//
// Supported formats:
//   - MGRS, e.g. "18SUJ2337506519"
//   - UTM, e.g. "18N 323375 4306519"
//   - DMS, e.g. `38°53'23"N 77°2'11"W`
//   - decimal degrees, e.g. "38.8977, -77.0365"
package coords

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"
	"github.com/golang/geo/s2"
)

// Format identifies a coordinate notation
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
	FormatUTM
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	case FormatUTM:
		return "utm"
	default:
		return "unknown"
	}
}

// ErrNotCoordinate is returned by Parse for input in no known notation,
// which usually means it is an address or place name.
var ErrNotCoordinate = errors.New("not a coordinate")

// Result is a parsed coordinate
type Result struct {
	LatLng s2.LatLng
	Format Format
}

// Lat returns the latitude in degrees
func (r Result) Lat() float64 { return r.LatLng.Lat.Degrees() }

// Lng returns the longitude in degrees
func (r Result) Lng() float64 { return r.LatLng.Lng.Degrees() }

// String formats the coordinate as "lat,lng" with six decimals
func (r Result) String() string {
	return strconv.FormatFloat(r.Lat(), 'f', 6, 64) + "," + strconv.FormatFloat(r.Lng(), 'f', 6, 64)
}

var (
	// zone, latitude band (no I or O), 100 km square, even count of digits
	mgrsPattern = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	utmPattern = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])\s+(\d+(?:\.\d+)?)\s+(\d+(?:\.\d+)?)$`)

	dmsPattern = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	decimalPattern = regexp.MustCompile(`^(-?\d+(?:\.\d*)?)\s*[,\s]\s*(-?\d+(?:\.\d*)?)$`)
)

// Parse detects the notation of input and converts it. Formats are tried
// from the most to the least specific.
func Parse(input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}, ErrNotCoordinate
	}
	for _, parse := range []func(string) (Result, error){ParseMGRS, ParseUTM, ParseDMS, ParseDecimal} {
		if r, err := parse(input); err == nil {
			return r, nil
		}
	}
	return Result{}, ErrNotCoordinate
}

// Normalize rewrites a grid or DMS coordinate as decimal "lat,lng" and
// returns anything else, decimal pairs and addresses included, trimmed but
// otherwise unchanged.
func Normalize(place string) string {
	place = strings.TrimSpace(place)
	r, err := Parse(place)
	if err != nil || r.Format == FormatDecimal {
		return place
	}
	return r.String()
}

// ParseMGRS parses a Military Grid Reference System coordinate. Precision
// ranges from two digits (10 km) to ten digits (1 m).
func ParseMGRS(input string) (Result, error) {
	input = strings.ToUpper(strings.TrimSpace(input))
	if !mgrsPattern.MatchString(input) {
		return Result{}, fmt.Errorf("invalid MGRS format: %q", input)
	}
	lat, lng, err := mgrs.MGRSToLatLng(input)
	if err != nil {
		return Result{}, fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return newResult(lat, lng, FormatMGRS)
}

// ParseUTM parses "zone band easting northing". Bands N and above are in
// the northern hemisphere.
func ParseUTM(input string) (Result, error) {
	m := utmPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(input)))
	if m == nil {
		return Result{}, fmt.Errorf("invalid UTM format: %q", input)
	}
	zone, _ := strconv.Atoi(m[1])
	if zone < 1 || zone > 60 {
		return Result{}, fmt.Errorf("invalid UTM zone: %d", zone)
	}
	easting, _ := strconv.ParseFloat(m[3], 64)
	northing, _ := strconv.ParseFloat(m[4], 64)

	lat, lng := utmToLatLng(zone, easting, northing, m[2][0] >= 'N')
	return newResult(lat, lng, FormatUTM)
}

// ParseDMS parses degrees, minutes and seconds with hemisphere letters
func ParseDMS(input string) (Result, error) {
	m := dmsPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Result{}, fmt.Errorf("invalid DMS format: %q", input)
	}
	lat, err := sexagesimal(m[1], m[2], m[3], 90)
	if err != nil {
		return Result{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := sexagesimal(m[5], m[6], m[7], 180)
	if err != nil {
		return Result{}, fmt.Errorf("invalid longitude: %w", err)
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lng = -lng
	}
	return newResult(lat, lng, FormatDMS)
}

func sexagesimal(degrees, minutes, seconds string, limit float64) (float64, error) {
	d, _ := strconv.ParseFloat(degrees, 64)
	m, _ := strconv.ParseFloat(minutes, 64)
	s, _ := strconv.ParseFloat(seconds, 64)
	if m >= 60 || s >= 60 {
		return 0, errors.New("minutes and seconds must be below 60")
	}
	v := d + m/60 + s/3600
	if v > limit {
		return 0, fmt.Errorf("%v exceeds %v degrees", v, limit)
	}
	return v, nil
}

// ParseDecimal parses "lat,lng" or "lat lng" in decimal degrees
func ParseDecimal(input string) (Result, error) {
	m := decimalPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Result{}, fmt.Errorf("invalid decimal format: %q", input)
	}
	lat, _ := strconv.ParseFloat(m[1], 64)
	lng, _ := strconv.ParseFloat(m[2], 64)
	return newResult(lat, lng, FormatDecimal)
}

func newResult(lat, lng float64, format Format) (Result, error) {
	ll := s2.LatLngFromDegrees(lat, lng)
	if !ll.IsValid() || math.IsNaN(lat) || math.IsNaN(lng) {
		return Result{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lng)
	}
	return Result{LatLng: ll, Format: format}, nil
}

// WGS84 ellipsoid and UTM projection constants
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	scaleFactor   = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

// utmToLatLng inverts the transverse Mercator projection using the series
// expansion around the footpoint latitude.
func utmToLatLng(zone int, easting, northing float64, northern bool) (lat, lng float64) {
	a := semiMajorAxis
	b := a * (1 - flattening)
	e2 := (a*a - b*b) / (a * a)
	ep2 := (a*a - b*b) / (b * b)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	x := easting - falseEasting
	y := northing
	if !northern {
		y -= falseNorthing
	}
	centralMeridian := float64(6*zone-183) * math.Pi / 180

	mu := y / scaleFactor / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	phi := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := a / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	r := a * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := x / (n * scaleFactor)

	latRad := phi - (n*tan/r)*(math.Pow(d, 2)/2-
		(5+3*t+10*c-4*c*c-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t+298*c+45*t*t-252*ep2-3*c*c)*math.Pow(d, 6)/720)
	lngRad := centralMeridian + (d-
		(1+2*t+c)*math.Pow(d, 3)/6+
		(5-2*c+28*t-3*c*c+8*ep2+24*t*t)*math.Pow(d, 5)/120)/cos

	return latRad * 180 / math.Pi, lngRad * 180 / math.Pi
}
