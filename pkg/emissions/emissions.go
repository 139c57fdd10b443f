// Package emissions estimates the carbon footprint and eco-score of a trip
// from its travel mode and distance.
package emissions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned for negative distances and unknown travel modes.
var ErrInvalidInput = errors.New("invalid input")

// TravelMode is one of the supported means of travel
type TravelMode string

// Supported travel modes
const (
	Walking   TravelMode = "walking"
	Bicycling TravelMode = "bicycling"
	Transit   TravelMode = "transit"
	Driving   TravelMode = "driving"
)

// DefaultMode is used when a request does not name a mode.
const DefaultMode = Driving

// Emission factors in kg CO2 per kilometre
const (
	DrivingFactor = 0.21
	TransitFactor = 0.05
	ActiveFactor  = 0.0
)

// Modes lists every supported travel mode.
var Modes = []TravelMode{Walking, Bicycling, Transit, Driving}

// ParseMode converts a user supplied string into a TravelMode.
func ParseMode(s string) (TravelMode, error) {
	m := TravelMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown travel mode %q", ErrInvalidInput, s)
	}
	return m, nil
}

// ParseModeOrDefault behaves like ParseMode but maps an empty string to DefaultMode.
func ParseModeOrDefault(s string) (TravelMode, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultMode, nil
	}
	return ParseMode(s)
}

// Valid reports whether m is one of the supported modes
func (m TravelMode) Valid() bool {
	switch m {
	case Walking, Bicycling, Transit, Driving:
		return true
	}
	return false
}

// Factor returns the emission factor for the mode in kg CO2/km.
func (m TravelMode) Factor() float64 {
	switch m {
	case Driving:
		return DrivingFactor
	case Transit:
		return TransitFactor
	default:
		return ActiveFactor
	}
}

// Estimate is the footprint and eco-score of a single trip.
type Estimate struct {
	CarbonFootprintKg float64 `json:"carbonFootprint"`
	EcoScore          int     `json:"ecoScore"`
}

// Policy selects how a footprint is mapped onto an eco-score.
type Policy int

const (
	// UnboundedFloor applies mode specific floors: driving bottoms out at 0,
	// transit at 20 and active modes always score 100.
	UnboundedFloor Policy = iota
	// ZeroFloor scores any zero footprint as 100 and everything else as
	// 100 - 10*kg, floored at 0, regardless of mode.
	ZeroFloor
)

// String returns the policy name used by the tools layer
func (p Policy) String() string {
	switch p {
	case ZeroFloor:
		return "zero_floor"
	default:
		return "unbounded_floor"
	}
}

// ParsePolicy maps a policy name to a Policy. Empty means UnboundedFloor.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unbounded_floor":
		return UnboundedFloor, nil
	case "zero_floor":
		return ZeroFloor, nil
	}
	return 0, fmt.Errorf("%w: unknown score policy %q", ErrInvalidInput, s)
}

// Compute returns the unbounded-floor estimate for mode over distanceMeters.
func Compute(mode TravelMode, distanceMeters float64) (Estimate, error) {
	return ComputeWith(UnboundedFloor, mode, distanceMeters)
}

// ComputeZeroFloor returns the zero-floor estimate used for matrix results.
func ComputeZeroFloor(mode TravelMode, distanceMeters float64) (Estimate, error) {
	return ComputeWith(ZeroFloor, mode, distanceMeters)
}

// ComputeWith estimates emissions under the given scoring policy.
// A NaN distance is treated as missing and counts as zero.
func ComputeWith(p Policy, mode TravelMode, distanceMeters float64) (Estimate, error) {
	if !mode.Valid() {
		return Estimate{}, fmt.Errorf("%w: unknown travel mode %q", ErrInvalidInput, mode)
	}
	if math.IsNaN(distanceMeters) {
		distanceMeters = 0
	}
	if distanceMeters < 0 || math.IsInf(distanceMeters, 0) {
		return Estimate{}, fmt.Errorf("%w: distance must be a finite non-negative number of meters, got %v", ErrInvalidInput, distanceMeters)
	}

	// The score is derived from the unrounded footprint.
	cf := distanceMeters / 1000 * mode.Factor()

	var score float64
	switch p {
	case ZeroFloor:
		if cf == 0 {
			score = 100
		} else {
			score = math.Max(0, 100-cf*10)
		}
	default:
		switch mode {
		case Driving:
			score = math.Max(0, 100-cf*10)
		case Transit:
			score = math.Max(20, 100-cf*5)
		default:
			score = 100
		}
	}

	return Estimate{
		CarbonFootprintKg: Round2(cf),
		EcoScore:          int(roundHalfUp(score)),
	}, nil
}

// Round2 rounds x to two decimals, halves away from zero for positive input.
func Round2(x float64) float64 {
	return roundHalfUp(x*100) / 100
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// ParseDistance parses a distance in meters from text. Anything that is not
// a number yields 0, matching how providers omit distances.
func ParseDistance(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
