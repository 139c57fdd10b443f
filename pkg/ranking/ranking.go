// Package ranking enriches candidate routes with emission estimates, picks
// the greenest option and summarizes trip history.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// ErrEmptyInput is returned when there is nothing to rank.
var ErrEmptyInput = errors.New("no route candidates")

// RouteCandidate is one alternative route returned by the routing provider.
type RouteCandidate struct {
	DistanceMeters   float64 `json:"distance_meters"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Summary          string  `json:"summary"`
	Steps            []Step  `json:"steps,omitempty"`
	OverviewPolyline string  `json:"overview_polyline,omitempty"`
}

// Step is a single navigation instruction
type Step struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Mode            string  `json:"travel_mode,omitempty"`
}

// EnrichedCandidate is a candidate annotated with its emission estimate.
type EnrichedCandidate struct {
	RouteCandidate
	Mode emissions.TravelMode `json:"mode"`
	emissions.Estimate
}

// MonthlySummary totals a calendar month of trips.
type MonthlySummary struct {
	TotalEmissionsKg float64 `json:"totalEmissions"`
	TotalSavedKg     float64 `json:"totalSaved"`
	TripCount        int     `json:"tripCount"`
}

// Enrich estimates every candidate under the unbounded-floor policy. The
// output has the same length and order as the input.
func Enrich(candidates []RouteCandidate, mode emissions.TravelMode) ([]EnrichedCandidate, error) {
	return EnrichWith(emissions.UnboundedFloor, candidates, mode)
}

// EnrichWith is Enrich with an explicit scoring policy.
func EnrichWith(p emissions.Policy, candidates []RouteCandidate, mode emissions.TravelMode) ([]EnrichedCandidate, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]EnrichedCandidate, len(candidates))
	for i, c := range candidates {
		est, err := emissions.ComputeWith(p, mode, c.DistanceMeters)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		out[i] = EnrichedCandidate{RouteCandidate: c, Mode: mode, Estimate: est}
	}
	return out, nil
}

// LowestFootprint returns the candidate with the smallest footprint and its
// index. Ties go to the earliest candidate.
func LowestFootprint(enriched []EnrichedCandidate) (EnrichedCandidate, int, error) {
	if len(enriched) == 0 {
		return EnrichedCandidate{}, -1, ErrEmptyInput
	}
	best := 0
	for i := 1; i < len(enriched); i++ {
		if enriched[i].CarbonFootprintKg < enriched[best].CarbonFootprintKg {
			best = i
		}
	}
	return enriched[best], best, nil
}

// SortByFootprint returns a copy ordered by ascending footprint. Equal
// footprints keep their input order.
func SortByFootprint(enriched []EnrichedCandidate) []EnrichedCandidate {
	sorted := make([]EnrichedCandidate, len(enriched))
	copy(sorted, enriched)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CarbonFootprintKg < sorted[j].CarbonFootprintKg
	})
	return sorted
}

// CarbonSavedVsDriving is what the trip saved compared with driving the same
// distance. It is never negative and is not rounded, so monthly totals do
// not accumulate per-trip rounding.
func CarbonSavedVsDriving(selected emissions.Estimate, drivingDistanceKm float64) float64 {
	if math.IsNaN(drivingDistanceKm) || drivingDistanceKm < 0 {
		drivingDistanceKm = 0
	}
	saved := drivingDistanceKm*emissions.DrivingFactor - selected.CarbonFootprintKg
	return math.Max(0, saved)
}

// AggregateMonthly sums the trips created in the given month (UTC). Each
// trip's own distance stands in for the driving distance when computing the
// amount saved.
func AggregateMonthly(trips []trip.Trip, month time.Month, year int) MonthlySummary {
	var s MonthlySummary
	for _, t := range trips {
		created := t.CreatedAt.UTC()
		if created.Month() != month || created.Year() != year {
			continue
		}
		s.TripCount++
		s.TotalEmissionsKg += t.CarbonFootprintKg
		s.TotalSavedKg += CarbonSavedVsDriving(emissions.Estimate{CarbonFootprintKg: t.CarbonFootprintKg}, t.DistanceKm)
	}
	s.TotalEmissionsKg = emissions.Round2(s.TotalEmissionsKg)
	s.TotalSavedKg = emissions.Round2(s.TotalSavedKg)
	return s
}
