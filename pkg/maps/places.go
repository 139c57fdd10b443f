package maps

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/golang/geo/s2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// EarthRadiusMeters is the mean earth radius used for place distances
const EarthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between two points
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

// NearbyParks searches for parks around a point. Each result carries its
// distance from the point and results are ordered nearest first.
func (c *Client) NearbyParks(ctx context.Context, lat, lng float64) (*PlacesResponse, error) {
	if err := core.ValidateCoords(lat, lng); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "maps.nearby_parks")
	defer span.End()

	query := url.Values{}
	query.Set("location", fmt.Sprintf("%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64)))
	query.Set("radius", strconv.Itoa(c.opts.PlacesRadius))
	query.Set("type", "park")

	var out PlacesResponse
	if err := c.getJSON(ctx, tracing.ServicePlaces, "nearby_search", c.opts.PlacesURL, query, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	for i := range out.Results {
		loc := out.Results[i].Geometry.Location
		out.Results[i].DistanceMeters = DistanceMeters(lat, lng, loc.Lat, loc.Lng)
	}
	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].DistanceMeters < out.Results[j].DistanceMeters
	})

	span.SetAttributes(attribute.Int("ecoroute.places.count", len(out.Results)))
	return &out, nil
}
