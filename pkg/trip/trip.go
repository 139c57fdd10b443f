// Package trip defines the persisted trip record shared by the ranking,
// storage and API layers.
package trip

import (
	"encoding/json"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
)

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Trip is a confirmed route saved to a user's history. Trips are immutable
// once created. A nil OwnerID marks an anonymous trip.
type Trip struct {
	ID                 string               `json:"id"`
	OwnerID            *string              `json:"user_id"`
	OriginAddress      string               `json:"origin_address"`
	DestinationAddress string               `json:"destination_address"`
	Origin             LatLng               `json:"-"`
	Destination        LatLng               `json:"-"`
	Mode               emissions.TravelMode `json:"transport_mode"`
	DistanceKm         float64              `json:"distance_km"`
	DurationMinutes    int                  `json:"duration_minutes"`
	CarbonFootprintKg  float64              `json:"carbon_footprint_kg"`
	EcoScore           int                  `json:"eco_score"`
	RouteData          json.RawMessage      `json:"route_data"`
	CreatedAt          time.Time            `json:"created_at"`
}

// MarshalJSON flattens coordinates into the column style the dashboard reads.
func (t Trip) MarshalJSON() ([]byte, error) {
	type plain Trip
	route := t.RouteData
	if len(route) == 0 {
		route = json.RawMessage("null")
	}
	return json.Marshal(struct {
		plain
		RouteData      json.RawMessage `json:"route_data"`
		OriginLat      float64         `json:"origin_lat"`
		OriginLng      float64         `json:"origin_lng"`
		DestinationLat float64         `json:"destination_lat"`
		DestinationLng float64         `json:"destination_lng"`
	}{
		plain:          plain(t),
		RouteData:      route,
		OriginLat:      t.Origin.Lat,
		OriginLng:      t.Origin.Lng,
		DestinationLat: t.Destination.Lat,
		DestinationLng: t.Destination.Lng,
	})
}

// Owner normalizes a user id: empty and "anonymous" both mean no owner.
func Owner(userID string) *string {
	if userID == "" || userID == AnonymousUser {
		return nil
	}
	return &userID
}

// AnonymousUser is the id the dashboard sends for signed-out sessions.
const AnonymousUser = "anonymous"
