package maps

import "encoding/json"

// Provider status values
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
	StatusNotFound    = "NOT_FOUND"
)

// TextValue is the provider's pairing of a display string and a number,
// in meters for distances and seconds for durations.
type TextValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

// Location is a coordinate as the provider encodes it
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polyline is an encoded polyline
type Polyline struct {
	Points string `json:"points"`
}

// DirectionsResponse is the body returned by the directions API
type DirectionsResponse struct {
	Status            string          `json:"status"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	GeocodedWaypoints json.RawMessage `json:"geocoded_waypoints,omitempty"`
	Routes            []Route         `json:"routes"`
}

// Route is one alternative route
type Route struct {
	Summary          string          `json:"summary"`
	Legs             []Leg           `json:"legs"`
	OverviewPolyline Polyline        `json:"overview_polyline"`
	Bounds           json.RawMessage `json:"bounds,omitempty"`
	Copyrights       string          `json:"copyrights,omitempty"`
	Warnings         []string        `json:"warnings"`
	Fare             json.RawMessage `json:"fare,omitempty"`
}

// Leg is the part of a route between two waypoints
type Leg struct {
	Distance      TextValue       `json:"distance"`
	Duration      TextValue       `json:"duration"`
	StartAddress  string          `json:"start_address"`
	EndAddress    string          `json:"end_address"`
	StartLocation Location        `json:"start_location"`
	EndLocation   Location        `json:"end_location"`
	DepartureTime json.RawMessage `json:"departure_time,omitempty"`
	ArrivalTime   json.RawMessage `json:"arrival_time,omitempty"`
	Steps         []Step          `json:"steps"`
}

// Step is a single navigation instruction
type Step struct {
	HTMLInstructions string          `json:"html_instructions"`
	Distance         TextValue       `json:"distance"`
	Duration         TextValue       `json:"duration"`
	TravelMode       string          `json:"travel_mode"`
	Maneuver         string          `json:"maneuver,omitempty"`
	StartLocation    Location        `json:"start_location"`
	EndLocation      Location        `json:"end_location"`
	Polyline         Polyline        `json:"polyline"`
	TransitDetails   json.RawMessage `json:"transit_details,omitempty"`
}

// DistanceMatrixResponse is the body returned by the distance matrix API
type DistanceMatrixResponse struct {
	Status               string      `json:"status"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	OriginAddresses      []string    `json:"origin_addresses"`
	DestinationAddresses []string    `json:"destination_addresses"`
	Rows                 []MatrixRow `json:"rows"`
}

// MatrixRow holds the elements for one origin
type MatrixRow struct {
	Elements []MatrixElement `json:"elements"`
}

// MatrixElement is one origin/destination pair
type MatrixElement struct {
	Status            string          `json:"status"`
	Distance          *TextValue      `json:"distance,omitempty"`
	Duration          *TextValue      `json:"duration,omitempty"`
	DurationInTraffic *TextValue      `json:"duration_in_traffic,omitempty"`
	Fare              json.RawMessage `json:"fare,omitempty"`
}

// PlacesResponse is the body returned by the nearby search API
type PlacesResponse struct {
	Status           string   `json:"status"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	HTMLAttributions []string `json:"html_attributions"`
	NextPageToken    string   `json:"next_page_token,omitempty"`
	Results          []Place  `json:"results"`
}

// Place is a nearby search result. DistanceMeters is filled in by the client.
type Place struct {
	PlaceID          string          `json:"place_id"`
	Name             string          `json:"name"`
	Vicinity         string          `json:"vicinity,omitempty"`
	Geometry         PlaceGeometry   `json:"geometry"`
	Rating           float64         `json:"rating,omitempty"`
	UserRatingsTotal int             `json:"user_ratings_total,omitempty"`
	Types            []string        `json:"types,omitempty"`
	BusinessStatus   string          `json:"business_status,omitempty"`
	OpeningHours     json.RawMessage `json:"opening_hours,omitempty"`
	Photos           json.RawMessage `json:"photos,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	DistanceMeters   float64         `json:"distance_meters"`
}

// PlaceGeometry locates a place
type PlaceGeometry struct {
	Location Location        `json:"location"`
	Viewport json.RawMessage `json:"viewport,omitempty"`
}
