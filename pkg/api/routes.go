package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
)

// enrichedRoute is a provider route with its emission estimate
type enrichedRoute struct {
	maps.Route
	emissions.Estimate
}

type directionsResponse struct {
	Status               string          `json:"status"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	GeocodedWaypoints    json.RawMessage `json:"geocoded_waypoints,omitempty"`
	Routes               []enrichedRoute `json:"routes"`
	LowestFootprintIndex *int            `json:"lowestFootprintIndex,omitempty"`
}

type enrichedElement struct {
	maps.MatrixElement
	*emissions.Estimate
}

type enrichedRow struct {
	Elements []enrichedElement `json:"elements"`
}

type distanceMatrixResponse struct {
	Status               string        `json:"status"`
	ErrorMessage         string        `json:"error_message,omitempty"`
	OriginAddresses      []string      `json:"origin_addresses"`
	DestinationAddresses []string      `json:"destination_addresses"`
	Rows                 []enrichedRow `json:"rows"`
}

// modeParam reads the mode query value, defaulting to driving
func modeParam(c *gin.Context) (emissions.TravelMode, bool) {
	mode, err := emissions.ParseModeOrDefault(c.Query("mode"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid travel mode")
		return "", false
	}
	return mode, true
}

// enrichRoutes attaches unbounded-floor estimates to each route and returns
// the index of the lowest-footprint route, or nil if there are none.
func enrichRoutes(routes []maps.Route, mode emissions.TravelMode) ([]enrichedRoute, *int, error) {
	out := make([]enrichedRoute, 0, len(routes))
	if len(routes) == 0 {
		return out, nil, nil
	}

	enriched, err := ranking.Enrich(maps.CandidatesFromRoutes(routes), mode)
	if err != nil {
		return nil, nil, err
	}
	for i, e := range enriched {
		monitoring.RecordRouteEnriched(string(mode), emissions.UnboundedFloor.String(), e.CarbonFootprintKg)
		out = append(out, enrichedRoute{Route: routes[i], Estimate: e.Estimate})
	}
	_, idx, err := ranking.LowestFootprint(enriched)
	if err != nil {
		return nil, nil, err
	}
	return out, &idx, nil
}

// Directions proxies a directions lookup and scores every alternative
func (h *Handler) Directions(c *gin.Context) {
	origin := c.Query("origin")
	destination := c.Query("destination")
	if origin == "" || destination == "" {
		errorJSON(c, http.StatusBadRequest, "Origin and destination are required")
		return
	}
	mode, ok := modeParam(c)
	if !ok {
		return
	}

	data, err := h.provider.Directions(c.Request.Context(), origin, destination, mode)
	if err != nil {
		h.logger.Error("directions lookup failed", "mode", mode, "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch directions")
		return
	}

	routes, lowest, err := enrichRoutes(data.Routes, mode)
	if err != nil {
		h.logger.Error("failed to score routes", "mode", mode, "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch directions")
		return
	}

	c.JSON(http.StatusOK, directionsResponse{
		Status:               data.Status,
		ErrorMessage:         data.ErrorMessage,
		GeocodedWaypoints:    data.GeocodedWaypoints,
		Routes:               routes,
		LowestFootprintIndex: lowest,
	})
}

// DistanceMatrix proxies a matrix lookup. Elements with status OK carry a
// zero-floor estimate; the others are returned as the provider sent them.
func (h *Handler) DistanceMatrix(c *gin.Context) {
	origins := c.Query("origins")
	destinations := c.Query("destinations")
	if origins == "" || destinations == "" {
		errorJSON(c, http.StatusBadRequest, "Origins and destinations are required")
		return
	}
	mode, ok := modeParam(c)
	if !ok {
		return
	}

	data, err := h.provider.DistanceMatrix(c.Request.Context(), origins, destinations, mode)
	if err != nil {
		h.logger.Error("distance matrix lookup failed", "mode", mode, "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch distance matrix")
		return
	}

	rows := make([]enrichedRow, 0, len(data.Rows))
	for _, row := range data.Rows {
		elements := make([]enrichedElement, 0, len(row.Elements))
		for _, el := range row.Elements {
			out := enrichedElement{MatrixElement: el}
			if el.Status == maps.StatusOK {
				var meters float64
				if el.Distance != nil {
					meters = el.Distance.Value
				}
				est, err := emissions.ComputeZeroFloor(mode, meters)
				if err != nil {
					h.logger.Error("failed to score matrix element", "error", err)
					errorJSON(c, http.StatusInternalServerError, "Failed to fetch distance matrix")
					return
				}
				monitoring.RecordRouteEnriched(string(mode), emissions.ZeroFloor.String(), est.CarbonFootprintKg)
				out.Estimate = &est
			}
			elements = append(elements, out)
		}
		rows = append(rows, enrichedRow{Elements: elements})
	}

	c.JSON(http.StatusOK, distanceMatrixResponse{
		Status:               data.Status,
		ErrorMessage:         data.ErrorMessage,
		OriginAddresses:      data.OriginAddresses,
		DestinationAddresses: data.DestinationAddresses,
		Rows:                 rows,
	})
}

// modeComparison is the greenest route found for one mode
type modeComparison struct {
	Mode          emissions.TravelMode       `json:"mode"`
	Status        string                     `json:"status"`
	RouteCount    int                        `json:"routeCount"`
	Best          *ranking.EnrichedCandidate `json:"best"`
	CarbonSavedKg float64                    `json:"carbonSavedKg"`
}

type compareResponse struct {
	Origin            string           `json:"origin"`
	Destination       string           `json:"destination"`
	Modes             []modeComparison `json:"modes"`
	GreenestMode      *string          `json:"greenestMode"`
	DrivingDistanceKm float64          `json:"drivingDistanceKm"`
}

// CompareRoutes looks up every travel mode concurrently and reports the
// lowest-footprint route per mode with the carbon saved against driving.
func (h *Handler) CompareRoutes(c *gin.Context) {
	origin := c.Query("origin")
	destination := c.Query("destination")
	if origin == "" || destination == "" {
		errorJSON(c, http.StatusBadRequest, "Origin and destination are required")
		return
	}

	results := make([]modeComparison, len(emissions.Modes))
	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, mode := range emissions.Modes {
		g.Go(func() error {
			data, err := h.provider.Directions(ctx, origin, destination, mode)
			if err != nil {
				return err
			}
			res := modeComparison{Mode: mode, Status: data.Status, RouteCount: len(data.Routes)}
			if len(data.Routes) > 0 {
				enriched, err := ranking.Enrich(maps.CandidatesFromRoutes(data.Routes), mode)
				if err != nil {
					return err
				}
				best, _, err := ranking.LowestFootprint(enriched)
				if err != nil && !errors.Is(err, ranking.ErrEmptyInput) {
					return err
				}
				if err == nil {
					best.Steps = nil
					res.Best = &best
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("route comparison failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to compare routes")
		return
	}

	resp := compareResponse{Origin: origin, Destination: destination, Modes: results}
	for _, r := range results {
		if r.Mode == emissions.Driving && r.Best != nil {
			resp.DrivingDistanceKm = emissions.Round2(r.Best.DistanceMeters / 1000)
		}
	}

	var greenest *modeComparison
	for i := range results {
		r := &results[i]
		if r.Best == nil {
			continue
		}
		drivingKm := resp.DrivingDistanceKm
		if drivingKm == 0 {
			drivingKm = r.Best.DistanceMeters / 1000
		}
		r.CarbonSavedKg = emissions.Round2(ranking.CarbonSavedVsDriving(r.Best.Estimate, drivingKm))
		if greenest == nil || greener(r.Best, greenest.Best) {
			greenest = r
		}
	}
	if greenest != nil {
		m := string(greenest.Mode)
		resp.GreenestMode = &m
	}

	c.JSON(http.StatusOK, resp)
}

// greener orders by footprint, then by duration
func greener(a, b *ranking.EnrichedCandidate) bool {
	if a.CarbonFootprintKg != b.CarbonFootprintKg {
		return a.CarbonFootprintKg < b.CarbonFootprintKg
	}
	return a.DurationSeconds < b.DurationSeconds
}

// Geocode proxies an address lookup
func (h *Handler) Geocode(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		errorJSON(c, http.StatusBadRequest, "Address is required")
		return
	}

	data, err := h.provider.Geocode(c.Request.Context(), address)
	if err != nil {
		h.logger.Error("geocoding failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to geocode address")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// coordsQuery reads lat and lng query values, answering 400 on failure
func coordsQuery(c *gin.Context) (float64, float64, bool) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		errorJSON(c, http.StatusBadRequest, "Latitude and longitude are required")
		return 0, 0, false
	}
	lat, lng, err := core.ParseCoordsQuery(latStr, lngStr)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, core.FromError(err).Message)
		return 0, 0, false
	}
	return lat, lng, true
}

// Places lists parks near a point, nearest first
func (h *Handler) Places(c *gin.Context) {
	lat, lng, ok := coordsQuery(c)
	if !ok {
		return
	}

	data, err := h.provider.NearbyParks(c.Request.Context(), lat, lng)
	if err != nil {
		h.logger.Error("places lookup failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch places data")
		return
	}
	c.JSON(http.StatusOK, data)
}

// AirQuality proxies a current conditions lookup
func (h *Handler) AirQuality(c *gin.Context) {
	lat, lng, ok := coordsQuery(c)
	if !ok {
		return
	}

	data, err := h.provider.AirQuality(c.Request.Context(), lat, lng)
	if err != nil {
		h.logger.Error("air quality lookup failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch air quality data")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
