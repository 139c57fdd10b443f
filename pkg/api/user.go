package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// createTripRequest is the body the dashboard posts when a route is confirmed
type createTripRequest struct {
	UserID            string          `json:"user_id"`
	Origin            string          `json:"origin"`
	Destination       string          `json:"destination"`
	OriginCoords      *coords         `json:"origin_coords"`
	DestinationCoords *coords         `json:"destination_coords"`
	Mode              string          `json:"mode"`
	Distance          looseNumber     `json:"distance"`
	Duration          looseNumber     `json:"duration"`
	CarbonFootprint   looseNumber     `json:"carbon_footprint"`
	EcoScore          looseNumber     `json:"eco_score"`
	RouteData         json.RawMessage `json:"route_data"`
}

func (r createTripRequest) toNewTrip(owner *string, mode emissions.TravelMode) store.NewTrip {
	var originLat, originLng, destLat, destLng *looseNumber
	if r.OriginCoords != nil {
		originLat, originLng = &r.OriginCoords.Lat, &r.OriginCoords.Lng
	}
	if r.DestinationCoords != nil {
		destLat, destLng = &r.DestinationCoords.Lat, &r.DestinationCoords.Lng
	}

	var routeData json.RawMessage
	if raw := bytes.TrimSpace(r.RouteData); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		routeData = raw
	}

	return store.NewTrip{
		OwnerID:            owner,
		OriginAddress:      r.Origin,
		DestinationAddress: r.Destination,
		Origin: trip.LatLng{
			Lat: resolveCoordinate(originLat, r.Origin, 0),
			Lng: resolveCoordinate(originLng, r.Origin, 1),
		},
		Destination: trip.LatLng{
			Lat: resolveCoordinate(destLat, r.Destination, 0),
			Lng: resolveCoordinate(destLng, r.Destination, 1),
		},
		Mode:              mode,
		DistanceKm:        r.Distance.Float(),
		DurationMinutes:   r.Duration.Int(),
		CarbonFootprintKg: r.CarbonFootprint.Float(),
		EcoScore:          r.EcoScore.Int(),
		RouteData:         routeData,
	}
}

// tripOwner resolves whose trips a request concerns. An authenticated session
// wins over the user_id the client supplied.
func tripOwner(c *gin.Context, userID string) *string {
	if id, ok := sessionUser(c); ok {
		return &id
	}
	return trip.Owner(userID)
}

// CreateTrip records a confirmed route in the caller's history
func (h *Handler) CreateTrip(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode, err := emissions.ParseModeOrDefault(req.Mode)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid travel mode")
		return
	}

	owner := tripOwner(c, req.UserID)
	saved, err := h.trips.Create(c.Request.Context(), req.toNewTrip(owner, mode))
	if err != nil {
		h.logger.Error("failed to save trip", "error", err)
		if errors.Is(err, emissions.ErrInvalidInput) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	monitoring.RecordTrip(string(saved.Mode), saved.OwnerID == nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "trip": saved})
}

// ListTrips returns the caller's most recent trips, newest first
func (h *Handler) ListTrips(c *gin.Context) {
	owner := tripOwner(c, c.Query("user_id"))
	trips, err := h.trips.Recent(c.Request.Context(), owner, store.MaxRecentTrips)
	if err != nil {
		h.logger.Error("failed to list trips", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch trips")
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

type carbonResponse struct {
	ranking.MonthlySummary
	Month int `json:"month"`
	Year  int `json:"year"`
}

// CarbonSummary totals the caller's emissions and savings for one month.
// month and year default to the current UTC month.
func (h *Handler) CarbonSummary(c *gin.Context) {
	now := h.now().UTC()
	month, year := int(now.Month()), now.Year()

	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			errorJSON(c, http.StatusBadRequest, "Invalid month")
			return
		}
		month = m
	}
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			errorJSON(c, http.StatusBadRequest, "Invalid year")
			return
		}
		year = y
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	owner := tripOwner(c, c.Query("user_id"))
	trips, err := h.trips.Between(c.Request.Context(), owner, from, from.AddDate(0, 1, 0))
	if err != nil {
		h.logger.Error("failed to load trips for summary", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch trips")
		return
	}

	c.JSON(http.StatusOK, carbonResponse{
		MonthlySummary: ranking.AggregateMonthly(trips, time.Month(month), year),
		Month:          month,
		Year:           year,
	})
}

// GetProfile returns the session user's profile, or null
func (h *Handler) GetProfile(c *gin.Context) {
	userID, _ := sessionUser(c)
	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile", "error", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile upserts the fields present in the body
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, _ := sessionUser(c)
	var in store.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), userID, in)
	if err != nil {
		h.logger.Error("failed to save profile", "error", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetPreferences returns the session user's preferences, or null
func (h *Handler) GetPreferences(c *gin.Context) {
	userID, _ := sessionUser(c)
	prefs, err := h.preferences.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences upserts the preferences present in the body
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, _ := sessionUser(c)
	var in store.PreferencesUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	prefs, err := h.preferences.Upsert(c.Request.Context(), userID, in)
	if err != nil {
		if errors.Is(err, emissions.ErrInvalidInput) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to save preferences", "error", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}
