// Package api serves the dashboard's REST endpoints: provider proxies that
// add emission estimates, trip history and per-user settings.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// RouteProvider is the subset of the maps client the handlers use
type RouteProvider interface {
	Directions(ctx context.Context, origin, destination string, mode emissions.TravelMode) (*maps.DirectionsResponse, error)
	DistanceMatrix(ctx context.Context, origins, destinations string, mode emissions.TravelMode) (*maps.DistanceMatrixResponse, error)
	Geocode(ctx context.Context, address string) (json.RawMessage, error)
	NearbyParks(ctx context.Context, lat, lng float64) (*maps.PlacesResponse, error)
	AirQuality(ctx context.Context, lat, lng float64) (json.RawMessage, error)
}

// TripRepository stores and lists trips
type TripRepository interface {
	Create(ctx context.Context, in store.NewTrip) (trip.Trip, error)
	Recent(ctx context.Context, owner *string, limit int) ([]trip.Trip, error)
	Between(ctx context.Context, owner *string, from, to time.Time) ([]trip.Trip, error)
}

// ProfileRepository reads and upserts profiles
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*store.Profile, error)
	Upsert(ctx context.Context, userID string, in store.ProfileUpdate) (*store.Profile, error)
}

// PreferencesRepository reads and upserts preferences
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (*store.Preferences, error)
	Upsert(ctx context.Context, userID string, in store.PreferencesUpdate) (*store.Preferences, error)
}

// Options configures the API handler
type Options struct {
	Provider    RouteProvider
	Trips       TripRepository
	Profiles    ProfileRepository
	Preferences PreferencesRepository

	// JWTSecret verifies session tokens. Without it every request is anonymous.
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
	Now            func() time.Time
}

// Handler holds the dependencies of the REST endpoints
type Handler struct {
	provider    RouteProvider
	trips       TripRepository
	profiles    ProfileRepository
	preferences PreferencesRepository
	secret      string
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a handler from opts
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		provider:    opts.Provider,
		trips:       opts.Trips,
		profiles:    opts.Profiles,
		preferences: opts.Preferences,
		secret:      opts.JWTSecret,
		logger:      logger.With("component", "api"),
		now:         now,
	}
}

// NewRouter builds the gin engine serving every /api route
func NewRouter(opts Options) *gin.Engine {
	h := NewHandler(opts)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	r.Use(metricsMiddleware())
	r.Use(h.sessionMiddleware())

	h.Register(r.Group("/api"))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}

// Register mounts the endpoints on g
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/directions", h.Directions)
	g.GET("/distance-matrix", h.DistanceMatrix)
	g.GET("/routes/compare", h.CompareRoutes)
	g.GET("/geocode", h.Geocode)
	g.GET("/places", h.Places)
	g.GET("/air-quality", h.AirQuality)

	user := g.Group("/user")
	user.GET("/trips", h.ListTrips)
	user.POST("/trips", h.CreateTrip)
	user.GET("/carbon", h.CarbonSummary)

	authed := user.Group("", requireUser())
	authed.GET("/profile", h.GetProfile)
	authed.POST("/profile", h.UpdateProfile)
	authed.GET("/preferences", h.GetPreferences)
	authed.POST("/preferences", h.UpdatePreferences)
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.MaxAge = 12 * time.Hour
	return config
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
