// Package config loads service configuration from defaults, an optional
// config file and ECOROUTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "ECOROUTE"

// Config is the complete service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Maps       MapsConfig       `mapstructure:"maps"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Registry   RegistryConfig   `mapstructure:"registry"`
}

// ServerConfig controls the public HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ExternalURL     string        `mapstructure:"external_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableMCP       bool          `mapstructure:"enable_mcp"`
}

// MonitoringConfig controls the Prometheus listener and upstream probes
type MonitoringConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// MapsConfig configures the routing, places and air quality provider
type MapsConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	DirectionsURL     string        `mapstructure:"directions_url"`
	DistanceMatrixURL string        `mapstructure:"distance_matrix_url"`
	GeocodeURL        string        `mapstructure:"geocode_url"`
	PlacesURL         string        `mapstructure:"places_url"`
	AirQualityURL     string        `mapstructure:"air_quality_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	PlacesRadius      int           `mapstructure:"places_radius"`
	GeocodeCacheSize  int           `mapstructure:"geocode_cache_size"`
	GeocodeCacheTTL   time.Duration `mapstructure:"geocode_cache_ttl"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// AuthConfig holds the secrets used to verify callers
type AuthConfig struct {
	// JWTSecret verifies HS256 session tokens issued by the identity provider.
	JWTSecret string `mapstructure:"jwt_secret"`
	// MCPToken, when set, is required as a bearer token on /mcp.
	MCPToken string `mapstructure:"mcp_token"`
}

// TracingConfig configures OTLP export
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Environment string  `mapstructure:"environment"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

// RegistryConfig announces the service to a service registry. An empty URL
// disables announcements.
type RegistryConfig struct {
	URL               string        `mapstructure:"url"`
	ServiceURL        string        `mapstructure:"service_url"`
	InternalURL       string        `mapstructure:"internal_url"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.external_url", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.enable_mcp", true)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.addr", ":9090")
	v.SetDefault("monitoring.check_interval", 5*time.Minute)

	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.directions_url", "https://maps.googleapis.com/maps/api/directions/json")
	v.SetDefault("maps.distance_matrix_url", "https://maps.googleapis.com/maps/api/distancematrix/json")
	v.SetDefault("maps.geocode_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("maps.places_url", "https://maps.googleapis.com/maps/api/place/nearbysearch/json")
	v.SetDefault("maps.air_quality_url", "https://airquality.googleapis.com/v1/currentConditions:lookup")
	v.SetDefault("maps.timeout", 15*time.Second)
	v.SetDefault("maps.requests_per_second", 10.0)
	v.SetDefault("maps.burst", 10)
	v.SetDefault("maps.places_radius", 5000)
	v.SetDefault("maps.geocode_cache_size", 1000)
	v.SetDefault("maps.geocode_cache_ttl", time.Hour)

	v.SetDefault("database.path", "ecoroute.db")
	v.SetDefault("database.max_open_conns", 4)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.mcp_token", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("registry.url", "")
	v.SetDefault("registry.service_url", "")
	v.SetDefault("registry.internal_url", "")
	v.SetDefault("registry.heartbeat_interval", 30*time.Second)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are consulted.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by existing deployments of the dashboard.
	_ = v.BindEnv("maps.api_key", EnvPrefix+"_MAPS_API_KEY", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET")
	_ = v.BindEnv("tracing.endpoint", EnvPrefix+"_TRACING_ENDPOINT", "OTLP_ENDPOINT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("server.rate_limit and server.rate_burst must be positive"))
	}
	if c.Maps.RequestsPerSecond <= 0 || c.Maps.Burst <= 0 {
		errs = append(errs, errors.New("maps.requests_per_second and maps.burst must be positive"))
	}
	if c.Maps.PlacesRadius <= 0 || c.Maps.PlacesRadius > 50000 {
		errs = append(errs, fmt.Errorf("maps.places_radius must be in (0, 50000], got %d", c.Maps.PlacesRadius))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio))
	}
	if c.Registry.URL != "" && c.Registry.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("registry.heartbeat_interval must be positive"))
	}
	return errors.Join(errs...)
}
