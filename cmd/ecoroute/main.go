package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/ecoroute/pkg/api"
	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/registration"
	"github.com/NERVsystems/ecoroute/pkg/server"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	ver "github.com/NERVsystems/ecoroute/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	configPath      string
	stdioMode       bool
	generateConfig  string
	mergeOnly       bool
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&configPath, "config", "", "Path to a YAML, TOML or JSON config file")
	flag.BoolVar(&stdioMode, "stdio", false, "Serve MCP over stdin/stdout instead of starting the HTTP server")
	flag.StringVar(&generateConfig, "generate-config", "", "Write an MCP client config entry for this binary to the given .json path")
	flag.BoolVar(&mergeOnly, "merge-only", false, "Keep other servers already present in the generated config")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		showVersion()
		return
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	// stdout belongs to the MCP stream in stdio mode, so logs always go to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig, mergeOnly); err != nil {
			logger.Error("failed to generate config", "error", err)
			os.Exit(1)
		}
		logger.Info("generated MCP client config", "path", generateConfig)
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env file", "error", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		// tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if cfg.Tracing.Endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	db, err := store.Open(ctx, store.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Maps.APIKey == "" {
		logger.Warn("no maps API key configured; provider requests will be rejected upstream")
	}
	mapsClient := maps.NewClient(maps.OptionsFromConfig(cfg.Maps))

	logger.Info("starting ecoroute",
		"version", ver.BuildVersion,
		"stdio", stdioMode,
		"addr", cfg.Server.Addr,
		"mcp_enabled", cfg.Server.EnableMCP,
		"monitoring_enabled", cfg.Monitoring.Enabled,
		"database", cfg.Database.Path)

	var healthChecker *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
		healthChecker.SetCritical("database")

		maps.SetMonitoringHooks(&maps.MonitoringHooks{
			OnResponse: func(service, operation string, duration time.Duration, success bool) {
				monitoring.RecordExternalServiceRequest(service, operation, duration, success)
			},
			OnRateLimit: func(service string, waitTime time.Duration) {
				monitoring.RecordRateLimitWait(service, waitTime)
			},
			OnError: func(service, errorType string) {
				monitoring.RecordError(service, errorType)
			},
		})

		monitors := startDependencyMonitoring(healthChecker, mapsClient, db, cfg.Monitoring.CheckInterval, logger)
		defer func() {
			for _, m := range monitors {
				m.Stop()
			}
		}()

		metricsServer := startMetricsServer(cfg.Monitoring.Addr, logger)
		defer shutdownWithTimeout(metricsServer.Shutdown, cfg.Server.ShutdownTimeout, "metrics server", logger)
	}

	registry := tools.NewRegistry(logger, mapsClient, db.Trips())
	srv, err := server.NewServer(registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if stdioMode {
		if healthChecker != nil {
			healthChecker.SetTransport(monitoring.TransportInfo{Type: "stdio"})
		}
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	transportCfg := server.HTTPTransportConfig{
		Addr:           cfg.Server.Addr,
		BaseURL:        cfg.Server.ExternalURL,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MaxRequestSize: cfg.Server.MaxBodyBytes,
	}
	if cfg.Auth.MCPToken != "" {
		transportCfg.AuthType = server.AuthBearer
		transportCfg.AuthToken = cfg.Auth.MCPToken
	}
	mcpServer := srv.MCPServer()
	if !cfg.Server.EnableMCP {
		mcpServer = nil
	}
	transport := server.NewHTTPTransport(mcpServer, transportCfg, logger)
	transport.MountAPI(api.NewRouter(api.Options{
		Provider:       mapsClient,
		Trips:          db.Trips(),
		Profiles:       db.Profiles(),
		Preferences:    db.Preferences(),
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}))
	if healthChecker != nil {
		healthChecker.SetTransport(monitoring.TransportInfo{Type: "http", HTTPAddr: cfg.Server.Addr})
		transport.SetHealthChecker(healthChecker)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.Server.Addr)
		if err := transport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	regClient := registration.NewClient(registrationConfig(cfg, registry.GetToolNames()), logger)
	regClient.Start(ctx)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	regClient.Stop(shutdownCtx)
	if shutdownErr := transport.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("failed to shutdown HTTP server", "error", shutdownErr)
	}
	return err
}

// registrationConfig builds the announcement sent to the service registry
func registrationConfig(cfg *config.Config, toolNames []string) registration.Config {
	serviceURL := cfg.Registry.ServiceURL
	if serviceURL == "" {
		serviceURL = cfg.Server.ExternalURL
	}
	if serviceURL == "" {
		serviceURL = "http://localhost" + cfg.Server.Addr
	}

	return registration.Config{
		RegistryURL:       cfg.Registry.URL,
		HeartbeatInterval: cfg.Registry.HeartbeatInterval,
		Announcement: registration.Announcement{
			Name:         monitoring.ServiceName,
			URL:          serviceURL,
			InternalURL:  cfg.Registry.InternalURL,
			Version:      ver.BuildVersion,
			Capabilities: []string{"emissions", "routing", "trips", "places", "air-quality"},
			Tools:        toolNames,
			Metadata: map[string]any{
				"transport": map[string]bool{"http": true, "mcp": cfg.Server.EnableMCP},
			},
		},
	}
}

// startDependencyMonitoring probes the database and each provider service
// on interval and reports the results to the health checker.
func startDependencyMonitoring(hc *monitoring.HealthChecker, mapsClient *maps.Client, db *store.DB, interval time.Duration, logger *slog.Logger) []*monitoring.ConnectionMonitor {
	checks := mapsClient.HealthChecks()
	checks["database"] = db.Ping

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	monitors := make([]*monitoring.ConnectionMonitor, 0, len(names))
	for _, name := range names {
		m := monitoring.NewConnectionMonitor(name, hc, checks[name], interval)
		m.Start()
		monitors = append(monitors, m)
	}

	logger.Info("started dependency monitoring",
		"services", names,
		"check_interval", interval.String())
	return monitors
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return metricsServer
}

func shutdownWithTimeout(shutdown func(context.Context) error, timeout time.Duration, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown "+name, "error", err)
	}
}

// generateClientConfig writes an mcpServers entry that launches this binary
// in stdio mode.
func generateClientConfig(path string, mergeOnly bool) error {
	if path == "" {
		return errors.New("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return errors.New("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	doc := map[string]any{}
	servers := map[string]any{}
	if mergeOnly {
		if data, err := os.ReadFile(cleanPath); err == nil {
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
			if existing, ok := doc["mcpServers"].(map[string]any); ok {
				servers = existing
			}
		}
	}
	servers[monitoring.ServiceName] = map[string]any{
		"command": exe,
		"args":    []string{"-stdio"},
	}
	doc["mcpServers"] = servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validateSafePath rejects paths outside the current working directory
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return errors.New("absolute paths are not allowed")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}

func showVersion() {
	info := ver.Info()
	fmt.Printf("ecoroute %s (commit %s, built %s, %s)\n",
		info["version"], info["commit"], info["build_date"], info["go_version"])
}
