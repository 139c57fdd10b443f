package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

// Authentication types for the MCP endpoints
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// ErrTLSRequired is returned by Start when ForceHTTPS is set without certificates.
var ErrTLSRequired = errors.New("force_https requires a TLS certificate and key")

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr    string
	BaseURL string

	// AuthType is one of AuthNone, AuthBearer or AuthBasic and guards the
	// MCP endpoints only. The REST API authenticates with session tokens.
	AuthType  string
	AuthToken string

	SSEEndpoint string
	MsgEndpoint string
	APIPrefix   string

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit      float64
	RateBurst      int
	MaxRequestSize int64
	MaxHeaderBytes int

	TLSCertFile string
	TLSKeyFile  string
	ForceHTTPS  bool
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":8080",
		AuthType:       AuthNone,
		SSEEndpoint:    "/mcp/sse",
		MsgEndpoint:    "/mcp/message",
		APIPrefix:      "/api/",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// HTTPTransport serves the REST API and, when an MCP server is given, the
// MCP HTTP+SSE endpoints from one listener.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	apiMounted    bool
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport. mcpServer may be nil to
// serve only the REST API.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPTransportConfig()
	if config.AuthType == "" {
		config.AuthType = AuthNone
	}
	if config.SSEEndpoint == "" {
		config.SSEEndpoint = defaults.SSEEndpoint
	}
	if config.MsgEndpoint == "" {
		config.MsgEndpoint = defaults.MsgEndpoint
	}
	if config.APIPrefix == "" {
		config.APIPrefix = defaults.APIPrefix
	}

	if config.AuthType != AuthNone && config.AuthToken != "" {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak MCP authentication token", "error", err)
		}
	}

	t := &HTTPTransport{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	if mcpServer != nil {
		t.sseServer = mcpserver.NewSSEServer(
			mcpServer,
			mcpserver.WithBaseURL(config.BaseURL),
			mcpserver.WithSSEEndpoint(config.SSEEndpoint),
			mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		)
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), max(1, config.RateBurst), logger)
	}

	t.setupRoutes()
	return t
}

// SetHealthChecker sets the health checker behind /health, /ready and /live
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

// MountAPI serves h for every path under the API prefix. h sees the full path.
func (t *HTTPTransport) MountAPI(h http.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.apiMounted {
		return
	}
	t.mux.Handle(t.config.APIPrefix, h)
	t.apiMounted = true
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleServiceDiscovery))

	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/ready", t.handleReady)
	t.mux.HandleFunc("/live", t.handleLive)

	if t.sseServer == nil {
		return
	}
	sse := t.authMiddleware(t.sseServer.SSEHandler())
	msg := t.authMiddleware(t.sseServer.MessageHandler())
	t.mux.Handle(t.config.SSEEndpoint, t.httpsEnforcement(sse.ServeHTTP))
	t.mux.Handle(t.config.MsgEndpoint, t.httpsEnforcement(msg.ServeHTTP))
}

// httpsEnforcement redirects plain HTTP requests when ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			target := "https://" + r.Host + r.RequestURI
			t.logger.Info("redirecting to HTTPS", "client_ip", clientIP(r), "redirect_url", target)
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next(w, r)
	}
}

// authMiddleware checks the configured credentials on MCP endpoints
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var result core.AuthResult
		switch t.config.AuthType {
		case AuthNone:
			next.ServeHTTP(w, r)
			return
		case AuthBearer:
			result = core.AuthenticateBearer(r.Header.Get("Authorization"), t.config.AuthToken)
		case AuthBasic:
			username, password, ok := r.BasicAuth()
			if !ok {
				result = core.AuthResult{Error: "missing basic auth credentials"}
			} else {
				result = core.AuthenticateBasic(username, password, t.config.AuthToken)
			}
		default:
			result = core.AuthResult{Error: "unknown auth type"}
		}

		if !result.Authorized {
			t.logger.Warn("authentication failed",
				"client_ip", clientIP(r),
				"path", r.URL.Path,
				"auth_type", t.config.AuthType,
				"error", result.Error,
				"auth_duration", result.Duration)

			if t.config.AuthType == AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="ecoroute"`)
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			writeJSONRPCError(w, http.StatusUnauthorized, nil, -32001, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleServiceDiscovery describes where the API and MCP endpoints live
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	baseURL := strings.TrimSuffix(t.config.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	endpoints := map[string]string{
		"api":    baseURL + strings.TrimSuffix(t.config.APIPrefix, "/"),
		"health": baseURL + "/health",
	}
	transport := "rest"
	if t.sseServer != nil {
		transport = "HTTP+SSE"
		endpoints["sse"] = baseURL + t.config.SSEEndpoint
		endpoints["message"] = baseURL + t.config.MsgEndpoint
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "ecoroute",
		"transport": transport,
		"endpoints": endpoints,
		"capabilities": map[string]bool{
			"tools":   t.sseServer != nil,
			"prompts": t.sseServer != nil,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != AuthNone,
			"type":     t.config.AuthType,
		},
	})
}

func (t *HTTPTransport) health() *monitoring.HealthChecker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.healthChecker
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	if hc := t.health(); hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	if hc := t.health(); hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "status": "ok"})
}

func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	if hc := t.health(); hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}

func writeJSONRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// Handler returns the routes wrapped in the middleware chain. The rate
// limiter runs innermost so throttled requests are still traced and logged.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	if t.rateLimiter != nil {
		handler = t.rateLimiter.Middleware(handler)
	}
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = SecurityHeaders(handler)
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	return handler
}

// Start begins serving and blocks until the server stops
func (t *HTTPTransport) Start() error {
	ln, err := net.Listen("tcp", t.config.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.config.Addr, err)
	}
	return t.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called
func (t *HTTPTransport) Serve(ln net.Listener) error {
	useTLS := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	if t.config.ForceHTTPS && !useTLS {
		ln.Close()
		return ErrTLSRequired
	}

	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		ln.Close()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("Stop the transport before starting it again.")
	}
	// No WriteTimeout: SSE streams stay open for the whole session.
	t.httpSrv = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", ln.Addr().String(),
		"mcp", t.sseServer != nil,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"api_prefix", t.config.APIPrefix,
		"auth_type", t.config.AuthType,
		"tls_enabled", useTLS)

	if useTLS {
		return srv.ServeTLS(ln, t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.Serve(ln)
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")
	if t.sseServer != nil {
		if err := t.sseServer.Shutdown(ctx); err != nil {
			t.logger.Error("failed to shut down SSE server", "error", err)
		}
	}
	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
