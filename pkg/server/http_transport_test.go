package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

func newTestTransport(t *testing.T, mcp bool, mutate func(*HTTPTransportConfig)) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	var mcpSrv *mcpserver.MCPServer
	if mcp {
		mcpSrv = mcpserver.NewMCPServer("test-server", "1.0.0")
	}
	config := DefaultHTTPTransportConfig()
	config.RateLimit = 0
	if mutate != nil {
		mutate(&config)
	}
	transport := NewHTTPTransport(mcpSrv, config, discardLogger())
	server := httptest.NewServer(transport.Handler())
	t.Cleanup(server.Close)
	return transport, server
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHTTPTransport_ServiceDiscovery(t *testing.T) {
	_, server := newTestTransport(t, true, func(c *HTTPTransportConfig) {
		c.BaseURL = "https://eco.example.com/"
	})

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var discovery struct {
		Service   string            `json:"service"`
		Transport string            `json:"transport"`
		Endpoints map[string]string `json:"endpoints"`
	}
	decodeBody(t, resp, &discovery)

	if discovery.Service != "ecoroute" || discovery.Transport != "HTTP+SSE" {
		t.Errorf("unexpected discovery %+v", discovery)
	}
	want := map[string]string{
		"api":     "https://eco.example.com/api",
		"sse":     "https://eco.example.com/mcp/sse",
		"message": "https://eco.example.com/mcp/message",
	}
	for k, v := range want {
		if discovery.Endpoints[k] != v {
			t.Errorf("endpoint %s = %q, want %q", k, discovery.Endpoints[k], v)
		}
	}
}

func TestHTTPTransport_RESTOnly(t *testing.T) {
	_, server := newTestTransport(t, false, nil)

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	var discovery map[string]any
	decodeBody(t, resp, &discovery)
	if discovery["transport"] != "rest" {
		t.Errorf("transport = %v", discovery["transport"])
	}

	resp, err = http.Get(server.URL + "/mcp/sse")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("MCP endpoint should not exist, got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_HealthEndpoints(t *testing.T) {
	transport, server := newTestTransport(t, false, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	hc := monitoring.NewHealthChecker("ecoroute", "test")
	t.Cleanup(hc.Shutdown)
	hc.UpdateConnection("maps", monitoring.StatusConnected, 12, nil)
	transport.SetHealthChecker(hc)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health monitoring.ServiceHealth
	decodeBody(t, resp, &health)
	if health.Service != "ecoroute" || health.Connections["maps"].Status != monitoring.StatusConnected {
		t.Errorf("unexpected health %+v", health)
	}

	resp, err = http.Post(server.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_MountAPI(t *testing.T) {
	transport, server := newTestTransport(t, false, nil)
	transport.MountAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	}))

	resp, err := http.Get(server.URL + "/api/directions")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["path"] != "/api/directions" {
		t.Errorf("API saw path %q", body["path"])
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("middleware chain not applied to API routes")
	}

	resp, err = http.Get(server.URL + "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_SSEEndpoint(t *testing.T) {
	_, server := newTestTransport(t, true, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/mcp/sse", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	buf := make([]byte, 1024)
	n, _ := resp.Body.Read(buf)
	event := string(buf[:n])
	if !strings.Contains(event, "event: endpoint") || !strings.Contains(event, "/mcp/message?sessionId=") {
		t.Errorf("unexpected handshake %q", event)
	}
}

func TestHTTPTransport_BearerAuthentication(t *testing.T) {
	_, server := newTestTransport(t, true, func(c *HTTPTransportConfig) {
		c.AuthType = AuthBearer
		c.AuthToken = "test-token"
	})

	resp, err := http.Post(server.URL+"/mcp/message", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"initialize","id":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("WWW-Authenticate = %q", resp.Header.Get("WWW-Authenticate"))
	}
	var rpc struct {
		JSONRPC string `json:"jsonrpc"`
		Error   struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &rpc)
	if rpc.JSONRPC != "2.0" || rpc.Error.Code != -32001 {
		t.Errorf("unexpected error body %+v", rpc)
	}

	// the token only guards MCP, discovery stays public
	resp, err = http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("discovery got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/mcp/sse", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err = http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_BasicAuthentication(t *testing.T) {
	_, server := newTestTransport(t, true, func(c *HTTPTransportConfig) {
		c.AuthType = AuthBasic
		c.AuthToken = "secret"
	})

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/mcp/message", strings.NewReader(`{}`))
	req.SetBasicAuth("user", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("WWW-Authenticate"), "Basic") {
		t.Errorf("WWW-Authenticate = %q", resp.Header.Get("WWW-Authenticate"))
	}
}

func TestHTTPTransport_ForceHTTPSRedirect(t *testing.T) {
	_, server := newTestTransport(t, true, func(c *HTTPTransportConfig) {
		c.ForceHTTPS = true
	})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMovedPermanently || !strings.HasPrefix(resp.Header.Get("Location"), "https://") {
		t.Errorf("expected HTTPS redirect, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestHTTPTransport_ForceHTTPSWithoutTLS(t *testing.T) {
	config := DefaultHTTPTransportConfig()
	config.Addr = "127.0.0.1:0"
	config.ForceHTTPS = true
	transport := NewHTTPTransport(nil, config, discardLogger())
	t.Cleanup(func() { transport.Shutdown(context.Background()) })

	if err := transport.Start(); !errors.Is(err, ErrTLSRequired) {
		t.Errorf("expected ErrTLSRequired, got %v", err)
	}
}

func TestHTTPTransport_ServeAndShutdown(t *testing.T) {
	transport := NewHTTPTransport(mcpserver.NewMCPServer("test-server", "1.0.0"), DefaultHTTPTransportConfig(), discardLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Serve(ln)
	}()

	url := "http://" + ln.Addr().String() + "/live"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := transport.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("unexpected error from Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not stop")
	}
}
