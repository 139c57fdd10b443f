package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/version"
)

// Connection states
const (
	StatusConnected = "connected"
	StatusDegraded  = "degraded"
	StatusError     = "error"
)

// slowProbe marks a dependency degraded when its probe succeeds this slowly
const slowProbe = 2 * time.Second

// HealthChecker manages service health monitoring
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
	transport   *TransportInfo
	critical    map[string]bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		critical:    make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics()

	return hc
}

// SetTransport records how the service is exposed
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// SetCritical marks dependencies the service cannot serve without. The
// readiness probe fails until each has been checked and is not in error.
func (h *HealthChecker) SetCritical(names ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range names {
		h.critical[name] = true
	}
}

// pendingCritical lists critical dependencies that are unchecked or failing
func (h *HealthChecker) pendingCritical() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var pending []string
	for name := range h.critical {
		conn, ok := h.connections[name]
		if !ok || conn.Status == StatusError {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	return pending
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	h.connections[name] = &ConnStatus{
		Name:      name,
		Status:    status,
		Latency:   latencyMs,
		LastError: errStr,
		CheckedAt: time.Now(),
	}
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	degradedCount := 0
	errorCount := 0

	for _, conn := range h.connections {
		switch conn.Status {
		case StatusError, "disconnected":
			errorCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	// healthy -> degraded -> unhealthy
	if errorCount > 0 {
		if errorCount > len(h.connections)/2 {
			status = "unhealthy"
		} else {
			status = "degraded"
		}
	} else if degradedCount > 0 {
		status = "degraded"
	}

	connections := make(map[string]ConnStatus, len(h.connections))
	for k, v := range h.connections {
		connections[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)
	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Transport:     h.transport,
		Metrics: map[string]any{
			"goroutines":           runtime.NumGoroutine(),
			"memory_alloc_mb":      m.Alloc / 1024 / 1024,
			"memory_sys_mb":        m.Sys / 1024 / 1024,
			"gc_runs":              m.NumGC,
			"cpu_count":            runtime.NumCPU(),
			"version_info":         version.Info(),
			"total_connections":    len(h.connections),
			"error_connections":    errorCount,
			"degraded_connections": degradedCount,
		},
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		switch health.Status {
		case "healthy", "degraded":
			w.WriteHeader(http.StatusOK)
		case "unhealthy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode health response: %v", err), http.StatusInternalServerError)
		}
	}
}

// ReadinessHandler reports ready once no critical dependency is failing
// and the service as a whole is not unhealthy.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		pending := h.pendingCritical()
		ready := health.Status != "unhealthy" && len(pending) == 0

		w.Header().Set("Content-Type", "application/json")

		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		response := map[string]any{
			"ready":  ready,
			"status": health.Status,
		}
		if len(pending) > 0 {
			response["waiting_on"] = pending
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode readiness response: %v", err), http.StatusInternalServerError)
		}
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode liveness response: %v", err), http.StatusInternalServerError)
		}
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	h.updateSystemMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// Shutdown stops background collection
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// CheckFunc probes a dependency. It should honour ctx cancellation.
type CheckFunc func(ctx context.Context) error

// ConnectionMonitor periodically probes one dependency and reports the
// result to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     CheckFunc
	interval      time.Duration
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc CheckFunc, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		timeout:       10 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring the connection
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
}

func (cm *ConnectionMonitor) monitor() {
	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.checkFunc(ctx)
	latency := time.Since(start).Milliseconds()

	if cm.ctx.Err() != nil {
		return
	}

	status := StatusConnected
	switch {
	case err != nil:
		status = StatusError
	case latency >= slowProbe.Milliseconds():
		status = StatusDegraded
	}

	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
