// Package registration announces a running ecoroute instance to a service
// registry and keeps the entry alive with heartbeats. The service works the
// same whether or not the registry is reachable.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

const (
	// DefaultHeartbeatInterval is used when Config leaves it unset
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultTimeout bounds each registry request
	DefaultTimeout = 5 * time.Second

	serviceName = "registry"
)

// Config describes where to register and what to announce.
type Config struct {
	RegistryURL       string
	HeartbeatInterval time.Duration
	Timeout           time.Duration
	HTTPClient        *http.Client
	Announcement      Announcement
}

// Announcement is the body sent to the registry on every heartbeat.
type Announcement struct {
	Name         string         `json:"name"`
	InstanceID   string         `json:"instance_id"`
	Type         string         `json:"type"`
	URL          string         `json:"url"`
	HealthURL    string         `json:"health_url"`
	InternalURL  string         `json:"internal_url,omitempty"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Tools        []string       `json:"tools,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Response is what the registry answers to an announcement.
type Response struct {
	Status          string    `json:"status"`
	TTLSeconds      int       `json:"ttl_seconds"`
	NextHeartbeatBy time.Time `json:"next_heartbeat_by"`
}

// Client keeps one service entry alive in the registry.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	registered bool
}

// NewClient fills in defaults. A fresh InstanceID is generated when the
// announcement does not carry one.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.RegistryURL = strings.TrimSuffix(cfg.RegistryURL, "/")
	if cfg.Announcement.Type == "" {
		cfg.Announcement.Type = "mcp"
	}
	if cfg.Announcement.InstanceID == "" {
		cfg.Announcement.InstanceID = uuid.NewString()
	}
	if cfg.Announcement.HealthURL == "" && cfg.Announcement.URL != "" {
		cfg.Announcement.HealthURL = strings.TrimSuffix(cfg.Announcement.URL, "/") + "/health"
	}
	return &Client{cfg: cfg, logger: logger.With("component", "registration")}
}

// Start registers immediately and then on every heartbeat until ctx ends
// or Stop is called. It does not block.
func (c *Client) Start(ctx context.Context) {
	if c.cfg.RegistryURL == "" {
		c.logger.Info("service registration disabled")
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.heartbeatLoop(ctx)
}

// Stop deregisters, best effort, and waits for the heartbeat loop to exit.
func (c *Client) Stop(ctx context.Context) {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()
	if c.IsRegistered() {
		if err := c.Deregister(ctx); err != nil {
			c.logger.Debug("deregistration failed", "error", err)
		}
	}
}

// IsRegistered reports whether the last heartbeat succeeded.
func (c *Client) IsRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) setRegistered(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = v
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	c.heartbeat(ctx)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.heartbeat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeat(ctx context.Context) {
	was := c.IsRegistered()
	resp, err := c.Register(ctx)
	if err != nil {
		// shutting down; keep the state so Stop can deregister
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("registration failed, registry may be unavailable", "error", err)
		c.setRegistered(false)
		return
	}
	c.setRegistered(true)
	if !was {
		c.logger.Info("registered with service registry",
			"name", c.cfg.Announcement.Name,
			"instance_id", c.cfg.Announcement.InstanceID,
			"ttl_seconds", resp.TTLSeconds)
	}
}

// Register sends one announcement.
func (c *Client) Register(ctx context.Context) (*Response, error) {
	body, err := json.Marshal(c.cfg.Announcement)
	if err != nil {
		return nil, fmt.Errorf("encoding announcement: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := core.Do(ctx, serviceName, req, c.cfg.HTTPClient)
	monitoring.RecordExternalServiceRequest(serviceName, "register", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.NewError(core.ErrParseError, "invalid registry response")
	}
	return &out, nil
}

// Deregister removes this instance from the registry.
func (c *Client) Deregister(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := fmt.Sprintf("%s/api/register/%s?instance_id=%s",
		c.cfg.RegistryURL,
		url.PathEscape(c.cfg.Announcement.Name),
		url.QueryEscape(c.cfg.Announcement.InstanceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}

	resp, err := core.Do(ctx, serviceName, req, c.cfg.HTTPClient)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.setRegistered(false)
	c.logger.Info("deregistered from service registry", "name", c.cfg.Announcement.Name)
	return nil
}
