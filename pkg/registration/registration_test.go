package registration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRegistry struct {
	mu            sync.Mutex
	announcements []Announcement
	deletes       []string
	status        int
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var a Announcement
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.announcements = append(f.announcements, a)
		json.NewEncoder(w).Encode(Response{Status: "registered", TTLSeconds: 90})
	case http.MethodDelete:
		f.deletes = append(f.deletes, r.URL.RequestURI())
	}
}

func (f *fakeRegistry) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.announcements)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{
		RegistryURL:  "http://registry:7083/",
		Announcement: Announcement{Name: "ecoroute", URL: "https://eco.example.com/"},
	}, nil)

	if c.cfg.RegistryURL != "http://registry:7083" {
		t.Errorf("registry url = %q", c.cfg.RegistryURL)
	}
	if c.cfg.HeartbeatInterval != DefaultHeartbeatInterval || c.cfg.Timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
	a := c.cfg.Announcement
	if a.Type != "mcp" || a.InstanceID == "" || a.HealthURL != "https://eco.example.com/health" {
		t.Errorf("announcement defaults: %+v", a)
	}

	other := NewClient(Config{Announcement: Announcement{Name: "ecoroute"}}, nil)
	if other.cfg.Announcement.InstanceID == a.InstanceID {
		t.Error("instance ids should be unique")
	}
}

func TestRegisterAndDeregister(t *testing.T) {
	reg := &fakeRegistry{}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := NewClient(Config{
		RegistryURL: srv.URL,
		Announcement: Announcement{
			Name:    "ecoroute",
			URL:     "https://eco.example.com",
			Version: "v1.0.0",
			Tools:   []string{"estimate_emissions", "get_directions"},
		},
	}, quietLogger())

	resp, err := c.Register(context.Background())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.TTLSeconds != 90 {
		t.Errorf("ttl = %d", resp.TTLSeconds)
	}
	if got := reg.announcements[0]; got.Name != "ecoroute" || len(got.Tools) != 2 || got.InstanceID == "" {
		t.Errorf("registry received %+v", got)
	}

	if err := c.Deregister(context.Background()); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	want := "/api/register/ecoroute?instance_id=" + c.cfg.Announcement.InstanceID
	if len(reg.deletes) != 1 || reg.deletes[0] != want {
		t.Errorf("deletes = %v, want %s", reg.deletes, want)
	}
}

func TestRegisterFailure(t *testing.T) {
	reg := &fakeRegistry{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := NewClient(Config{RegistryURL: srv.URL, Announcement: Announcement{Name: "ecoroute"}}, quietLogger())
	if _, err := c.Register(context.Background()); err == nil {
		t.Error("expected error for 503")
	}
	c.heartbeat(context.Background())
	if c.IsRegistered() {
		t.Error("failed heartbeat should leave the client unregistered")
	}
}

func TestHeartbeatLoop(t *testing.T) {
	reg := &fakeRegistry{}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := NewClient(Config{
		RegistryURL:       srv.URL,
		HeartbeatInterval: 10 * time.Millisecond,
		Announcement:      Announcement{Name: "ecoroute"},
	}, quietLogger())

	c.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for reg.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reg.count() < 3 {
		t.Fatalf("expected repeated heartbeats, got %d", reg.count())
	}
	if !c.IsRegistered() {
		t.Error("client should be registered")
	}

	c.Stop(context.Background())
	if c.IsRegistered() {
		t.Error("Stop should deregister")
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if len(reg.deletes) != 1 {
		t.Errorf("deletes = %v", reg.deletes)
	}
}

func TestDisabledClient(t *testing.T) {
	c := NewClient(Config{}, quietLogger())
	c.Start(context.Background())
	c.Stop(context.Background())
	if c.IsRegistered() {
		t.Error("disabled client cannot be registered")
	}
}
