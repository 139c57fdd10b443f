package maps

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
)

const directionsFixture = `{
  "status": "OK",
  "routes": [
    {
      "summary": "A1",
      "overview_polyline": {"points": "abc"},
      "legs": [{
        "distance": {"text": "10 km", "value": 10000},
        "duration": {"text": "15 mins", "value": 900},
        "steps": [
          {"html_instructions": "Head <b>north</b>", "distance": {"text": "1 km", "value": 1000}, "duration": {"text": "2 mins", "value": 120}, "travel_mode": "DRIVING"}
        ]
      }]
    },
    {"summary": "no legs", "legs": []}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:            "test-key",
		DirectionsURL:     srv.URL + "/directions/json",
		DistanceMatrixURL: srv.URL + "/distancematrix/json",
		GeocodeURL:        srv.URL + "/geocode/json",
		PlacesURL:         srv.URL + "/place/nearbysearch/json",
		AirQualityURL:     srv.URL + "/v1/currentConditions:lookup",
		HTTPClient:        srv.Client(),
		RequestsPerSecond: 1000,
		Burst:             100,
		GeocodeCacheTTL:   time.Minute,
	})
}

func TestDirections(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/directions/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		want := map[string]string{
			"origin":       "Berlin",
			"destination":  "Potsdam",
			"mode":         "transit",
			"alternatives": "true",
			"key":          "test-key",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, directionsFixture)
	})

	resp, err := client.Directions(context.Background(), "Berlin", "Potsdam", emissions.Transit)
	if err != nil {
		t.Fatalf("Directions returned error: %v", err)
	}
	if resp.Status != StatusOK {
		t.Errorf("status = %q, want OK", resp.Status)
	}
	if len(resp.Routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(resp.Routes))
	}
	if resp.Routes[0].Legs[0].Steps[0].HTMLInstructions != "Head <b>north</b>" {
		t.Errorf("unexpected instruction %q", resp.Routes[0].Legs[0].Steps[0].HTMLInstructions)
	}
}

func TestDirectionsValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	tests := []struct {
		name        string
		origin      string
		destination string
		mode        emissions.TravelMode
		code        core.ErrorCode
	}{
		{"missing origin", "", "Potsdam", emissions.Driving, core.ErrMissingParameter},
		{"blank destination", "Berlin", "   ", emissions.Driving, core.ErrMissingParameter},
		{"bad mode", "Berlin", "Potsdam", emissions.TravelMode("flying"), core.ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Directions(context.Background(), tt.origin, tt.destination, tt.mode)
			var mcpErr *core.MCPError
			if !errors.As(err, &mcpErr) {
				t.Fatalf("expected MCPError, got %v", err)
			}
			if mcpErr.Code != string(tt.code) {
				t.Errorf("code = %s, want %s", mcpErr.Code, tt.code)
			}
		})
	}
}

func TestUpstreamErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Directions(context.Background(), "a", "b", emissions.Driving)
	var mcpErr *core.MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("expected MCPError, got %v", err)
	}
	if mcpErr.Code != string(core.ErrServiceUnavailable) {
		t.Errorf("code = %s, want %s", mcpErr.Code, core.ErrServiceUnavailable)
	}
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	})

	_, err := client.DistanceMatrix(context.Background(), "a", "b", emissions.Driving)
	var mcpErr *core.MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Code != string(core.ErrParseError) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCandidatesFromRoutes(t *testing.T) {
	var resp DirectionsResponse
	if err := json.Unmarshal([]byte(directionsFixture), &resp); err != nil {
		t.Fatal(err)
	}

	cands := CandidatesFromRoutes(resp.Routes)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].DistanceMeters != 10000 || cands[0].DurationSeconds != 900 {
		t.Errorf("first candidate = %+v", cands[0])
	}
	if cands[0].Summary != "A1" || cands[0].OverviewPolyline != "abc" || len(cands[0].Steps) != 1 {
		t.Errorf("first candidate details = %+v", cands[0])
	}
	if cands[1].DistanceMeters != 0 || cands[1].DurationSeconds != 0 {
		t.Errorf("route without legs should be zero, got %+v", cands[1])
	}
}

func TestDistanceMatrix(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("units") != "metric" {
			t.Errorf("units = %q, want metric", q.Get("units"))
		}
		if q.Get("origins") != "A|B" {
			t.Errorf("origins = %q", q.Get("origins"))
		}
		io.WriteString(w, `{"status":"OK","origin_addresses":["A","B"],"destination_addresses":["C"],
			"rows":[{"elements":[{"status":"OK","distance":{"text":"5 km","value":5000},"duration":{"text":"6 mins","value":360}}]},
			        {"elements":[{"status":"NOT_FOUND"}]}]}`)
	})

	resp, err := client.DistanceMatrix(context.Background(), "A|B", "C", emissions.Driving)
	if err != nil {
		t.Fatalf("DistanceMatrix returned error: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Rows))
	}
	if el := resp.Rows[0].Elements[0]; el.Distance == nil || el.Distance.Value != 5000 {
		t.Errorf("unexpected element %+v", el)
	}
	if el := resp.Rows[1].Elements[0]; el.Status != StatusNotFound || el.Distance != nil {
		t.Errorf("unexpected element %+v", el)
	}
}

func TestDirectionsNormalizesGridReferences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("origin"); got != "40.712778,-74.006111" {
			t.Errorf("origin = %q, want decimal degrees", got)
		}
		if got := q.Get("destination"); got != "Jersey City" {
			t.Errorf("destination = %q", got)
		}
		io.WriteString(w, `{"status":"ZERO_RESULTS","routes":[]}`)
	})

	resp, err := client.Directions(context.Background(), `40°42'46"N 74°0'22"W`, "Jersey City", emissions.Bicycling)
	if err != nil {
		t.Fatalf("Directions returned error: %v", err)
	}
	if resp.Status != StatusZeroResults {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestGeocodeCachesOK(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("address") == "" {
			t.Error("address missing from query")
		}
		if r.URL.Query().Get("address") == "nowhere" {
			io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
			return
		}
		io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"Berlin, Germany"}]}`)
	})
	ctx := context.Background()

	first, err := client.Geocode(ctx, "Berlin")
	if err != nil {
		t.Fatalf("Geocode returned error: %v", err)
	}
	second, err := client.Geocode(ctx, "  berlin ")
	if err != nil {
		t.Fatalf("Geocode returned error: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("cached response differs: %s vs %s", first, second)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}

	client.Geocode(ctx, "nowhere")
	client.Geocode(ctx, "nowhere")
	if calls.Load() != 3 {
		t.Errorf("non-OK responses should not be cached, got %d calls", calls.Load())
	}

	if _, err := client.Geocode(ctx, ""); err == nil {
		t.Error("expected error for empty address")
	}
}

func TestNearbyParks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "park" || q.Get("radius") != "5000" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("location") != "52.52,13.405" {
			t.Errorf("location = %q", q.Get("location"))
		}
		io.WriteString(w, `{"status":"OK","results":[
			{"name":"Far","geometry":{"location":{"lat":52.56,"lng":13.405}}},
			{"name":"Near","geometry":{"location":{"lat":52.521,"lng":13.405}}}
		]}`)
	})

	resp, err := client.NearbyParks(context.Background(), 52.52, 13.405)
	if err != nil {
		t.Fatalf("NearbyParks returned error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Name != "Near" {
		t.Errorf("expected nearest park first, got %s", resp.Results[0].Name)
	}
	// 0.001 degrees of latitude is about 111 m
	if d := resp.Results[0].DistanceMeters; math.Abs(d-111.2) > 1 {
		t.Errorf("distance = %f, want about 111", d)
	}

	if _, err := client.NearbyParks(context.Background(), 91, 0); err == nil {
		t.Error("expected error for invalid latitude")
	}
}

func TestDistanceMeters(t *testing.T) {
	if d := DistanceMeters(0, 0, 0, 0); d != 0 {
		t.Errorf("distance to self = %f", d)
	}
	// One degree of longitude at the equator
	if d := DistanceMeters(0, 0, 0, 1); math.Abs(d-111195) > 10 {
		t.Errorf("distance = %f, want about 111195", d)
	}
}

func TestAirQuality(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Goog-Api-Key"))
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("api key should not be sent in the query string")
		}
		var body airQualityRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Location.Latitude != 52.5 || body.Location.Longitude != 13.4 {
			t.Errorf("unexpected location %+v", body.Location)
		}
		io.WriteString(w, `{"regionCode":"de","indexes":[{"code":"uaqi","aqi":71}]}`)
	})

	raw, err := client.AirQuality(context.Background(), 52.5, 13.4)
	if err != nil {
		t.Fatalf("AirQuality returned error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["regionCode"] != "de" {
		t.Errorf("response not passed through: %s", raw)
	}
}

func TestMonitoringHooks(t *testing.T) {
	var mu sync.Mutex
	var requests, responses []string
	SetMonitoringHooks(&MonitoringHooks{
		OnRequest: func(service, operation string) {
			mu.Lock()
			defer mu.Unlock()
			requests = append(requests, service+"/"+operation)
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			mu.Lock()
			defer mu.Unlock()
			if success {
				responses = append(responses, service)
			}
		},
	})
	defer SetMonitoringHooks(nil)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, directionsFixture)
	})
	if _, err := client.Directions(context.Background(), "a", "b", emissions.Driving); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 1 || requests[0] != "directions/directions" {
		t.Errorf("requests = %v", requests)
	}
	if len(responses) != 1 {
		t.Errorf("responses = %v", responses)
	}
}

func TestHealthChecks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ZERO_RESULTS"}`)
	})
	checks := client.HealthChecks()
	if len(checks) == 0 {
		t.Fatal("expected health checks")
	}
	for name, check := range checks {
		if err := check(context.Background()); err != nil {
			t.Errorf("%s check failed: %v", name, err)
		}
	}
}
