package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/store"
)

const testSecret = "api-test-signing-key"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProvider answers directions with one route per entry in distances,
// keyed by mode.
type fakeProvider struct {
	mu        sync.Mutex
	distances map[emissions.TravelMode][]float64
	calls     []emissions.TravelMode
	err       error
	matrix    *maps.DistanceMatrixResponse
	places    *maps.PlacesResponse
}

func (f *fakeProvider) Directions(ctx context.Context, origin, destination string, mode emissions.TravelMode) (*maps.DirectionsResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, mode)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	resp := &maps.DirectionsResponse{Status: maps.StatusOK}
	for i, d := range f.distances[mode] {
		resp.Routes = append(resp.Routes, maps.Route{
			Summary: string(mode) + "-" + string(rune('A'+i)),
			Legs: []maps.Leg{{
				Distance: maps.TextValue{Value: d},
				Duration: maps.TextValue{Value: d / 10},
				Steps:    []maps.Step{{HTMLInstructions: "Go"}},
			}},
		})
	}
	if len(resp.Routes) == 0 {
		resp.Status = maps.StatusZeroResults
	}
	return resp, nil
}

func (f *fakeProvider) DistanceMatrix(ctx context.Context, origins, destinations string, mode emissions.TravelMode) (*maps.DistanceMatrixResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matrix, nil
}

func (f *fakeProvider) Geocode(ctx context.Context, address string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"status":"OK","results":[{"formatted_address":"` + address + `"}]}`), nil
}

func (f *fakeProvider) NearbyParks(ctx context.Context, lat, lng float64) (*maps.PlacesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.places, nil
}

func (f *fakeProvider) AirQuality(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"indexes":[{"code":"uaqi","aqi":42}]}`), nil
}

type testEnv struct {
	router   *gin.Engine
	provider *fakeProvider
	db       *store.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	provider := &fakeProvider{distances: map[emissions.TravelMode][]float64{
		emissions.Driving:   {12000, 10000},
		emissions.Transit:   {11000},
		emissions.Bicycling: {9000},
		emissions.Walking:   {8000},
	}}

	router := NewRouter(Options{
		Provider:    provider,
		Trips:       db.Trips(),
		Profiles:    db.Profiles(),
		Preferences: db.Preferences(),
		JWTSecret:   testSecret,
		Now:         func() time.Time { return time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC) },
	})
	return &testEnv{router: router, provider: provider, db: db}
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func session(t *testing.T, userID string) string {
	t.Helper()
	token, err := core.SignSession(testSecret, userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestDirectionsEnrichesRoutes(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/directions?origin=A&destination=B", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Status string `json:"status"`
		Routes []struct {
			Summary         string  `json:"summary"`
			CarbonFootprint float64 `json:"carbonFootprint"`
			EcoScore        int     `json:"ecoScore"`
			Legs            []any   `json:"legs"`
		} `json:"routes"`
		LowestFootprintIndex *int `json:"lowestFootprintIndex"`
	}
	decode(t, w, &body)

	if len(body.Routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(body.Routes))
	}
	// driving is the default mode: 12 km -> 2.52 kg, 10 km -> 2.1 kg
	if body.Routes[0].CarbonFootprint != 2.52 || body.Routes[0].EcoScore != 75 {
		t.Errorf("route 0 = %+v", body.Routes[0])
	}
	if body.Routes[1].CarbonFootprint != 2.1 || body.Routes[1].EcoScore != 79 {
		t.Errorf("route 1 = %+v", body.Routes[1])
	}
	if len(body.Routes[0].Legs) != 1 {
		t.Error("provider fields should be preserved")
	}
	if body.LowestFootprintIndex == nil || *body.LowestFootprintIndex != 1 {
		t.Errorf("lowestFootprintIndex = %v, want 1", body.LowestFootprintIndex)
	}
}

func TestDirectionsErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		status int
		msg    string
	}{
		{"missing origin", "/api/directions?destination=B", http.StatusBadRequest, "Origin and destination are required"},
		{"missing destination", "/api/directions?origin=A", http.StatusBadRequest, "Origin and destination are required"},
		{"bad mode", "/api/directions?origin=A&destination=B&mode=flying", http.StatusBadRequest, "Invalid travel mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if msg := errorMessage(t, w); msg != tt.msg {
				t.Errorf("error = %q, want %q", msg, tt.msg)
			}
		})
	}

	env.provider.err = errors.New("upstream down")
	w := env.do(t, http.MethodGet, "/api/directions?origin=A&destination=B", "", "")
	if w.Code != http.StatusInternalServerError || errorMessage(t, w) != "Failed to fetch directions" {
		t.Errorf("upstream failure: %d %s", w.Code, w.Body.String())
	}
}

func TestDirectionsZeroResults(t *testing.T) {
	env := newTestEnv(t)
	env.provider.distances = nil

	w := env.do(t, http.MethodGet, "/api/directions?origin=A&destination=B&mode=walking", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != maps.StatusZeroResults {
		t.Errorf("status = %v", body["status"])
	}
	if routes, ok := body["routes"].([]any); !ok || len(routes) != 0 {
		t.Errorf("routes = %v, want empty list", body["routes"])
	}
	if _, ok := body["lowestFootprintIndex"]; ok {
		t.Error("lowestFootprintIndex should be absent without routes")
	}
}

func TestDistanceMatrixEnrichesOKElements(t *testing.T) {
	env := newTestEnv(t)
	env.provider.matrix = &maps.DistanceMatrixResponse{
		Status: maps.StatusOK,
		Rows: []maps.MatrixRow{{Elements: []maps.MatrixElement{
			{Status: maps.StatusOK, Distance: &maps.TextValue{Text: "10 km", Value: 10000}},
			{Status: maps.StatusNotFound},
		}}},
	}

	w := env.do(t, http.MethodGet, "/api/distance-matrix?origins=A&destinations=B|C&mode=transit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Rows []struct {
			Elements []map[string]any `json:"elements"`
		} `json:"rows"`
	}
	decode(t, w, &body)

	ok := body.Rows[0].Elements[0]
	if ok["carbonFootprint"] != 0.5 || ok["ecoScore"] != float64(95) {
		t.Errorf("OK element = %v", ok)
	}
	missing := body.Rows[0].Elements[1]
	if _, has := missing["carbonFootprint"]; has {
		t.Errorf("non-OK element should not be scored: %v", missing)
	}
	if missing["status"] != maps.StatusNotFound {
		t.Errorf("status = %v", missing["status"])
	}

	w = env.do(t, http.MethodGet, "/api/distance-matrix?origins=A", "", "")
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "Origins and destinations are required" {
		t.Errorf("missing destinations: %d %s", w.Code, w.Body.String())
	}
}

func TestCompareRoutes(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/routes/compare?origin=A&destination=B", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Modes []struct {
			Mode string `json:"mode"`
			Best *struct {
				DistanceMeters  float64 `json:"distance_meters"`
				CarbonFootprint float64 `json:"carbonFootprint"`
			} `json:"best"`
			CarbonSavedKg float64 `json:"carbonSavedKg"`
		} `json:"modes"`
		GreenestMode      string  `json:"greenestMode"`
		DrivingDistanceKm float64 `json:"drivingDistanceKm"`
	}
	decode(t, w, &body)

	if len(body.Modes) != len(emissions.Modes) {
		t.Fatalf("got %d modes, want %d", len(body.Modes), len(emissions.Modes))
	}
	if len(env.provider.calls) != len(emissions.Modes) {
		t.Errorf("expected one lookup per mode, got %v", env.provider.calls)
	}
	// the lowest-footprint driving route is the 10 km one
	if body.DrivingDistanceKm != 10 {
		t.Errorf("drivingDistanceKm = %v, want 10", body.DrivingDistanceKm)
	}

	saved := map[string]float64{}
	for _, m := range body.Modes {
		if m.Best == nil {
			t.Fatalf("mode %s has no best route", m.Mode)
		}
		saved[m.Mode] = m.CarbonSavedKg
	}
	if saved["driving"] != 0 {
		t.Errorf("driving saved = %v, want 0", saved["driving"])
	}
	if saved["walking"] != 2.1 {
		t.Errorf("walking saved = %v, want 2.1", saved["walking"])
	}
	// transit 11 km -> 0.55 kg, saved 2.1 - 0.55
	if saved["transit"] != 1.55 {
		t.Errorf("transit saved = %v, want 1.55", saved["transit"])
	}
	// walking and cycling tie on footprint; walking's 8 km route is faster here
	if body.GreenestMode != "walking" {
		t.Errorf("greenestMode = %q, want walking", body.GreenestMode)
	}
}

func TestCompareRoutesFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("boom")
	w := env.do(t, http.MethodGet, "/api/routes/compare?origin=A&destination=B", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestProxyPassthrough(t *testing.T) {
	env := newTestEnv(t)
	env.provider.places = &maps.PlacesResponse{Status: maps.StatusOK, Results: []maps.Place{{Name: "Park", DistanceMeters: 120}}}

	tests := []struct {
		name   string
		target string
		status int
		want   string
	}{
		{"geocode", "/api/geocode?address=Berlin", http.StatusOK, `"formatted_address":"Berlin"`},
		{"geocode missing", "/api/geocode", http.StatusBadRequest, "Address is required"},
		{"places", "/api/places?lat=52.5&lng=13.4", http.StatusOK, `"distance_meters":120`},
		{"places missing", "/api/places?lat=52.5", http.StatusBadRequest, "Latitude and longitude are required"},
		{"places invalid", "/api/places?lat=95&lng=13.4", http.StatusBadRequest, "Latitude must be between"},
		{"air quality", "/api/air-quality?lat=52.5&lng=13.4", http.StatusOK, `"aqi":42`},
		{"air quality missing", "/api/air-quality", http.StatusBadRequest, "Latitude and longitude are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.want)
			}
		})
	}

	env.provider.err = errors.New("boom")
	failures := []struct{ target, msg string }{
		{"/api/geocode?address=x", "Failed to geocode address"},
		{"/api/places?lat=1&lng=2", "Failed to fetch places data"},
		{"/api/air-quality?lat=1&lng=2", "Failed to fetch air quality data"},
		{"/api/distance-matrix?origins=a&destinations=b", "Failed to fetch distance matrix"},
	}
	for _, f := range failures {
		w := env.do(t, http.MethodGet, f.target, "", "")
		if w.Code != http.StatusInternalServerError || errorMessage(t, w) != f.msg {
			t.Errorf("%s: %d %s", f.target, w.Code, w.Body.String())
		}
	}
}

func TestCreateTrip(t *testing.T) {
	env := newTestEnv(t)
	body := `{
		"user_id": "anonymous",
		"origin": "52.52,13.405",
		"destination": "Potsdam",
		"destination_coords": {"lat": 52.39, "lng": 13.06},
		"mode": "transit",
		"distance": "12.5 km",
		"duration": 31.9,
		"carbon_footprint": 0.63,
		"eco_score": "97",
		"route_data": {"summary": "S7"}
	}`
	w := env.do(t, http.MethodPost, "/api/user/trips", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool           `json:"success"`
		Trip    map[string]any `json:"trip"`
	}
	decode(t, w, &resp)
	if !resp.Success {
		t.Error("success should be true")
	}
	tr := resp.Trip
	checks := map[string]any{
		"user_id":             nil,
		"origin_address":      "52.52,13.405",
		"destination_address": "Potsdam",
		"origin_lat":          52.52,
		"origin_lng":          13.405,
		"destination_lat":     52.39,
		"destination_lng":     13.06,
		"transport_mode":      "transit",
		"distance_km":         12.5,
		"duration_minutes":    float64(31),
		"carbon_footprint_kg": 0.63,
		"eco_score":           float64(97),
	}
	for k, want := range checks {
		if tr[k] != want {
			t.Errorf("%s = %v, want %v", k, tr[k], want)
		}
	}
	if rd, ok := tr["route_data"].(map[string]any); !ok || rd["summary"] != "S7" {
		t.Errorf("route_data = %v", tr["route_data"])
	}
	if tr["id"] == "" || tr["id"] == nil {
		t.Error("trip id missing")
	}
}

func TestCreateTripCoercion(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/user/trips",
		`{"origin":"Home","destination":"Work","distance":"far","duration":null,"eco_score":true}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Trip map[string]any `json:"trip"`
	}
	decode(t, w, &resp)
	for _, k := range []string{"origin_lat", "origin_lng", "distance_km", "duration_minutes", "eco_score"} {
		if resp.Trip[k] != float64(0) {
			t.Errorf("%s = %v, want 0", k, resp.Trip[k])
		}
	}
	if resp.Trip["transport_mode"] != "driving" {
		t.Errorf("mode = %v, want driving default", resp.Trip["transport_mode"])
	}
	if resp.Trip["route_data"] != nil {
		t.Errorf("route_data = %v, want null", resp.Trip["route_data"])
	}

	w = env.do(t, http.MethodPost, "/api/user/trips", `{"origin":"a","destination":"b","mode":"teleport"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/user/trips", `{not json`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", w.Code)
	}
}

func TestListTripsPartitions(t *testing.T) {
	env := newTestEnv(t)
	post := func(userID, token string) {
		t.Helper()
		body := `{"user_id":"` + userID + `","origin":"a","destination":"b","mode":"walking","distance":1}`
		if w := env.do(t, http.MethodPost, "/api/user/trips", body, token); w.Code != http.StatusOK {
			t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
		}
	}
	post("", "")
	post("anonymous", "")
	post("alice", "")
	// the session subject wins over the body's user_id
	post("alice", session(t, "bob"))

	count := func(target, token string) int {
		t.Helper()
		w := env.do(t, http.MethodGet, target, "", token)
		if w.Code != http.StatusOK {
			t.Fatalf("list failed: %d %s", w.Code, w.Body.String())
		}
		var resp struct {
			Trips []map[string]any `json:"trips"`
		}
		decode(t, w, &resp)
		return len(resp.Trips)
	}

	if n := count("/api/user/trips", ""); n != 2 {
		t.Errorf("anonymous trips = %d, want 2", n)
	}
	if n := count("/api/user/trips?user_id=anonymous", ""); n != 2 {
		t.Errorf("anonymous trips = %d, want 2", n)
	}
	if n := count("/api/user/trips?user_id=alice", ""); n != 1 {
		t.Errorf("alice trips = %d, want 1", n)
	}
	if n := count("/api/user/trips", session(t, "bob")); n != 1 {
		t.Errorf("bob trips = %d, want 1", n)
	}
	if n := count("/api/user/trips?user_id=nobody", ""); n != 0 {
		t.Errorf("nobody trips = %d, want 0", n)
	}
}

func TestListTripsLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < store.MaxRecentTrips+3; i++ {
		env.do(t, http.MethodPost, "/api/user/trips", `{"user_id":"carol","origin":"a","destination":"b"}`, "")
	}
	w := env.do(t, http.MethodGet, "/api/user/trips?user_id=carol", "", "")
	var resp struct {
		Trips []struct {
			CreatedAt time.Time `json:"created_at"`
		} `json:"trips"`
	}
	decode(t, w, &resp)
	if len(resp.Trips) != store.MaxRecentTrips {
		t.Fatalf("got %d trips, want %d", len(resp.Trips), store.MaxRecentTrips)
	}
	for i := 1; i < len(resp.Trips); i++ {
		if resp.Trips[i].CreatedAt.After(resp.Trips[i-1].CreatedAt) {
			t.Errorf("trips not newest first at %d", i)
		}
	}
}

func TestCarbonSummary(t *testing.T) {
	env := newTestEnv(t)
	trips := []string{
		`{"user_id":"dave","origin":"a","destination":"b","mode":"driving","distance":10,"carbon_footprint":2.1}`,
		`{"user_id":"dave","origin":"a","destination":"b","mode":"transit","distance":10,"carbon_footprint":0.5}`,
		`{"user_id":"dave","origin":"a","destination":"b","mode":"walking","distance":2,"carbon_footprint":0}`,
	}
	for _, body := range trips {
		if w := env.do(t, http.MethodPost, "/api/user/trips", body, ""); w.Code != http.StatusOK {
			t.Fatalf("create failed: %s", w.Body.String())
		}
	}

	var summary struct {
		TotalEmissions float64 `json:"totalEmissions"`
		TotalSaved     float64 `json:"totalSaved"`
		TripCount      int     `json:"tripCount"`
		Month          int     `json:"month"`
		Year           int     `json:"year"`
	}
	// defaults to the handler clock's month, March 2024
	w := env.do(t, http.MethodGet, "/api/user/carbon?user_id=dave", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &summary)
	if summary.TripCount != 3 || summary.TotalEmissions != 2.6 {
		t.Errorf("summary = %+v", summary)
	}
	// 0 + (2.1 - 0.5) + 0.42
	if summary.TotalSaved != 2.02 {
		t.Errorf("totalSaved = %v, want 2.02", summary.TotalSaved)
	}
	if summary.Month != 3 || summary.Year != 2024 {
		t.Errorf("period = %d/%d", summary.Month, summary.Year)
	}

	w = env.do(t, http.MethodGet, "/api/user/carbon?user_id=dave&month=4&year=2024", "", "")
	decode(t, w, &summary)
	if summary.TripCount != 0 || summary.TotalEmissions != 0 || summary.TotalSaved != 0 {
		t.Errorf("empty month summary = %+v", summary)
	}

	for _, q := range []string{"month=13", "month=x", "year=abc"} {
		if w := env.do(t, http.MethodGet, "/api/user/carbon?"+q, "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestProfileRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	expired, _ := core.SignSession(testSecret, "erin", -time.Minute)

	for _, tc := range []struct {
		method, path, token string
	}{
		{http.MethodGet, "/api/user/profile", ""},
		{http.MethodPost, "/api/user/profile", ""},
		{http.MethodGet, "/api/user/preferences", ""},
		{http.MethodPost, "/api/user/preferences", expired},
		{http.MethodGet, "/api/user/profile", "garbage"},
	} {
		w := env.do(t, tc.method, tc.path, `{}`, tc.token)
		if w.Code != http.StatusUnauthorized || errorMessage(t, w) != "Unauthorized" {
			t.Errorf("%s %s: %d %s", tc.method, tc.path, w.Code, w.Body.String())
		}
	}
}

func TestProfileUpsert(t *testing.T) {
	env := newTestEnv(t)
	token := session(t, "frank")

	w := env.do(t, http.MethodGet, "/api/user/profile", "", token)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"profile":null}` {
		t.Fatalf("empty profile: %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/user/profile", `{"full_name":"Frank","bio":"cyclist"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert failed: %d %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/api/user/profile", `{"location":"Berlin"}`, token)

	var resp struct {
		Profile store.Profile `json:"profile"`
	}
	decode(t, w, &resp)
	p := resp.Profile
	if p.ID != "frank" || p.FullName == nil || *p.FullName != "Frank" || p.Location == nil || *p.Location != "Berlin" {
		t.Errorf("profile = %+v", p)
	}
}

func TestPreferencesUpsert(t *testing.T) {
	env := newTestEnv(t)
	token := session(t, "gina")

	w := env.do(t, http.MethodPost, "/api/user/preferences",
		`{"preferred_transport_mode":"Bicycling","carbon_goal_monthly":25,"theme":"dark"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Preferences store.Preferences `json:"preferences"`
	}
	decode(t, w, &resp)
	prefs := resp.Preferences
	if prefs.PreferredTransportMode == nil || *prefs.PreferredTransportMode != emissions.Bicycling {
		t.Errorf("mode = %v", prefs.PreferredTransportMode)
	}
	if prefs.CarbonGoalMonthly == nil || *prefs.CarbonGoalMonthly != 25 {
		t.Errorf("goal = %v", prefs.CarbonGoalMonthly)
	}

	w = env.do(t, http.MethodPost, "/api/user/preferences", `{"preferred_transport_mode":"rocket"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/user/preferences", "", token)
	decode(t, w, &resp)
	if resp.Preferences.Theme == nil || *resp.Preferences.Theme != "dark" {
		t.Errorf("theme = %v", resp.Preferences.Theme)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
