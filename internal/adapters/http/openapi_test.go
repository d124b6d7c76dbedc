package http_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/gofiber/fiber/v2"

	"github.com/transiteye/tracker/api"
	handler "github.com/transiteye/tracker/internal/adapters/http"
	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/usecases"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the document and its metadata.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "TransitEye Tracker API" {
		t.Errorf("unexpected title %q", spec.Info.Title)
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}

	for _, schema := range []string{"Vehicle", "Trip", "PassengerRequest", "PositionMessage", "TripEvent", "APIError"} {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPI_DocumentsEveryRoute fails when a route is registered without a
// matching operation in api/openapi.yaml.
func TestOpenAPI_DocumentsEveryRoute(t *testing.T) {
	spec := loadSpec(t)
	app := setupApp(makeDeps())

	seen := 0
	for _, r := range app.GetRoutes(true) {
		if r.Method == http.MethodHead || strings.HasPrefix(r.Path, "/docs") || strings.HasPrefix(r.Path, "/ws") {
			continue
		}
		seen++
		item := spec.Paths.Find(r.Path)
		if item == nil {
			t.Errorf("route %s %s is not documented", r.Method, r.Path)
			continue
		}
		if item.GetOperation(r.Method) == nil {
			t.Errorf("route %s %s has no %s operation", r.Method, r.Path, r.Method)
		}
	}
	if seen < 13 {
		t.Fatalf("expected at least 13 documented routes, saw %d", seen)
	}
}

// validateExchange checks req against the contract, sends it, and checks the response.
func validateExchange(t *testing.T, spec *openapi3.T, app *fiber.App, method, target, body string, wantStatus int) {
	t.Helper()

	newReq := func() *http.Request {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		return req
	}

	req := newReq()
	item := spec.Paths.Find(req.URL.Path)
	if item == nil {
		t.Fatalf("%s is not documented", req.URL.Path)
	}
	route := &routers.Route{
		Spec:      spec,
		Path:      req.URL.Path,
		PathItem:  item,
		Method:    method,
		Operation: item.GetOperation(method),
	}
	reqInput := &openapi3filter.RequestValidationInput{Request: req, Route: route}
	if wantStatus < 400 {
		if err := openapi3filter.ValidateRequest(context.Background(), reqInput); err != nil {
			t.Fatalf("request violates contract: %v", err)
		}
	}

	resp, err := app.Test(newReq(), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected %d, got %d: %s", wantStatus, resp.StatusCode, data)
	}

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(data)),
	})
	if err != nil {
		t.Errorf("response violates contract: %v\nbody: %s", err, data)
	}
}

func TestOpenAPI_ResponsesMatchContract(t *testing.T) {
	spec := loadSpec(t)

	seen := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	route := int64(2)
	vehicle := int64(7)
	fleet := &fakeFleet{
		vehicles: []domain.Vehicle{
			{ID: 7, Label: "PUJ-07", Location: &domain.GeoPoint{Lat: 13.94, Lng: 121.16}, RouteID: &route, CurrentPassengers: 12, TotalPassengers: 80, LastSeenAt: &seen},
			{ID: 8},
		},
		trips: []domain.Trip{
			{ID: 3, VehicleID: 7, StartTime: seen, Start: domain.GeoPoint{Lat: 13.94, Lng: 121.16}, Status: domain.TripActive},
		},
		requests: []domain.PassengerRequest{
			{ID: 11, PassengerID: 900, Pickup: domain.GeoPoint{Lat: 13.95, Lng: 121.16}, VehicleID: &vehicle, Status: domain.RequestPickedUp, CreatedAt: seen},
		},
		counts: []domain.VehicleTripCount{{VehicleID: 7, Trips: 4}},
		hours:  []domain.HourlyActivity{{Hour: 8, Vehicles: 3}},
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		result any
		status int
	}{
		{"health", "GET", "/v1/health", "", nil, 200},
		{"ready without database", "GET", "/v1/ready", "", nil, 503},
		{"positions single", "POST", "/v1/positions", `{"bus_id":7,"lat":13.94,"lon":121.16,"passenger_count":4}`, nil, 202},
		{"positions batch", "POST", "/v1/positions", `[{"bus_id":7,"lat":13.94,"lon":121.16},{"bus_id":8,"lat":13.95,"lon":121.17}]`, nil, 202},
		{"positions invalid", "POST", "/v1/positions", `{"bus_id":0,"lat":13.94,"lon":121.16}`, nil, 400},
		{"vehicles", "GET", "/v1/vehicles", "", nil, 200},
		{"active trips", "GET", "/v1/trips/active", "", nil, 200},
		{"per vehicle", "GET", "/v1/trips/metrics/per-vehicle?date=2024-03-04", "", nil, 200},
		{"per vehicle bad date", "GET", "/v1/trips/metrics/per-vehicle?date=04-03-2024", "", nil, 400},
		{"by hour", "GET", "/v1/trips/metrics/by-hour?date=2024-03-04", "", nil, 200},
		{"passenger trips", "GET", "/v1/passenger-trips?status=picked_up", "", nil, 200},
		{"evaluate", "POST", "/v1/trips/evaluate", "", &usecases.TripTickResult{
			Evaluated: 1,
			Started:   []domain.TripEvent{},
			Completed: []domain.TripEvent{{VehicleID: 7, TripID: 3, RouteID: 1, NextRouteID: &route, Status: domain.TripCompleted, At: seen}},
		}, 200},
		{"pickups", "POST", "/v1/passenger-trips/pickups/check", "", []domain.Assignment{{RequestID: 11, PassengerID: 900, VehicleID: 7, DistanceMeters: 42.5}}, 200},
		{"dropoffs", "POST", "/v1/passenger-trips/dropoffs/check", "", []domain.Dropoff{}, 200},
		{"graphql", "POST", "/graphql", `{"query":"{ vehicles { vehicle_id last_seen_at } }"}`, nil, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(func(d *handler.Dependencies) {
				d.Fleet = fleet
				d.Scheduler = &fakeTrigger{result: tt.result}
			}))
			validateExchange(t, spec, app, tt.method, tt.target, tt.body, tt.status)
		})
	}
}

func TestDocs_ServesOpenAPI(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "GET", "/docs/openapi.yaml", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !bytes.Equal(body, api.OpenAPI) {
		t.Error("served document differs from the embedded one")
	}

	status, body = do(t, app, "GET", "/docs", "")
	if status != 200 || !strings.Contains(string(body), "/docs/openapi.yaml") {
		t.Errorf("swagger page not served: %d %s", status, body)
	}
}
