package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/service"
	sharedapi "github.com/Ftotnem/RESPONSE-SERVICES/shared/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/gorilla/mux"
)

var epoch = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

type testServer struct {
	router *mux.Router
	now    time.Time
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	ts := &testServer{router: mux.NewRouter(), now: epoch}
	clock := func() time.Time { return ts.now }

	n := 0
	e := engine.New(
		engine.WithClock(clock),
		engine.WithIDGenerator(func() string { n++; return fmt.Sprintf("O%d", n) }),
	)
	svc := service.NewCoordinatorService(e, service.Dependencies{Clock: clock})
	NewCoordinatorAPIHandlers(svc, checks, time.Second).RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v; body: %s", v, err, rec.Body.String())
	}
	return v
}

func seed(t *testing.T, ts *testServer) {
	t.Helper()
	expectStatus(t, ts.do(t, http.MethodPost, "/teams", RegisterTeamRequest{ID: "T1", Name: "Alpha", Type: models.TeamTypeRescue, Members: 6}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/teams", RegisterTeamRequest{ID: "T2", Name: "Medics", Type: models.TeamTypeMedical, Members: 4}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/resources", AddResourceRequest{ID: "tents", Name: "Tent", Type: "shelter", Quantity: 100, Unit: "units"}), http.StatusCreated)
}

func TestTeamEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts)

	expectStatus(t, ts.do(t, http.MethodPost, "/teams", RegisterTeamRequest{ID: "T1", Name: "Dup", Type: models.TeamTypeFire, Members: 1}), http.StatusConflict)
	expectStatus(t, ts.do(t, http.MethodPost, "/teams", RegisterTeamRequest{Name: "No id"}), http.StatusBadRequest)

	rec := ts.do(t, http.MethodGet, "/teams/available?type="+models.TeamTypeMedical, nil)
	expectStatus(t, rec, http.StatusOK)
	teams := decode[[]models.Team](t, rec)
	if len(teams) != 1 || teams[0].ID != "T2" {
		t.Fatalf("medical teams = %+v", teams)
	}

	rec = ts.do(t, http.MethodGet, "/teams/T1", nil)
	expectStatus(t, rec, http.StatusOK)
	if team := decode[TeamResponse](t, rec); team.Status != models.TeamAvailable || team.Name != "Alpha" {
		t.Fatalf("team = %+v", team)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/teams/ghost", nil), http.StatusNotFound)
}

func TestOperationFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts)

	rec := ts.do(t, http.MethodPost, "/operations", DeployTeamRequest{
		TeamID: "T1", DisasterID: "D1",
		Location:       models.Coordinate{Latitude: 19.07, Longitude: 72.87},
		MissionDetails: map[string]any{"priority": "high"},
	})
	expectStatus(t, rec, http.StatusCreated)
	op := decode[models.Operation](t, rec)
	if op.ID != "O1" || op.Status != models.OperationActive {
		t.Fatalf("operation = %+v", op)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/operations", DeployTeamRequest{TeamID: "T1", DisasterID: "D1"}), http.StatusConflict)

	rec = ts.do(t, http.MethodPost, "/operations/O1/allocations", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 40}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Operation](t, rec).AllocatedResources["tents"]; got != 40 {
		t.Fatalf("allocated tents = %d", got)
	}

	rec = ts.do(t, http.MethodPost, "/operations/O1/allocations", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 61, "boats": 2}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var shortage struct {
		Details []engine.Shortage `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &shortage); err != nil {
		t.Fatalf("decode shortage: %v", err)
	}
	want := []engine.Shortage{
		{ResourceID: "boats", Requested: 2, Unknown: true},
		{ResourceID: "tents", Requested: 61, Available: 60},
	}
	if len(shortage.Details) != 2 || shortage.Details[0] != want[0] || shortage.Details[1] != want[1] {
		t.Fatalf("shortages = %+v, want %+v", shortage.Details, want)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O1/release", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 50}}), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O1/release", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 15}}), http.StatusOK)

	rec = ts.do(t, http.MethodGet, "/operations?disaster_id=D1", nil)
	expectStatus(t, rec, http.StatusOK)
	if ops := decode[[]models.Operation](t, rec); len(ops) != 1 {
		t.Fatalf("active operations = %+v", ops)
	}

	ts.now = epoch.Add(90 * time.Minute)
	rec = ts.do(t, http.MethodGet, "/operations/O1/elapsed", nil)
	expectStatus(t, rec, http.StatusOK)
	if elapsed := decode[ElapsedResponse](t, rec); elapsed.ElapsedSeconds != 5400 || elapsed.Status != models.OperationActive {
		t.Fatalf("elapsed = %+v", elapsed)
	}

	rec = ts.do(t, http.MethodPost, "/operations/O1/complete", CompleteOperationRequest{OperationReport: map[string]any{"rescued": 14}})
	expectStatus(t, rec, http.StatusOK)
	if done := decode[models.Operation](t, rec); done.Status != models.OperationCompleted || done.CompletionTime == nil {
		t.Fatalf("completed = %+v", done)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O1/complete", nil), http.StatusConflict)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O9/complete", nil), http.StatusNotFound)

	rec = ts.do(t, http.MethodGet, "/teams/T1", nil)
	if team := decode[TeamResponse](t, rec); team.Status != models.TeamAvailable {
		t.Fatalf("team after completion = %+v", team)
	}
}

func TestCenterEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	mumbai := models.Coordinate{Latitude: 19.0760, Longitude: 72.8777}
	pune := models.Coordinate{Latitude: 18.5204, Longitude: 73.8567}

	expectStatus(t, ts.do(t, http.MethodPost, "/centers", RegisterCenterRequest{ID: "C1", Name: "Mumbai hall", Location: mumbai, Capacity: 500}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/centers", RegisterCenterRequest{ID: "C2", Name: "Pune school", Location: pune, Capacity: 200}), http.StatusCreated)

	occupancy := 450
	rec := ts.do(t, http.MethodPut, "/centers/C1/occupancy", UpdateOccupancyRequest{Occupancy: &occupancy})
	expectStatus(t, rec, http.StatusOK)
	if c := decode[models.EvacuationCenter](t, rec); c.CurrentOccupancy != 450 {
		t.Fatalf("center = %+v", c)
	}
	over := 501
	expectStatus(t, ts.do(t, http.MethodPut, "/centers/C1/occupancy", UpdateOccupancyRequest{Occupancy: &over}), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodPut, "/centers/C1/occupancy", UpdateOccupancyRequest{}), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodPut, "/centers/C9/occupancy", UpdateOccupancyRequest{Occupancy: &occupancy}), http.StatusNotFound)

	rec = ts.do(t, http.MethodGet, "/centers/nearby?lat=19.0760&lon=72.8777&radius_km=50", nil)
	expectStatus(t, rec, http.StatusOK)
	if nearby := decode[[]models.NearbyCenter](t, rec); len(nearby) != 1 || nearby[0].ID != "C1" {
		t.Fatalf("nearby within 50km = %+v", nearby)
	}
	rec = ts.do(t, http.MethodGet, "/centers/nearby?lat=19.0760&lon=72.8777&radius_km=200", nil)
	nearby := decode[[]models.NearbyCenter](t, rec)
	if len(nearby) != 2 || nearby[1].ID != "C2" || nearby[1].DistanceKm < 100 {
		t.Fatalf("nearby within 200km = %+v", nearby)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/centers/nearby?lat=abc&lon=1&radius_km=1", nil), http.StatusBadRequest)

	rec = ts.do(t, http.MethodGet, "/status", nil)
	expectStatus(t, rec, http.StatusOK)
	status := decode[models.StatusReport](t, rec)
	if status.EvacuationCenters != 2 || status.TotalEvacuationCapacity != 700 || status.CurrentEvacuationOccupancy != 450 {
		t.Fatalf("status = %+v", status)
	}
}

func TestUnconfiguredFeaturesReturnUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, ts.do(t, http.MethodGet, "/disasters/D1/operations/history", nil), http.StatusServiceUnavailable)
	expectStatus(t, ts.do(t, http.MethodGet, "/disasters/D1/operations/history?limit=-1", nil), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodGet, "/instances", nil), http.StatusServiceUnavailable)
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t, map[string]HealthCheck{
		"redis":   func(ctx context.Context) error { return nil },
		"mongodb": func(ctx context.Context) error { return errors.New("no primary") },
	})

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	health := decode[HealthResponse](t, rec)
	if health.Status != "degraded" || health.Checks["redis"] != "ok" || health.Checks["mongodb"] != "no primary" {
		t.Fatalf("health = %+v", health)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/teams", map[string]any{"id": "T1", "colour": "red"})
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decode[sharedapi.JSONErrorResponse](t, rec); body.Code != http.StatusBadRequest {
		t.Fatalf("error body = %+v", body)
	}
}

func TestCompleteOperationWithEmptyChunkedBody(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations", DeployTeamRequest{TeamID: "T1", DisasterID: "D1"}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations", DeployTeamRequest{TeamID: "T2", DisasterID: "D1"}), http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/operations/O2/complete", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/operations/O1/complete", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	op := decode[models.Operation](t, rec)
	if op.Status != models.OperationCompleted || op.OperationReport != nil {
		t.Fatalf("completed operation = %+v", op)
	}
}

func TestLedgerReleaseSparesActiveHoldings(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations", DeployTeamRequest{TeamID: "T1", DisasterID: "D1"}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O1/allocations", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 60}}), http.StatusOK)

	expectStatus(t, ts.do(t, http.MethodPost, "/resources/release", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 60}}), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodPost, "/resources/release", ResourceQuantitiesRequest{Resources: map[string]int{"ropes": 1}}), http.StatusNotFound)

	expectStatus(t, ts.do(t, http.MethodPost, "/operations/O1/complete", nil), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodPost, "/resources/release", ResourceQuantitiesRequest{Resources: map[string]int{"tents": 60}}), http.StatusNoContent)

	rec := ts.do(t, http.MethodGet, "/resources/tents", nil)
	expectStatus(t, rec, http.StatusOK)
	if res := decode[ResourceResponse](t, rec); res.AllocatedQuantity != 0 || res.AvailableQuantity != 100 {
		t.Fatalf("tents after release = %+v", res)
	}
}
