package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	coordapi "github.com/Ftotnem/RESPONSE-SERVICES/coordinator/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	coordsvc "github.com/Ftotnem/RESPONSE-SERVICES/coordinator/service"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

func newCoordinator(t *testing.T) *CoordinatorServiceClient {
	t.Helper()
	server := api.NewBaseServer(":0", nil)
	svc := coordsvc.NewCoordinatorService(engine.New(), coordsvc.Dependencies{})
	coordapi.NewCoordinatorAPIHandlers(svc, nil, time.Second).RegisterRoutes(server.Router)

	ts := httptest.NewServer(server.Router)
	t.Cleanup(ts.Close)
	return NewCoordinatorClient(ts.URL)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	if _, err := c.RegisterTeam(ctx, TeamRegistration{ID: "T1", Name: "Alpha", Type: models.TeamTypeFire, Members: 5}); err != nil {
		t.Fatalf("register team: %v", err)
	}
	if _, err := c.RegisterTeam(ctx, TeamRegistration{ID: "T1", Name: "Again"}); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := c.AddResource(ctx, "water", "Water", "supplies", 1000, "litres"); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	if _, err := c.RegisterCenter(ctx, CenterRegistration{ID: "C1", Name: "Gym", Location: models.Coordinate{Latitude: 10, Longitude: 10}, Capacity: 50}); err != nil {
		t.Fatalf("register center: %v", err)
	}
	if _, err := c.UpdateOccupancy(ctx, "C1", 51); !errors.Is(err, api.ErrUnprocessable) {
		t.Fatalf("expected ErrUnprocessable, got %v", err)
	}
	nearby, err := c.NearbyCenters(ctx, models.Coordinate{Latitude: 10, Longitude: 10.01}, 5)
	if err != nil || len(nearby) != 1 {
		t.Fatalf("nearby = %+v, %v", nearby, err)
	}

	fire, err := c.ListAvailableTeams(ctx, models.TeamTypeFire)
	if err != nil || len(fire) != 1 {
		t.Fatalf("available fire teams = %+v, %v", fire, err)
	}

	op, err := c.DeployTeam(ctx, Deployment{TeamID: "T1", DisasterID: "D-7", Location: models.Coordinate{Latitude: 10, Longitude: 10}})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if team, _ := c.GetTeam(ctx, "T1"); team.Status != models.TeamDeployed {
		t.Fatalf("team status = %s", team.Status)
	}

	if _, err := c.AllocateResources(ctx, op.ID, map[string]int{"water": 1001}); !errors.Is(err, api.ErrUnprocessable) {
		t.Fatalf("expected ErrUnprocessable for shortage, got %v", err)
	}
	if _, err := c.AllocateResources(ctx, op.ID, map[string]int{"water": 600}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := c.ReleaseOperationResources(ctx, op.ID, map[string]int{"water": 100}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if res, _ := c.GetResource(ctx, "water"); res.AvailableQuantity != 500 {
		t.Fatalf("available water = %d, want 500", res.AvailableQuantity)
	}

	active, err := c.ListOperations(ctx, "D-7")
	if err != nil || len(active) != 1 || active[0].ID != op.ID {
		t.Fatalf("active = %+v, %v", active, err)
	}
	if elapsed, err := c.OperationElapsed(ctx, op.ID); err != nil || elapsed.Duration() < 0 {
		t.Fatalf("elapsed = %+v, %v", elapsed, err)
	}

	done, err := c.CompleteOperation(ctx, op.ID, map[string]any{"saved": "warehouse"})
	if err != nil || done.Status != models.OperationCompleted {
		t.Fatalf("complete = %+v, %v", done, err)
	}
	if _, err := c.CompleteOperation(ctx, op.ID, nil); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected ErrConflict completing twice, got %v", err)
	}
	_, err = c.GetOperation(ctx, "missing")
	if !errors.Is(err, api.ErrNotFound) || api.GetHTTPStatusCode(err) != 404 {
		t.Fatalf("expected 404 ErrNotFound, got %v", err)
	}
	if err := c.ReleaseResources(ctx, map[string]int{"water": 500}); err != nil {
		t.Fatalf("ledger release: %v", err)
	}
	if err := c.ReleaseResources(ctx, map[string]int{"water": 1}); !errors.Is(err, api.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest releasing unallocated stock, got %v", err)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.TotalTeams != 1 || status.AvailableTeams != 1 || status.ActiveOperations != 0 || status.ResourcesByType["supplies"] != 1000 {
		t.Fatalf("status = %+v", status)
	}
}
