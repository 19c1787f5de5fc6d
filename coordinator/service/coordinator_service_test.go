package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/store"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/registry"
)

var (
	start  = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	mumbai = models.Coordinate{Latitude: 19.0760, Longitude: 72.8777}
)

type recordingEvents struct {
	mu     sync.Mutex
	events []models.OperationEvent
	err    error
}

func (r *recordingEvents) PublishEvent(ctx context.Context, event models.OperationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEvents) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

type memoryArchive struct {
	ops map[string]models.Operation
	err error
}

func (m *memoryArchive) SaveOperation(ctx context.Context, op models.Operation) error {
	m.ops[op.ID] = op
	return nil
}

func (m *memoryArchive) GetOperation(ctx context.Context, id string) (models.Operation, error) {
	if m.err != nil {
		return models.Operation{}, m.err
	}
	op, ok := m.ops[id]
	if !ok {
		return models.Operation{}, fmt.Errorf("operation %s: %w", id, store.ErrOperationNotArchived)
	}
	return op, nil
}

func (m *memoryArchive) ListByDisaster(ctx context.Context, disasterID string, limit int64) ([]models.Operation, error) {
	var result []models.Operation
	for _, op := range m.ops {
		if op.DisasterID == disasterID {
			result = append(result, op)
		}
	}
	return result, nil
}

type fixture struct {
	svc     *CoordinatorService
	events  *recordingEvents
	archive *memoryArchive
	now     time.Time
}

func newFixture(t *testing.T, retention int) *fixture {
	t.Helper()
	f := &fixture{events: &recordingEvents{}, archive: &memoryArchive{ops: map[string]models.Operation{}}, now: start}
	clock := func() time.Time { return f.now }

	n := 0
	e := engine.New(
		engine.WithClock(clock),
		engine.WithIDGenerator(func() string { n++; return fmt.Sprintf("O%d", n) }),
		engine.WithCompletedRetention(retention),
		engine.WithCompletionHook(func(op models.Operation) { f.archive.SaveOperation(context.Background(), op) }),
	)
	f.svc = NewCoordinatorService(e, Dependencies{Events: f.events, Archive: f.archive, Clock: clock})

	if _, err := f.svc.RegisterTeam("T1", "Alpha", models.TeamTypeRescue, 6, nil); err != nil {
		t.Fatalf("register team: %v", err)
	}
	if _, err := f.svc.AddResource("tents", "Family tent", "shelter", 100, "units"); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	return f
}

func TestOperationLifecyclePublishesEvents(t *testing.T) {
	f := newFixture(t, 8)
	svc := f.svc

	op, err := svc.DeployTeam("T1", "D1", mumbai, map[string]any{"priority": "high"})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if op.ID != "O1" || op.Status != models.OperationActive || op.Team.ID != "T1" {
		t.Fatalf("unexpected operation: %+v", op)
	}

	op, err = svc.AllocateResources(op.ID, map[string]int{"tents": 30})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if op.AllocatedResources["tents"] != 30 {
		t.Fatalf("holdings = %v", op.AllocatedResources)
	}

	op, err = svc.ReleaseOperationResources(op.ID, map[string]int{"tents": 10})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if op.AllocatedResources["tents"] != 20 {
		t.Fatalf("holdings after release = %v", op.AllocatedResources)
	}

	f.now = start.Add(2 * time.Hour)
	done, err := svc.CompleteOperation(op.ID, map[string]any{"rescued": 40})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.OperationCompleted {
		t.Fatalf("status = %s", done.Status)
	}
	svc.Close()

	want := []string{
		models.EventOperationDeployed,
		models.EventOperationAllocated,
		models.EventOperationReleased,
		models.EventOperationCompleted,
	}
	got := f.events.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	seen := map[string]bool{}
	for _, k := range got {
		seen[k] = true
	}
	for _, k := range want {
		if !seen[k] {
			t.Errorf("missing %s event in %v", k, got)
		}
	}

	if _, status, _ := svc.GetTeam("T1"); status != models.TeamAvailable {
		t.Errorf("team status = %s", status)
	}
	if r, _ := svc.GetResource("tents"); r.AllocatedQuantity != 20 {
		t.Errorf("completion must not release holdings; allocated = %d", r.AllocatedQuantity)
	}
}

func TestAllocationShortageIsReported(t *testing.T) {
	f := newFixture(t, 8)
	op, _ := f.svc.DeployTeam("T1", "D1", mumbai, nil)

	_, err := f.svc.AllocateResources(op.ID, map[string]int{"tents": 101, "boats": 1})
	var allocErr *engine.AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected AllocationError, got %v", err)
	}
	if len(allocErr.Shortages) != 2 {
		t.Fatalf("shortages = %+v", allocErr.Shortages)
	}
	if !errors.Is(err, engine.ErrInsufficientResource) || !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("error should match both insufficient and not found: %v", err)
	}
}

func TestGetOperationFallsBackToArchive(t *testing.T) {
	f := newFixture(t, 0)
	op, _ := f.svc.DeployTeam("T1", "D1", mumbai, nil)

	f.now = start.Add(45 * time.Minute)
	if _, err := f.svc.CompleteOperation(op.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := f.svc.GetOperation(context.Background(), op.ID)
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if got.Status != models.OperationCompleted {
		t.Fatalf("archived status = %s", got.Status)
	}

	f.now = start.Add(10 * time.Hour)
	_, elapsed, err := f.svc.OperationElapsed(context.Background(), op.ID)
	if err != nil || elapsed != 45*time.Minute {
		t.Fatalf("elapsed = %v, %v; want 45m", elapsed, err)
	}

	if _, err := f.svc.GetOperation(context.Background(), "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	f.archive.err = errors.New("mongo down")
	if _, err := f.svc.GetOperation(context.Background(), "missing"); err == nil || errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("archive failure should surface as an internal error, got %v", err)
	}
}

func TestHistoryRequiresArchive(t *testing.T) {
	svc := NewCoordinatorService(engine.New(), Dependencies{})
	if _, err := svc.OperationHistory(context.Background(), "D1", 10); !errors.Is(err, ErrArchiveUnavailable) {
		t.Fatalf("expected ErrArchiveUnavailable, got %v", err)
	}
	if _, err := svc.Instances(context.Background()); !errors.Is(err, ErrDiscoveryUnavailable) {
		t.Fatalf("expected ErrDiscoveryUnavailable, got %v", err)
	}
}

type staticPeers []registry.ServiceInfo

func (p staticPeers) GetActiveServices(ctx context.Context, serviceType string) ([]registry.ServiceInfo, error) {
	return p, nil
}

type staticSnapshots map[string]models.StatusReport

func (s staticSnapshots) GetSnapshot(ctx context.Context, id string) (models.StatusReport, error) {
	report, ok := s[id]
	if !ok {
		return models.StatusReport{}, errors.New("no snapshot")
	}
	return report, nil
}

func TestInstancesAttachSnapshots(t *testing.T) {
	svc := NewCoordinatorService(engine.New(), Dependencies{
		Peers:     staticPeers{{ServiceID: "a"}, {ServiceID: "b"}},
		Snapshots: staticSnapshots{"a": {ActiveOperations: 3}},
	})

	instances, err := svc.Instances(context.Background())
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("instances = %+v", instances)
	}
	if instances[0].Status == nil || instances[0].Status.ActiveOperations != 3 {
		t.Errorf("instance a status = %+v", instances[0].Status)
	}
	if instances[1].Status != nil {
		t.Errorf("instance b should have no status, got %+v", instances[1].Status)
	}
}

func TestUpdateOccupancyAndLedgerRelease(t *testing.T) {
	f := newFixture(t, 8)
	if _, err := f.svc.RegisterCenter("C1", "School", mumbai, 100, []string{"water"}); err != nil {
		t.Fatalf("register center: %v", err)
	}
	center, err := f.svc.UpdateOccupancy("C1", 60)
	if err != nil || center.CurrentOccupancy != 60 {
		t.Fatalf("update occupancy = %+v, %v", center, err)
	}
	if _, err := f.svc.UpdateOccupancy("C1", 101); !errors.Is(err, engine.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	op, _ := f.svc.DeployTeam("T1", "D1", mumbai, nil)
	f.svc.AllocateResources(op.ID, map[string]int{"tents": 50})
	if err := f.svc.ReleaseToLedger(map[string]int{"tents": 0}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := f.svc.ReleaseToLedger(map[string]int{"tents": 50}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for stock held by an active operation, got %v", err)
	}
	if r, _ := f.svc.GetResource("tents"); r.AllocatedQuantity != 50 {
		t.Fatalf("allocated = %d, want 50", r.AllocatedQuantity)
	}

	if _, err := f.svc.CompleteOperation(op.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.svc.ReleaseToLedger(map[string]int{"tents": 50}); err != nil {
		t.Fatalf("release to ledger: %v", err)
	}
	if r, _ := f.svc.GetResource("tents"); r.AllocatedQuantity != 0 {
		t.Errorf("allocated = %d, want 0", r.AllocatedQuantity)
	}
}
