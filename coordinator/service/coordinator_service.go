// coordinator/service/coordinator_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"sync"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/metrics"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/store"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/registry"
)

// Errors for features whose backing store was not configured.
var (
	ErrArchiveUnavailable   = errors.New("operation archive not configured")
	ErrDiscoveryUnavailable = errors.New("service discovery not configured")
)

// EventPublisher fans out operation lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.OperationEvent) error
}

// ArchiveReader serves operations that have left the in-memory engine.
type ArchiveReader interface {
	GetOperation(ctx context.Context, operationID string) (models.Operation, error)
	ListByDisaster(ctx context.Context, disasterID string, limit int64) ([]models.Operation, error)
}

// PeerDirectory lists live coordinator instances.
type PeerDirectory interface {
	GetActiveServices(ctx context.Context, serviceType string) ([]registry.ServiceInfo, error)
}

// SnapshotReader loads the last published status of an instance.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, serviceID string) (models.StatusReport, error)
}

// Instance is a live coordinator with its last published status, if any.
type Instance struct {
	registry.ServiceInfo
	Status *models.StatusReport `json:"status,omitempty"`
}

// Dependencies holds the optional collaborators of a CoordinatorService. Nil fields disable
// the matching feature.
type Dependencies struct {
	Events         EventPublisher
	Archive        ArchiveReader
	Peers          PeerDirectory
	Snapshots      SnapshotReader
	Metrics        *metrics.Metrics
	PublishTimeout time.Duration
	Clock          func() time.Time
}

// CoordinatorService exposes the engine to the API layer and publishes side effects.
type CoordinatorService struct {
	engine         *engine.Engine
	events         EventPublisher
	archive        ArchiveReader
	peers          PeerDirectory
	snapshots      SnapshotReader
	metrics        *metrics.Metrics
	publishTimeout time.Duration
	now            func() time.Time
	inflight       sync.WaitGroup
}

// NewCoordinatorService creates a new CoordinatorService instance.
func NewCoordinatorService(e *engine.Engine, deps Dependencies) *CoordinatorService {
	timeout := deps.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &CoordinatorService{
		engine:         e,
		events:         deps.Events,
		archive:        deps.Archive,
		peers:          deps.Peers,
		snapshots:      deps.Snapshots,
		metrics:        deps.Metrics,
		publishTimeout: timeout,
		now:            now,
	}
}

// --- Teams ---

func (s *CoordinatorService) RegisterTeam(id, name, teamType string, members int, capabilities []string) (models.Team, error) {
	team, err := s.engine.Teams.RegisterTeam(id, name, teamType, members, capabilities)
	if err != nil {
		return models.Team{}, err
	}
	log.Printf("INFO: Registered %s team %s (%d members).", team.Type, team.ID, team.Members)
	return team, nil
}

func (s *CoordinatorService) GetTeam(id string) (models.Team, models.TeamStatus, error) {
	return s.engine.Teams.Get(id)
}

func (s *CoordinatorService) ListAvailableTeams(teamType string) []models.Team {
	return s.engine.Teams.ListAvailable(teamType)
}

// --- Resources ---

func (s *CoordinatorService) AddResource(id, name, resourceType string, quantity int, unit string) (models.Resource, error) {
	resource, err := s.engine.Resources.AddResource(id, name, resourceType, quantity, unit)
	if err != nil {
		return models.Resource{}, err
	}
	log.Printf("INFO: Resource %s now totals %d %s.", resource.ID, resource.TotalQuantity, resource.Unit)
	return resource, nil
}

func (s *CoordinatorService) GetResource(id string) (models.Resource, error) {
	return s.engine.Resources.Get(id)
}

func (s *CoordinatorService) ListResources() []models.Resource {
	return s.engine.Resources.List()
}

// ReleaseToLedger returns stock that no active operation holds, e.g. quantities
// left allocated by completed operations.
func (s *CoordinatorService) ReleaseToLedger(requests map[string]int) error {
	return s.engine.Operations.ReleaseUnheld(requests)
}

// --- Evacuation centers ---

func (s *CoordinatorService) RegisterCenter(id, name string, location models.Coordinate, capacity int, facilities []string) (models.EvacuationCenter, error) {
	center, err := s.engine.Centers.Register(id, name, location, capacity, facilities)
	if err != nil {
		return models.EvacuationCenter{}, err
	}
	log.Printf("INFO: Registered evacuation center %s with capacity %d.", center.ID, center.Capacity)
	return center, nil
}

// UpdateOccupancy sets a center's occupancy and returns the updated center.
func (s *CoordinatorService) UpdateOccupancy(id string, occupancy int) (models.EvacuationCenter, error) {
	if err := s.engine.Centers.SetOccupancy(id, occupancy); err != nil {
		s.metrics.OccupancyUpdate(metrics.ResultRejected)
		return models.EvacuationCenter{}, err
	}
	s.metrics.OccupancyUpdate(metrics.ResultAccepted)
	return s.engine.Centers.Get(id)
}

func (s *CoordinatorService) GetCenter(id string) (models.EvacuationCenter, error) {
	return s.engine.Centers.Get(id)
}

func (s *CoordinatorService) ListCenters() []models.EvacuationCenter {
	return s.engine.Centers.List()
}

func (s *CoordinatorService) FindNearbyCenters(point models.Coordinate, maxDistanceKm float64) ([]models.NearbyCenter, error) {
	return s.engine.Centers.Nearby(point, maxDistanceKm)
}

// --- Operations ---

// DeployTeam opens an operation for an available team and returns it.
func (s *CoordinatorService) DeployTeam(teamID, disasterID string, target models.Coordinate, mission map[string]any) (models.Operation, error) {
	id, err := s.engine.Operations.Deploy(teamID, disasterID, target, mission)
	if err != nil {
		return models.Operation{}, err
	}
	s.metrics.OperationDeployed()
	log.Printf("INFO: Deployed team %s to disaster %s as operation %s.", teamID, disasterID, id)
	s.publish(models.OperationEvent{Kind: models.EventOperationDeployed, OperationID: id, DisasterID: disasterID, TeamID: teamID})

	// The operation may already be completed and evicted by a concurrent caller.
	return s.GetOperation(context.Background(), id)
}

// AllocateResources grants resources to an active operation and returns its updated holdings.
func (s *CoordinatorService) AllocateResources(operationID string, requests map[string]int) (models.Operation, error) {
	if err := s.engine.Operations.AllocateResources(operationID, requests); err != nil {
		var allocErr *engine.AllocationError
		if errors.As(err, &allocErr) {
			s.metrics.Allocation(metrics.ResultInsufficient)
		} else {
			s.metrics.Allocation(metrics.ResultRejected)
		}
		return models.Operation{}, err
	}
	s.metrics.Allocation(metrics.ResultGranted)
	return s.afterResourceChange(operationID, models.EventOperationAllocated, requests)
}

// ReleaseOperationResources returns part of an active operation's holdings to the ledger.
func (s *CoordinatorService) ReleaseOperationResources(operationID string, requests map[string]int) (models.Operation, error) {
	if err := s.engine.Operations.ReleaseResources(operationID, requests); err != nil {
		return models.Operation{}, err
	}
	return s.afterResourceChange(operationID, models.EventOperationReleased, requests)
}

func (s *CoordinatorService) afterResourceChange(operationID, kind string, requests map[string]int) (models.Operation, error) {
	op, err := s.engine.Operations.Get(operationID)
	if err != nil {
		return models.Operation{}, err
	}
	s.publish(models.OperationEvent{
		Kind:        kind,
		OperationID: op.ID,
		DisasterID:  op.DisasterID,
		TeamID:      op.Team.ID,
		Resources:   maps.Clone(requests),
	})
	return op, nil
}

// CompleteOperation closes an active operation and frees its team.
func (s *CoordinatorService) CompleteOperation(operationID string, report map[string]any) (models.Operation, error) {
	op, err := s.engine.Operations.Complete(operationID, report)
	if err != nil {
		return models.Operation{}, err
	}
	s.metrics.OperationCompleted()
	log.Printf("INFO: Operation %s completed after %v; team %s available again.",
		op.ID, op.Duration(s.now()).Round(time.Second), op.Team.ID)
	s.publish(models.OperationEvent{
		Kind:        models.EventOperationCompleted,
		OperationID: op.ID,
		DisasterID:  op.DisasterID,
		TeamID:      op.Team.ID,
		Resources:   maps.Clone(op.AllocatedResources),
	})
	return op, nil
}

// GetOperation looks in the engine first, then in the archive.
func (s *CoordinatorService) GetOperation(ctx context.Context, operationID string) (models.Operation, error) {
	op, err := s.engine.Operations.Get(operationID)
	if err == nil || !errors.Is(err, engine.ErrNotFound) || s.archive == nil {
		return op, err
	}

	archived, archiveErr := s.archive.GetOperation(ctx, operationID)
	if errors.Is(archiveErr, store.ErrOperationNotArchived) {
		return models.Operation{}, err
	}
	if archiveErr != nil {
		return models.Operation{}, fmt.Errorf("operation %s: %w", operationID, archiveErr)
	}
	return archived, nil
}

// OperationElapsed reports the operation's running time, or its total time once completed.
func (s *CoordinatorService) OperationElapsed(ctx context.Context, operationID string) (models.Operation, time.Duration, error) {
	op, err := s.GetOperation(ctx, operationID)
	if err != nil {
		return models.Operation{}, 0, err
	}
	return op, op.Duration(s.now()), nil
}

func (s *CoordinatorService) ListActiveOperations(disasterID string) []models.Operation {
	return s.engine.Operations.ListActive(disasterID)
}

// OperationHistory lists archived operations of a disaster, most recently completed first.
func (s *CoordinatorService) OperationHistory(ctx context.Context, disasterID string, limit int64) ([]models.Operation, error) {
	if s.archive == nil {
		return nil, ErrArchiveUnavailable
	}
	return s.archive.ListByDisaster(ctx, disasterID, limit)
}

// --- Status ---

func (s *CoordinatorService) Status() models.StatusReport {
	return s.engine.Status()
}

// Instances lists live coordinator instances with their last published status.
func (s *CoordinatorService) Instances(ctx context.Context) ([]Instance, error) {
	if s.peers == nil {
		return nil, ErrDiscoveryUnavailable
	}
	infos, err := s.peers.GetActiveServices(ctx, registry.CoordinatorServiceType)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(infos))
	for _, info := range infos {
		instance := Instance{ServiceInfo: info}
		if s.snapshots != nil {
			if report, err := s.snapshots.GetSnapshot(ctx, info.ServiceID); err == nil {
				instance.Status = &report
			} else {
				log.Printf("WARNING: No status snapshot for instance %s: %v", info.ServiceID, err)
			}
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// ActiveOperationCount feeds registry heartbeat metadata.
func (s *CoordinatorService) ActiveOperationCount() int {
	return s.engine.Operations.ActiveCount()
}

// Close waits for in-flight event publications.
func (s *CoordinatorService) Close() {
	s.inflight.Wait()
}

func (s *CoordinatorService) publish(event models.OperationEvent) {
	if s.events == nil {
		return
	}
	event.At = s.now().UTC()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.events.PublishEvent(ctx, event); err != nil {
			log.Printf("ERROR: Failed to publish %s event for operation %s: %v", event.Kind, event.OperationID, err)
		}
	}()
}
