// coordinator/engine/operations.go
package engine

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/google/uuid"
)

// DefaultCompletedRetention is how many completed operations stay queryable in memory.
const DefaultCompletedRetention = 256

// CompletionHook is called once per operation after it transitions to Completed.
// It runs outside engine locks and receives a copy.
type CompletionHook func(op models.Operation)

// Option configures an OperationManager.
type Option func(*OperationManager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(om *OperationManager) { om.now = now }
}

// WithIDGenerator overrides the operation id generator.
func WithIDGenerator(newID func() string) Option {
	return func(om *OperationManager) { om.newID = newID }
}

// WithCompletedRetention bounds the in-memory window of completed operations. Zero keeps none.
func WithCompletedRetention(n int) Option {
	return func(om *OperationManager) {
		if n >= 0 {
			om.retention = n
		}
	}
}

// WithCompletionHook registers a hook fired after every successful Complete.
func WithCompletionHook(hook CompletionHook) Option {
	return func(om *OperationManager) {
		if hook != nil {
			om.hooks = append(om.hooks, hook)
		}
	}
}

// OperationManager creates, tracks and completes deployment operations.
// Lock order when nesting: om.mu, then the team registry, then the ledger.
type OperationManager struct {
	mu     sync.RWMutex
	teams  *TeamRegistry
	ledger *ResourceLedger

	active map[string]*models.Operation

	completed      map[string]*models.Operation
	completedOrder []string
	retention      int

	now   func() time.Time
	newID func() string
	hooks []CompletionHook
}

// NewOperationManager creates an OperationManager over the given registries.
func NewOperationManager(teams *TeamRegistry, ledger *ResourceLedger, opts ...Option) *OperationManager {
	om := &OperationManager{
		teams:     teams,
		ledger:    ledger,
		active:    make(map[string]*models.Operation),
		completed: make(map[string]*models.Operation),
		retention: DefaultCompletedRetention,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(om)
	}
	return om
}

// Deploy takes a team out of the available pool and opens an Active operation for it.
func (om *OperationManager) Deploy(teamID, disasterID string, target models.Coordinate, mission map[string]any) (string, error) {
	if strings.TrimSpace(teamID) == "" {
		return "", fmt.Errorf("%w: team id is required", ErrInvalidArgument)
	}
	if !target.Valid() {
		return "", fmt.Errorf("%w: target location %v out of range", ErrInvalidArgument, target)
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	id := om.uniqueIDLocked()

	om.teams.mu.Lock()
	team, err := om.teams.deployLocked(teamID)
	om.teams.mu.Unlock()
	if err != nil {
		return "", err
	}

	om.active[id] = &models.Operation{
		ID:                 id,
		DisasterID:         disasterID,
		Team:               team,
		Location:           target,
		MissionDetails:     maps.Clone(mission),
		Status:             models.OperationActive,
		StartTime:          om.now(),
		AllocatedResources: make(map[string]int),
	}
	return id, nil
}

// AllocateResources grants resources to an Active operation, all or nothing.
// Granted quantities add to what the operation already holds.
func (om *OperationManager) AllocateResources(operationID string, requests map[string]int) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	op, err := om.activeLocked(operationID)
	if err != nil {
		return err
	}

	om.ledger.mu.Lock()
	err = om.ledger.tryAllocateLocked(requests)
	om.ledger.mu.Unlock()
	if err != nil {
		return fmt.Errorf("operation %s: %w", operationID, err)
	}

	for id, qty := range requests {
		op.AllocatedResources[id] += qty
	}
	return nil
}

// ReleaseResources returns quantities held by an Active operation to the ledger.
// Every entry must be covered by the operation's holdings or nothing is released.
func (om *OperationManager) ReleaseResources(operationID string, requests map[string]int) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	op, err := om.activeLocked(operationID)
	if err != nil {
		return err
	}
	for id, qty := range requests {
		if held := op.AllocatedResources[id]; qty > held {
			return fmt.Errorf("%w: operation %s holds %d of resource %s, cannot release %d",
				ErrInvalidArgument, operationID, held, id, qty)
		}
	}

	om.ledger.mu.Lock()
	om.ledger.releaseLocked(requests)
	om.ledger.mu.Unlock()

	for id, qty := range requests {
		op.AllocatedResources[id] -= qty
		if op.AllocatedResources[id] == 0 {
			delete(op.AllocatedResources, id)
		}
	}
	return nil
}

// ReleaseUnheld returns quantities to the ledger that no Active operation holds,
// such as stock still allocated to completed operations. Each request is capped
// at allocated minus the sum of Active holdings; any violation rejects the whole call.
func (om *OperationManager) ReleaseUnheld(requests map[string]int) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	om.mu.RLock()
	defer om.mu.RUnlock()

	held := make(map[string]int, len(requests))
	for _, op := range om.active {
		for id := range requests {
			held[id] += op.AllocatedResources[id]
		}
	}

	om.ledger.mu.Lock()
	defer om.ledger.mu.Unlock()
	for id, qty := range requests {
		res, ok := om.ledger.resources[id]
		if !ok {
			return fmt.Errorf("%w: resource %s", ErrNotFound, id)
		}
		if free := res.AllocatedQuantity - held[id]; qty > free {
			return fmt.Errorf("%w: resource %s has %d allocated outside active operations, cannot release %d",
				ErrInvalidArgument, id, free, qty)
		}
	}
	om.ledger.releaseLocked(requests)
	return nil
}

// Complete closes an Active operation, returns its team to the available pool and
// returns the completed operation. Resources held by the operation stay allocated;
// use ReleaseResources to return them.
func (om *OperationManager) Complete(operationID string, report map[string]any) (models.Operation, error) {
	om.mu.Lock()

	op, err := om.activeLocked(operationID)
	if err != nil {
		om.mu.Unlock()
		return models.Operation{}, err
	}

	om.teams.mu.Lock()
	err = om.teams.releaseLocked(op.Team.ID)
	om.teams.mu.Unlock()
	if err != nil {
		om.mu.Unlock()
		return models.Operation{}, fmt.Errorf("operation %s: %w", operationID, err)
	}

	completedAt := om.now()
	op.CompletionTime = &completedAt
	op.OperationReport = maps.Clone(report)
	op.Status = models.OperationCompleted
	delete(om.active, operationID)
	om.retainLocked(op)

	snapshot := op.Clone()
	hooks := om.hooks
	om.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot.Clone())
	}
	return snapshot, nil
}

// Elapsed is now minus start for an Active operation, completion minus start otherwise.
func (om *OperationManager) Elapsed(operationID string) (time.Duration, error) {
	op, err := om.Get(operationID)
	if err != nil {
		return 0, err
	}
	return op.Duration(om.now()), nil
}

// Get returns an Active operation or a completed one still in the retention window.
func (om *OperationManager) Get(operationID string) (models.Operation, error) {
	om.mu.RLock()
	defer om.mu.RUnlock()
	if op, ok := om.active[operationID]; ok {
		return op.Clone(), nil
	}
	if op, ok := om.completed[operationID]; ok {
		return op.Clone(), nil
	}
	return models.Operation{}, fmt.Errorf("%w: operation %s", ErrNotFound, operationID)
}

// ListActive returns Active operations ordered by start time, optionally filtered by disaster.
func (om *OperationManager) ListActive(disasterID string) []models.Operation {
	om.mu.RLock()
	defer om.mu.RUnlock()
	result := make([]models.Operation, 0, len(om.active))
	for _, op := range om.active {
		if disasterID == "" || op.DisasterID == disasterID {
			result = append(result, op.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ActiveCount returns the number of Active operations.
func (om *OperationManager) ActiveCount() int {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return len(om.active)
}

func (om *OperationManager) activeLocked(operationID string) (*models.Operation, error) {
	if op, ok := om.active[operationID]; ok {
		return op, nil
	}
	if _, ok := om.completed[operationID]; ok {
		return nil, fmt.Errorf("%w: operation %s is already completed", ErrInvalidState, operationID)
	}
	return nil, fmt.Errorf("%w: operation %s", ErrNotFound, operationID)
}

func (om *OperationManager) uniqueIDLocked() string {
	for {
		id := om.newID()
		_, inActive := om.active[id]
		_, inCompleted := om.completed[id]
		if id != "" && !inActive && !inCompleted {
			return id
		}
	}
}

func (om *OperationManager) retainLocked(op *models.Operation) {
	if om.retention == 0 {
		return
	}
	om.completed[op.ID] = op
	om.completedOrder = append(om.completedOrder, op.ID)
	for len(om.completedOrder) > om.retention {
		delete(om.completed, om.completedOrder[0])
		om.completedOrder = om.completedOrder[1:]
	}
}
