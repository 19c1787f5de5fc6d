// Package engine holds the in-memory coordination state for an emergency response:
// teams, resources, evacuation centers and the operations that tie them together.
//
// Every component guards its own invariant behind a sync.RWMutex and hands out
// copies only. When locks are nested they are taken in the order
// operations -> teams -> centers -> ledger. No method performs I/O.
package engine

import "github.com/Ftotnem/RESPONSE-SERVICES/shared/models"

// Engine bundles the registries, the ledger and the operation manager.
type Engine struct {
	Teams      *TeamRegistry
	Resources  *ResourceLedger
	Centers    *CenterRegistry
	Operations *OperationManager
}

// New creates an empty Engine. Options apply to the operation manager.
func New(opts ...Option) *Engine {
	teams := NewTeamRegistry()
	ledger := NewResourceLedger()
	return &Engine{
		Teams:      teams,
		Resources:  ledger,
		Centers:    NewCenterRegistry(),
		Operations: NewOperationManager(teams, ledger, opts...),
	}
}

// Status builds a consistent snapshot across all components. It holds every read
// lock at once, in the engine-wide lock order, so no mutation is observed half done.
func (e *Engine) Status() models.StatusReport {
	om := e.Operations
	om.mu.RLock()
	defer om.mu.RUnlock()
	e.Teams.mu.RLock()
	defer e.Teams.mu.RUnlock()
	e.Centers.mu.RLock()
	defer e.Centers.mu.RUnlock()
	e.Resources.mu.RLock()
	defer e.Resources.mu.RUnlock()

	available := len(e.Teams.available)
	deployed := len(e.Teams.deployed)
	centers, capacity, occupancy := e.Centers.totalsLocked()

	report := models.StatusReport{
		TotalTeams:                 available + deployed,
		AvailableTeams:             available,
		DeployedTeams:              deployed,
		ActiveOperations:           len(om.active),
		EvacuationCenters:          centers,
		TotalEvacuationCapacity:    capacity,
		CurrentEvacuationOccupancy: occupancy,
		ResourcesByType:            e.Resources.availableByTypeLocked(),
		GeneratedAt:                om.now().UTC(),
	}
	if capacity > 0 {
		report.EvacuationCapacityUsedPercent = float64(occupancy) * 100.0 / float64(capacity)
	}
	return report
}
