// coordinator/engine/resources.go
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// ResourceLedger owns total/allocated bookkeeping for every resource.
// Invariant: 0 <= allocated <= total for each record.
type ResourceLedger struct {
	mu        sync.RWMutex
	resources map[string]*models.Resource
}

// NewResourceLedger creates an empty ResourceLedger.
func NewResourceLedger() *ResourceLedger {
	return &ResourceLedger{resources: make(map[string]*models.Resource)}
}

// AddResource creates a resource, or tops up the total of an existing one.
// Name, type and unit are only recorded on creation.
func (rl *ResourceLedger) AddResource(id, name, resourceType string, quantity int, unit string) (models.Resource, error) {
	if strings.TrimSpace(id) == "" {
		return models.Resource{}, fmt.Errorf("%w: resource id is required", ErrInvalidArgument)
	}
	if quantity < 0 {
		return models.Resource{}, fmt.Errorf("%w: resource %s quantity %d is negative", ErrInvalidArgument, id, quantity)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if res, ok := rl.resources[id]; ok {
		if quantity > math.MaxInt-res.TotalQuantity {
			return models.Resource{}, fmt.Errorf("%w: resource %s top-up of %d overflows total %d", ErrInvalidArgument, id, quantity, res.TotalQuantity)
		}
		res.TotalQuantity += quantity
		return *res, nil
	}
	res := &models.Resource{
		ID:            id,
		Name:          name,
		Type:          resourceType,
		Unit:          unit,
		TotalQuantity: quantity,
	}
	rl.resources[id] = res
	return *res, nil
}

// TryAllocate commits every request or none of them. All checks run before any
// allocated value changes, under the ledger-wide write lock.
func (rl *ResourceLedger) TryAllocate(requests map[string]int) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tryAllocateLocked(requests)
}

func (rl *ResourceLedger) tryAllocateLocked(requests map[string]int) error {
	var shortages []Shortage
	for id, qty := range requests {
		res, ok := rl.resources[id]
		if !ok {
			shortages = append(shortages, Shortage{ResourceID: id, Requested: qty, Unknown: true})
			continue
		}
		if qty > res.AvailableQuantity() {
			shortages = append(shortages, Shortage{ResourceID: id, Requested: qty, Available: res.AvailableQuantity()})
		}
	}
	if len(shortages) > 0 {
		return newAllocationError(shortages)
	}

	for id, qty := range requests {
		rl.resources[id].AllocatedQuantity += qty
	}
	return nil
}

// Release decrements allocated quantities, floored at zero. Unknown ids are ignored.
func (rl *ResourceLedger) Release(requests map[string]int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.releaseLocked(requests)
}

func (rl *ResourceLedger) releaseLocked(requests map[string]int) {
	for id, qty := range requests {
		res, ok := rl.resources[id]
		if !ok || qty <= 0 {
			continue
		}
		res.AllocatedQuantity -= qty
		if res.AllocatedQuantity < 0 {
			res.AllocatedQuantity = 0
		}
	}
}

// Get returns a copy of a single resource record.
func (rl *ResourceLedger) Get(id string) (models.Resource, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	res, ok := rl.resources[id]
	if !ok {
		return models.Resource{}, fmt.Errorf("%w: resource %s", ErrNotFound, id)
	}
	return *res, nil
}

// List returns copies of all resources ordered by id.
func (rl *ResourceLedger) List() []models.Resource {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	result := make([]models.Resource, 0, len(rl.resources))
	for _, res := range rl.resources {
		result = append(result, *res)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AvailableByType sums available quantity per resource type.
func (rl *ResourceLedger) AvailableByType() map[string]int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.availableByTypeLocked()
}

func (rl *ResourceLedger) availableByTypeLocked() map[string]int {
	byType := make(map[string]int)
	for _, res := range rl.resources {
		byType[res.Type] = addClamped(byType[res.Type], res.AvailableQuantity())
	}
	return byType
}

// addClamped adds two non-negative ints, saturating at math.MaxInt.
func addClamped(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func validateRequests(requests map[string]int) error {
	for id, qty := range requests {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: resource id is required", ErrInvalidArgument)
		}
		if qty <= 0 {
			return fmt.Errorf("%w: quantity for resource %s must be positive, got %d", ErrInvalidArgument, id, qty)
		}
	}
	return nil
}
