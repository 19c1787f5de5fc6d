// coordinator/engine/centers.go
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// CenterRegistry tracks evacuation centers. Invariant: 0 <= occupancy <= capacity,
// and the summed capacity of all centers fits in an int.
type CenterRegistry struct {
	mu            sync.RWMutex
	centers       map[string]*models.EvacuationCenter
	totalCapacity int
}

// NewCenterRegistry creates an empty CenterRegistry.
func NewCenterRegistry() *CenterRegistry {
	return &CenterRegistry{centers: make(map[string]*models.EvacuationCenter)}
}

// Register adds a center with zero occupancy. Capacity cannot change afterwards.
func (cr *CenterRegistry) Register(id, name string, location models.Coordinate, capacity int, facilities []string) (models.EvacuationCenter, error) {
	if strings.TrimSpace(id) == "" {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center id is required", ErrInvalidArgument)
	}
	if capacity < 0 {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center %s capacity %d is negative", ErrInvalidArgument, id, capacity)
	}
	if !location.Valid() {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center %s location %v out of range", ErrInvalidArgument, id, location)
	}

	center := models.EvacuationCenter{
		ID:         id,
		Name:       name,
		Location:   location,
		Capacity:   capacity,
		Facilities: facilities,
	}.Clone()

	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, ok := cr.centers[id]; ok {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center %s already registered", ErrConflict, id)
	}
	if capacity > math.MaxInt-cr.totalCapacity {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center %s capacity %d overflows total capacity %d", ErrInvalidArgument, id, capacity, cr.totalCapacity)
	}
	cr.centers[id] = &center
	cr.totalCapacity += capacity
	return center.Clone(), nil
}

// SetOccupancy replaces the current occupancy of a center.
func (cr *CenterRegistry) SetOccupancy(id string, occupancy int) error {
	if occupancy < 0 {
		return fmt.Errorf("%w: occupancy %d is negative", ErrInvalidArgument, occupancy)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()
	center, ok := cr.centers[id]
	if !ok {
		return fmt.Errorf("%w: center %s", ErrNotFound, id)
	}
	if occupancy > center.Capacity {
		return fmt.Errorf("%w: center %s occupancy %d exceeds capacity %d", ErrCapacityExceeded, id, occupancy, center.Capacity)
	}
	center.CurrentOccupancy = occupancy
	return nil
}

// Nearby returns the centers within maxDistanceKm of point, nearest first.
func (cr *CenterRegistry) Nearby(point models.Coordinate, maxDistanceKm float64) ([]models.NearbyCenter, error) {
	if !point.Valid() {
		return nil, fmt.Errorf("%w: location %v out of range", ErrInvalidArgument, point)
	}
	if maxDistanceKm < 0 || math.IsNaN(maxDistanceKm) {
		return nil, fmt.Errorf("%w: max distance %v", ErrInvalidArgument, maxDistanceKm)
	}

	cr.mu.RLock()
	result := make([]models.NearbyCenter, 0, len(cr.centers))
	for _, center := range cr.centers {
		d := HaversineKm(point, center.Location)
		if d <= maxDistanceKm {
			result = append(result, models.NearbyCenter{EvacuationCenter: center.Clone(), DistanceKm: d})
		}
	}
	cr.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceKm != result[j].DistanceKm {
			return result[i].DistanceKm < result[j].DistanceKm
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Get returns a copy of a single center.
func (cr *CenterRegistry) Get(id string) (models.EvacuationCenter, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	center, ok := cr.centers[id]
	if !ok {
		return models.EvacuationCenter{}, fmt.Errorf("%w: center %s", ErrNotFound, id)
	}
	return center.Clone(), nil
}

// List returns copies of all centers ordered by id.
func (cr *CenterRegistry) List() []models.EvacuationCenter {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	result := make([]models.EvacuationCenter, 0, len(cr.centers))
	for _, center := range cr.centers {
		result = append(result, center.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Occupancy never exceeds capacity, so its sum is bounded by totalCapacity.
func (cr *CenterRegistry) totalsLocked() (count, capacity, occupancy int) {
	for _, center := range cr.centers {
		occupancy += center.CurrentOccupancy
	}
	return len(cr.centers), cr.totalCapacity, occupancy
}
