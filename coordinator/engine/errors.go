// coordinator/engine/errors.go
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy. Every engine failure wraps exactly one of these (an allocation
// failure may also wrap ErrNotFound) and leaves engine state unchanged.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// Shortage describes one entry of a rejected allocation request.
type Shortage struct {
	ResourceID string `json:"resourceId"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Unknown    bool   `json:"unknown,omitempty"`
}

// AllocationError is returned by TryAllocate when one or more entries cannot be satisfied.
type AllocationError struct {
	Shortages []Shortage
}

func (e *AllocationError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		if s.Unknown {
			parts = append(parts, fmt.Sprintf("%s (unknown resource)", s.ResourceID))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.ResourceID, s.Requested, s.Available))
	}
	return "insufficient resources: " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match ErrInsufficientResource always, and ErrNotFound when an id was unknown.
func (e *AllocationError) Unwrap() []error {
	errs := []error{ErrInsufficientResource}
	for _, s := range e.Shortages {
		if s.Unknown {
			errs = append(errs, ErrNotFound)
			break
		}
	}
	return errs
}

func newAllocationError(shortages []Shortage) *AllocationError {
	sort.Slice(shortages, func(i, j int) bool { return shortages[i].ResourceID < shortages[j].ResourceID })
	return &AllocationError{Shortages: shortages}
}
