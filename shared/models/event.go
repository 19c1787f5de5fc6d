// shared/models/event.go
package models

import "time"

// Operation lifecycle event kinds published to collaborators.
const (
	EventOperationDeployed  = "operation.deployed"
	EventOperationAllocated = "operation.allocated"
	EventOperationReleased  = "operation.released"
	EventOperationCompleted = "operation.completed"
)

// OperationEvent is a lifecycle notification for a single operation.
type OperationEvent struct {
	Kind        string         `json:"kind"`
	OperationID string         `json:"operationId"`
	DisasterID  string         `json:"disasterId"`
	TeamID      string         `json:"teamId"`
	Resources   map[string]int `json:"resources,omitempty"`
	At          time.Time      `json:"at"`
}
