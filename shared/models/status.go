// shared/models/status.go
package models

import "time"

// StatusReport is a point-in-time aggregate over teams, operations, centers and resources.
type StatusReport struct {
	TotalTeams                    int            `json:"totalTeams"`
	AvailableTeams                int            `json:"availableTeams"`
	DeployedTeams                 int            `json:"deployedTeams"`
	ActiveOperations              int            `json:"activeOperations"`
	EvacuationCenters             int            `json:"evacuationCenters"`
	TotalEvacuationCapacity       int            `json:"totalEvacuationCapacity"`
	CurrentEvacuationOccupancy    int            `json:"currentEvacuationOccupancy"`
	EvacuationCapacityUsedPercent float64        `json:"evacuationCapacityUsedPercent"`
	ResourcesByType               map[string]int `json:"resourcesByType"`
	GeneratedAt                   time.Time      `json:"generatedAt"`
}
