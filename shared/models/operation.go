// shared/models/operation.go
package models

import (
	"maps"
	"time"
)

// OperationStatus is the lifecycle state of an operation. Active -> Completed only.
type OperationStatus string

const (
	OperationActive    OperationStatus = "ACTIVE"
	OperationCompleted OperationStatus = "COMPLETED"
)

// Operation is a disaster response mission owning one team and a set of resource allocations.
type Operation struct {
	ID                 string          `bson:"_id" json:"id"`
	DisasterID         string          `bson:"disaster_id" json:"disasterId"`
	Team               Team            `bson:"team" json:"team"`
	Location           Coordinate      `bson:"location" json:"location"`
	MissionDetails     map[string]any  `bson:"mission_details,omitempty" json:"missionDetails,omitempty"`
	Status             OperationStatus `bson:"status" json:"status"`
	StartTime          time.Time       `bson:"start_time" json:"startTime"`
	CompletionTime     *time.Time      `bson:"completion_time,omitempty" json:"completionTime,omitempty"`
	OperationReport    map[string]any  `bson:"operation_report,omitempty" json:"operationReport,omitempty"`
	AllocatedResources map[string]int  `bson:"allocated_resources" json:"allocatedResources"`
}

// Duration is completion minus start for completed operations, now minus start otherwise.
func (o Operation) Duration(now time.Time) time.Duration {
	if o.CompletionTime != nil {
		return o.CompletionTime.Sub(o.StartTime)
	}
	return now.Sub(o.StartTime)
}

// Clone returns a deep enough copy for callers outside the engine: maps and slices are not shared.
func (o Operation) Clone() Operation {
	o.Team = o.Team.Clone()
	o.MissionDetails = maps.Clone(o.MissionDetails)
	o.OperationReport = maps.Clone(o.OperationReport)
	o.AllocatedResources = maps.Clone(o.AllocatedResources)
	if o.AllocatedResources == nil {
		o.AllocatedResources = map[string]int{}
	}
	if o.CompletionTime != nil {
		t := *o.CompletionTime
		o.CompletionTime = &t
	}
	return o
}
