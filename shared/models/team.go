// shared/models/team.go
package models

// Common team type tags. Any free-text tag is accepted.
const (
	TeamTypeMedical = "MEDICAL"
	TeamTypeRescue  = "RESCUE"
	TeamTypeFire    = "FIRE"
)

// TeamStatus reports which collection of the team registry a team lives in.
type TeamStatus string

const (
	TeamAvailable TeamStatus = "AVAILABLE"
	TeamDeployed  TeamStatus = "DEPLOYED"
)

// Team is an emergency response unit.
type Team struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"name" json:"name"`
	Type         string   `bson:"type" json:"type"`
	Members      int      `bson:"members" json:"members"`
	Capabilities []string `bson:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Team) Clone() Team {
	t.Capabilities = append([]string(nil), t.Capabilities...)
	return t
}
