// coordinator/engine/teams.go
package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// TeamRegistry tracks response teams. A registered team is always in exactly one
// of the available or deployed collections.
type TeamRegistry struct {
	mu        sync.RWMutex
	available map[string]models.Team
	deployed  map[string]models.Team
}

// NewTeamRegistry creates an empty TeamRegistry.
func NewTeamRegistry() *TeamRegistry {
	return &TeamRegistry{
		available: make(map[string]models.Team),
		deployed:  make(map[string]models.Team),
	}
}

// RegisterTeam adds a new team to the available collection.
func (tr *TeamRegistry) RegisterTeam(id, name, teamType string, members int, capabilities []string) (models.Team, error) {
	if strings.TrimSpace(id) == "" {
		return models.Team{}, fmt.Errorf("%w: team id is required", ErrInvalidArgument)
	}
	if members < 0 {
		return models.Team{}, fmt.Errorf("%w: team %s member count %d is negative", ErrInvalidArgument, id, members)
	}

	team := models.Team{
		ID:           id,
		Name:         name,
		Type:         teamType,
		Members:      members,
		Capabilities: capabilities,
	}.Clone()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.knownLocked(id) {
		return models.Team{}, fmt.Errorf("%w: team %s already registered", ErrConflict, id)
	}
	tr.available[id] = team
	return team.Clone(), nil
}

// Deploy moves a team from available to deployed and hands it to the caller.
func (tr *TeamRegistry) Deploy(id string) (models.Team, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.deployLocked(id)
}

func (tr *TeamRegistry) deployLocked(id string) (models.Team, error) {
	team, ok := tr.available[id]
	if !ok {
		if _, deployed := tr.deployed[id]; deployed {
			return models.Team{}, fmt.Errorf("%w: team %s is already deployed", ErrConflict, id)
		}
		return models.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	delete(tr.available, id)
	tr.deployed[id] = team
	return team.Clone(), nil
}

// Release returns a deployed team to the available collection.
func (tr *TeamRegistry) Release(team models.Team) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.releaseLocked(team.ID)
}

func (tr *TeamRegistry) releaseLocked(id string) error {
	if _, ok := tr.available[id]; ok {
		return fmt.Errorf("%w: team %s is already available", ErrConflict, id)
	}
	team, ok := tr.deployed[id]
	if !ok {
		return fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	delete(tr.deployed, id)
	tr.available[id] = team
	return nil
}

// ListAvailable returns the available teams, optionally filtered by type.
// An empty teamType matches every team. Results are ordered by id.
func (tr *TeamRegistry) ListAvailable(teamType string) []models.Team {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	result := make([]models.Team, 0, len(tr.available))
	for _, team := range tr.available {
		if teamType == "" || team.Type == teamType {
			result = append(result, team.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a team and the collection it currently lives in.
func (tr *TeamRegistry) Get(id string) (models.Team, models.TeamStatus, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	if team, ok := tr.available[id]; ok {
		return team.Clone(), models.TeamAvailable, nil
	}
	if team, ok := tr.deployed[id]; ok {
		return team.Clone(), models.TeamDeployed, nil
	}
	return models.Team{}, "", fmt.Errorf("%w: team %s", ErrNotFound, id)
}

// Counts returns the number of available and deployed teams.
func (tr *TeamRegistry) Counts() (available, deployed int) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.available), len(tr.deployed)
}

func (tr *TeamRegistry) knownLocked(id string) bool {
	_, inAvailable := tr.available[id]
	_, inDeployed := tr.deployed[id]
	return inAvailable || inDeployed
}
