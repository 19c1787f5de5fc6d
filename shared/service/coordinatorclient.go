// shared/service/coordinatorclient.go
package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// CoordinatorServiceClient is a client for the coordinator service.
type CoordinatorServiceClient struct {
	apiClient *api.Client
}

// NewCoordinatorClient creates a new coordinator service client.
func NewCoordinatorClient(baseURL string) *CoordinatorServiceClient {
	return &CoordinatorServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

// TeamRegistration is the payload for registering a team.
type TeamRegistration struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Members      int      `json:"members"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// TeamView is a team with its current pool.
type TeamView struct {
	models.Team
	Status models.TeamStatus `json:"status"`
}

// ResourceView is a resource with its unallocated quantity.
type ResourceView struct {
	models.Resource
	AvailableQuantity int `json:"availableQuantity"`
}

// CenterRegistration is the payload for registering an evacuation center.
type CenterRegistration struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Location   models.Coordinate `json:"location"`
	Capacity   int               `json:"capacity"`
	Facilities []string          `json:"facilities,omitempty"`
}

// Deployment is the payload for deploying a team.
type Deployment struct {
	TeamID         string            `json:"teamId"`
	DisasterID     string            `json:"disasterId"`
	Location       models.Coordinate `json:"location"`
	MissionDetails map[string]any    `json:"missionDetails,omitempty"`
}

// Elapsed is the running time of an operation.
type Elapsed struct {
	OperationID    string                 `json:"operationId"`
	Status         models.OperationStatus `json:"status"`
	ElapsedSeconds float64                `json:"elapsedSeconds"`
}

// Duration converts ElapsedSeconds to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.ElapsedSeconds * float64(time.Second))
}

type addResourceRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

type quantitiesRequest struct {
	Resources map[string]int `json:"resources"`
}

type occupancyRequest struct {
	Occupancy int `json:"occupancy"`
}

type completeRequest struct {
	OperationReport map[string]any `json:"operationReport,omitempty"`
}

// --- Teams ---

func (c *CoordinatorServiceClient) RegisterTeam(ctx context.Context, team TeamRegistration) (*TeamView, error) {
	var resp TeamView
	if err := c.apiClient.Post(ctx, "/teams", team, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) GetTeam(ctx context.Context, teamID string) (*TeamView, error) {
	var resp TeamView
	if err := c.apiClient.Get(ctx, "/teams/"+url.PathEscape(teamID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAvailableTeams lists available teams; an empty teamType lists every type.
func (c *CoordinatorServiceClient) ListAvailableTeams(ctx context.Context, teamType string) ([]models.Team, error) {
	path := "/teams/available"
	if teamType != "" {
		path += "?" + url.Values{"type": {teamType}}.Encode()
	}
	var resp []models.Team
	if err := c.apiClient.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Resources ---

// AddResource adds a resource or tops up an existing one.
func (c *CoordinatorServiceClient) AddResource(ctx context.Context, id, name, resourceType string, quantity int, unit string) (*ResourceView, error) {
	req := addResourceRequest{ID: id, Name: name, Type: resourceType, Quantity: quantity, Unit: unit}
	var resp ResourceView
	if err := c.apiClient.Post(ctx, "/resources", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) GetResource(ctx context.Context, resourceID string) (*ResourceView, error) {
	var resp ResourceView
	if err := c.apiClient.Get(ctx, "/resources/"+url.PathEscape(resourceID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) ListResources(ctx context.Context) ([]ResourceView, error) {
	var resp []ResourceView
	if err := c.apiClient.Get(ctx, "/resources", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReleaseResources returns stock no active operation holds to the ledger.
func (c *CoordinatorServiceClient) ReleaseResources(ctx context.Context, quantities map[string]int) error {
	return c.apiClient.Post(ctx, "/resources/release", quantitiesRequest{Resources: quantities}, nil)
}

// --- Evacuation centers ---

func (c *CoordinatorServiceClient) RegisterCenter(ctx context.Context, center CenterRegistration) (*models.EvacuationCenter, error) {
	var resp models.EvacuationCenter
	if err := c.apiClient.Post(ctx, "/centers", center, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) UpdateOccupancy(ctx context.Context, centerID string, occupancy int) (*models.EvacuationCenter, error) {
	var resp models.EvacuationCenter
	path := fmt.Sprintf("/centers/%s/occupancy", url.PathEscape(centerID))
	if err := c.apiClient.Put(ctx, path, occupancyRequest{Occupancy: occupancy}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NearbyCenters lists centers within radiusKm of point, nearest first.
func (c *CoordinatorServiceClient) NearbyCenters(ctx context.Context, point models.Coordinate, radiusKm float64) ([]models.NearbyCenter, error) {
	query := url.Values{
		"lat":       {strconv.FormatFloat(point.Latitude, 'f', -1, 64)},
		"lon":       {strconv.FormatFloat(point.Longitude, 'f', -1, 64)},
		"radius_km": {strconv.FormatFloat(radiusKm, 'f', -1, 64)},
	}
	var resp []models.NearbyCenter
	if err := c.apiClient.Get(ctx, "/centers/nearby?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Operations ---

func (c *CoordinatorServiceClient) DeployTeam(ctx context.Context, deployment Deployment) (*models.Operation, error) {
	var resp models.Operation
	if err := c.apiClient.Post(ctx, "/operations", deployment, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) GetOperation(ctx context.Context, operationID string) (*models.Operation, error) {
	var resp models.Operation
	if err := c.apiClient.Get(ctx, "/operations/"+url.PathEscape(operationID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOperations lists active operations; an empty disasterID lists all of them.
func (c *CoordinatorServiceClient) ListOperations(ctx context.Context, disasterID string) ([]models.Operation, error) {
	path := "/operations"
	if disasterID != "" {
		path += "?" + url.Values{"disaster_id": {disasterID}}.Encode()
	}
	var resp []models.Operation
	if err := c.apiClient.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AllocateResources grants resources to an operation, all or nothing. A shortage surfaces as api.ErrUnprocessable.
func (c *CoordinatorServiceClient) AllocateResources(ctx context.Context, operationID string, quantities map[string]int) (*models.Operation, error) {
	return c.operationAction(ctx, operationID, "allocations", quantitiesRequest{Resources: quantities})
}

func (c *CoordinatorServiceClient) ReleaseOperationResources(ctx context.Context, operationID string, quantities map[string]int) (*models.Operation, error) {
	return c.operationAction(ctx, operationID, "release", quantitiesRequest{Resources: quantities})
}

func (c *CoordinatorServiceClient) CompleteOperation(ctx context.Context, operationID string, report map[string]any) (*models.Operation, error) {
	return c.operationAction(ctx, operationID, "complete", completeRequest{OperationReport: report})
}

func (c *CoordinatorServiceClient) OperationElapsed(ctx context.Context, operationID string) (*Elapsed, error) {
	var resp Elapsed
	path := fmt.Sprintf("/operations/%s/elapsed", url.PathEscape(operationID))
	if err := c.apiClient.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CoordinatorServiceClient) operationAction(ctx context.Context, operationID, action string, body any) (*models.Operation, error) {
	var resp models.Operation
	path := fmt.Sprintf("/operations/%s/%s", url.PathEscape(operationID), action)
	if err := c.apiClient.Post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Status ---

func (c *CoordinatorServiceClient) Status(ctx context.Context) (*models.StatusReport, error) {
	var resp models.StatusReport
	if err := c.apiClient.Get(ctx, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
