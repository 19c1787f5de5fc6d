// coordinator/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/service"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 100

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// CoordinatorAPIHandlers holds references to the services that handle business logic.
type CoordinatorAPIHandlers struct {
	Service        *service.CoordinatorService
	HealthChecks   map[string]HealthCheck
	RequestTimeout time.Duration
}

// NewCoordinatorAPIHandlers is the constructor for the coordinator API handlers.
func NewCoordinatorAPIHandlers(svc *service.CoordinatorService, checks map[string]HealthCheck, requestTimeout time.Duration) *CoordinatorAPIHandlers {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	return &CoordinatorAPIHandlers{
		Service:        svc,
		HealthChecks:   checks,
		RequestTimeout: requestTimeout,
	}
}

// --- Request/Response DTOs ---

type RegisterTeamRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Members      int      `json:"members"`
	Capabilities []string `json:"capabilities"`
}

type TeamResponse struct {
	models.Team
	Status models.TeamStatus `json:"status"`
}

type AddResourceRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

type ResourceResponse struct {
	models.Resource
	AvailableQuantity int `json:"availableQuantity"`
}

type ResourceQuantitiesRequest struct {
	Resources map[string]int `json:"resources"`
}

type RegisterCenterRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Location   models.Coordinate `json:"location"`
	Capacity   int               `json:"capacity"`
	Facilities []string          `json:"facilities"`
}

type UpdateOccupancyRequest struct {
	Occupancy *int `json:"occupancy"`
}

type DeployTeamRequest struct {
	TeamID         string            `json:"teamId"`
	DisasterID     string            `json:"disasterId"`
	Location       models.Coordinate `json:"location"`
	MissionDetails map[string]any    `json:"missionDetails"`
}

type CompleteOperationRequest struct {
	OperationReport map[string]any `json:"operationReport"`
}

type ElapsedResponse struct {
	OperationID    string                 `json:"operationId"`
	Status         models.OperationStatus `json:"status"`
	ElapsedSeconds float64                `json:"elapsedSeconds"`
	Elapsed        string                 `json:"elapsed"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// --- Teams ---

// RegisterTeamHandler registers a new team in the available pool.
// POST /teams
func (h *CoordinatorAPIHandlers) RegisterTeamHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, err := h.Service.RegisterTeam(req.ID, req.Name, req.Type, req.Members, req.Capabilities)
	if err != nil {
		writeServiceError(w, err, "register team")
		return
	}
	api.WriteJSON(w, http.StatusCreated, TeamResponse{Team: team, Status: models.TeamAvailable})
}

// GetTeamHandler returns a team and whether it is available or deployed.
// GET /teams/{id}
func (h *CoordinatorAPIHandlers) GetTeamHandler(w http.ResponseWriter, r *http.Request) {
	team, status, err := h.Service.GetTeam(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, "get team")
		return
	}
	api.WriteJSON(w, http.StatusOK, TeamResponse{Team: team, Status: status})
}

// ListAvailableTeamsHandler lists available teams, optionally of one type.
// GET /teams/available?type=
func (h *CoordinatorAPIHandlers) ListAvailableTeamsHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.Service.ListAvailableTeams(r.URL.Query().Get("type")))
}

// --- Resources ---

// AddResourceHandler adds a resource or tops up an existing one.
// POST /resources
func (h *CoordinatorAPIHandlers) AddResourceHandler(w http.ResponseWriter, r *http.Request) {
	var req AddResourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resource, err := h.Service.AddResource(req.ID, req.Name, req.Type, req.Quantity, req.Unit)
	if err != nil {
		writeServiceError(w, err, "add resource")
		return
	}
	api.WriteJSON(w, http.StatusCreated, toResourceResponse(resource))
}

// GetResourceHandler returns one resource.
// GET /resources/{id}
func (h *CoordinatorAPIHandlers) GetResourceHandler(w http.ResponseWriter, r *http.Request) {
	resource, err := h.Service.GetResource(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, "get resource")
		return
	}
	api.WriteJSON(w, http.StatusOK, toResourceResponse(resource))
}

// ListResourcesHandler lists all resources.
// GET /resources
func (h *CoordinatorAPIHandlers) ListResourcesHandler(w http.ResponseWriter, r *http.Request) {
	resources := h.Service.ListResources()
	resp := make([]ResourceResponse, 0, len(resources))
	for _, resource := range resources {
		resp = append(resp, toResourceResponse(resource))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// ReleaseResourcesHandler returns quantities not held by any active operation to the ledger.
// POST /resources/release
func (h *CoordinatorAPIHandlers) ReleaseResourcesHandler(w http.ResponseWriter, r *http.Request) {
	var req ResourceQuantitiesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.ReleaseToLedger(req.Resources); err != nil {
		writeServiceError(w, err, "release resources")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResourceResponse(resource models.Resource) ResourceResponse {
	return ResourceResponse{Resource: resource, AvailableQuantity: resource.AvailableQuantity()}
}

// --- Evacuation centers ---

// RegisterCenterHandler registers an evacuation center with zero occupancy.
// POST /centers
func (h *CoordinatorAPIHandlers) RegisterCenterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterCenterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	center, err := h.Service.RegisterCenter(req.ID, req.Name, req.Location, req.Capacity, req.Facilities)
	if err != nil {
		writeServiceError(w, err, "register center")
		return
	}
	api.WriteJSON(w, http.StatusCreated, center)
}

// GetCenterHandler returns one center.
// GET /centers/{id}
func (h *CoordinatorAPIHandlers) GetCenterHandler(w http.ResponseWriter, r *http.Request) {
	center, err := h.Service.GetCenter(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, "get center")
		return
	}
	api.WriteJSON(w, http.StatusOK, center)
}

// ListCentersHandler lists all centers.
// GET /centers
func (h *CoordinatorAPIHandlers) ListCentersHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.Service.ListCenters())
}

// UpdateOccupancyHandler replaces a center's current occupancy.
// PUT /centers/{id}/occupancy
func (h *CoordinatorAPIHandlers) UpdateOccupancyHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateOccupancyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Occupancy == nil {
		api.WriteBadRequest(w, "occupancy is required")
		return
	}
	center, err := h.Service.UpdateOccupancy(mux.Vars(r)["id"], *req.Occupancy)
	if err != nil {
		writeServiceError(w, err, "update occupancy")
		return
	}
	api.WriteJSON(w, http.StatusOK, center)
}

// NearbyCentersHandler lists centers within radius_km of a point, nearest first.
// GET /centers/nearby?lat=&lon=&radius_km=
func (h *CoordinatorAPIHandlers) NearbyCentersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	radius, radiusErr := strconv.ParseFloat(q.Get("radius_km"), 64)
	if latErr != nil || lonErr != nil || radiusErr != nil {
		api.WriteBadRequest(w, "lat, lon and radius_km must be numbers")
		return
	}

	centers, err := h.Service.FindNearbyCenters(models.Coordinate{Latitude: lat, Longitude: lon}, radius)
	if err != nil {
		writeServiceError(w, err, "find nearby centers")
		return
	}
	api.WriteJSON(w, http.StatusOK, centers)
}

// --- Operations ---

// DeployTeamHandler deploys an available team and opens an operation.
// POST /operations
func (h *CoordinatorAPIHandlers) DeployTeamHandler(w http.ResponseWriter, r *http.Request) {
	var req DeployTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, err := h.Service.DeployTeam(req.TeamID, req.DisasterID, req.Location, req.MissionDetails)
	if err != nil {
		writeServiceError(w, err, "deploy team")
		return
	}
	api.WriteJSON(w, http.StatusCreated, op)
}

// ListOperationsHandler lists active operations, optionally for one disaster.
// GET /operations?disaster_id=
func (h *CoordinatorAPIHandlers) ListOperationsHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.Service.ListActiveOperations(r.URL.Query().Get("disaster_id")))
}

// GetOperationHandler returns an operation from memory or the archive.
// GET /operations/{id}
func (h *CoordinatorAPIHandlers) GetOperationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.RequestTimeout)
	defer cancel()

	op, err := h.Service.GetOperation(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, "get operation")
		return
	}
	api.WriteJSON(w, http.StatusOK, op)
}

// AllocateResourcesHandler grants resources to an active operation, all or nothing.
// POST /operations/{id}/allocations
func (h *CoordinatorAPIHandlers) AllocateResourcesHandler(w http.ResponseWriter, r *http.Request) {
	var req ResourceQuantitiesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, err := h.Service.AllocateResources(mux.Vars(r)["id"], req.Resources)
	if err != nil {
		writeServiceError(w, err, "allocate resources")
		return
	}
	api.WriteJSON(w, http.StatusOK, op)
}

// ReleaseOperationResourcesHandler returns part of an operation's holdings.
// POST /operations/{id}/release
func (h *CoordinatorAPIHandlers) ReleaseOperationResourcesHandler(w http.ResponseWriter, r *http.Request) {
	var req ResourceQuantitiesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, err := h.Service.ReleaseOperationResources(mux.Vars(r)["id"], req.Resources)
	if err != nil {
		writeServiceError(w, err, "release operation resources")
		return
	}
	api.WriteJSON(w, http.StatusOK, op)
}

// CompleteOperationHandler completes an active operation. The body is optional.
// POST /operations/{id}/complete
func (h *CoordinatorAPIHandlers) CompleteOperationHandler(w http.ResponseWriter, r *http.Request) {
	var req CompleteOperationRequest
	// The report is optional; an empty body (chunked or not) means no report.
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	op, err := h.Service.CompleteOperation(mux.Vars(r)["id"], req.OperationReport)
	if err != nil {
		writeServiceError(w, err, "complete operation")
		return
	}
	api.WriteJSON(w, http.StatusOK, op)
}

// OperationElapsedHandler reports how long an operation has run.
// GET /operations/{id}/elapsed
func (h *CoordinatorAPIHandlers) OperationElapsedHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.RequestTimeout)
	defer cancel()

	op, elapsed, err := h.Service.OperationElapsed(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, "get operation elapsed time")
		return
	}
	api.WriteJSON(w, http.StatusOK, ElapsedResponse{
		OperationID:    op.ID,
		Status:         op.Status,
		ElapsedSeconds: elapsed.Seconds(),
		Elapsed:        elapsed.Round(time.Second).String(),
	})
}

// OperationHistoryHandler lists archived operations for a disaster.
// GET /disasters/{id}/operations/history?limit=
func (h *CoordinatorAPIHandlers) OperationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			api.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.RequestTimeout)
	defer cancel()

	ops, err := h.Service.OperationHistory(ctx, mux.Vars(r)["id"], limit)
	if err != nil {
		writeServiceError(w, err, "list operation history")
		return
	}
	api.WriteJSON(w, http.StatusOK, ops)
}

// --- Status ---

// StatusHandler returns the aggregate status report.
// GET /status
func (h *CoordinatorAPIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.Service.Status())
}

// InstancesHandler lists live coordinator instances.
// GET /instances
func (h *CoordinatorAPIHandlers) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.RequestTimeout)
	defer cancel()

	instances, err := h.Service.Instances(ctx)
	if err != nil {
		writeServiceError(w, err, "list instances")
		return
	}
	api.WriteJSON(w, http.StatusOK, instances)
}

// HealthHandler runs every dependency check.
// GET /healthz
func (h *CoordinatorAPIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.RequestTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.HealthChecks))}
	status := http.StatusOK
	for name, check := range h.HealthChecks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	api.WriteJSON(w, status, resp)
}

// RegisterRoutes registers all API endpoints for the coordinator service.
func (h *CoordinatorAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.RegisterTeamHandler).Methods("POST")
	router.HandleFunc("/teams/available", h.ListAvailableTeamsHandler).Methods("GET")
	router.HandleFunc("/teams/{id}", h.GetTeamHandler).Methods("GET")

	router.HandleFunc("/resources", h.AddResourceHandler).Methods("POST")
	router.HandleFunc("/resources", h.ListResourcesHandler).Methods("GET")
	router.HandleFunc("/resources/release", h.ReleaseResourcesHandler).Methods("POST")
	router.HandleFunc("/resources/{id}", h.GetResourceHandler).Methods("GET")

	router.HandleFunc("/centers", h.RegisterCenterHandler).Methods("POST")
	router.HandleFunc("/centers", h.ListCentersHandler).Methods("GET")
	router.HandleFunc("/centers/nearby", h.NearbyCentersHandler).Methods("GET")
	router.HandleFunc("/centers/{id}", h.GetCenterHandler).Methods("GET")
	router.HandleFunc("/centers/{id}/occupancy", h.UpdateOccupancyHandler).Methods("PUT")

	router.HandleFunc("/operations", h.DeployTeamHandler).Methods("POST")
	router.HandleFunc("/operations", h.ListOperationsHandler).Methods("GET")
	router.HandleFunc("/operations/{id}", h.GetOperationHandler).Methods("GET")
	router.HandleFunc("/operations/{id}/allocations", h.AllocateResourcesHandler).Methods("POST")
	router.HandleFunc("/operations/{id}/release", h.ReleaseOperationResourcesHandler).Methods("POST")
	router.HandleFunc("/operations/{id}/complete", h.CompleteOperationHandler).Methods("POST")
	router.HandleFunc("/operations/{id}/elapsed", h.OperationElapsedHandler).Methods("GET")
	router.HandleFunc("/disasters/{id}/operations/history", h.OperationHistoryHandler).Methods("GET")

	router.HandleFunc("/status", h.StatusHandler).Methods("GET")
	router.HandleFunc("/instances", h.InstancesHandler).Methods("GET")
	router.HandleFunc("/healthz", h.HealthHandler).Methods("GET")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody that accepts an empty body, leaving dst untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps engine and service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	var allocErr *engine.AllocationError
	switch {
	case errors.As(err, &allocErr):
		api.WriteErrorDetails(w, http.StatusUnprocessableEntity, err.Error(), allocErr.Shortages)
	case errors.Is(err, engine.ErrInvalidArgument):
		api.WriteBadRequest(w, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		api.WriteNotFound(w, err.Error())
	case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrInvalidState):
		api.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrCapacityExceeded), errors.Is(err, engine.ErrInsufficientResource):
		api.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrArchiveUnavailable), errors.Is(err, service.ErrDiscoveryUnavailable):
		api.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		api.WriteError(w, http.StatusGatewayTimeout, fmt.Sprintf("Timed out trying to %s", action))
	default:
		log.Printf("ERROR: Failed to %s: %v", action, err)
		api.WriteInternalServerError(w, fmt.Sprintf("Failed to %s", action))
	}
}
