package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/security/middleware"
	"github.com/yourorg/rentnest/internal/service"
)

// ApplicationHandler handles the application lifecycle endpoints
type ApplicationHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(applicationService *service.ApplicationService, logger *slog.Logger) *ApplicationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ApplyRequest carries a tenant's application for a property
type ApplyRequest struct {
	PropertyID string            `json:"propertyId"`
	Message    string            `json:"message,omitempty"`
	Documents  []domain.Document `json:"documents,omitempty"`
	TenantInfo domain.TenantInfo `json:"tenantInfo,omitempty"`
}

// DecisionRequest carries an owner's decision on an application
type DecisionRequest struct {
	Status        string `json:"status"`
	OwnerResponse string `json:"ownerResponse,omitempty"`
}

// ApplicationResponse is the wire form of an application
type ApplicationResponse struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenantId"`
	PropertyID      string            `json:"propertyId"`
	OwnerID         string            `json:"ownerId"`
	Status          string            `json:"status"`
	Message         string            `json:"message,omitempty"`
	OwnerResponse   *string           `json:"ownerResponse,omitempty"`
	ApplicationDate time.Time         `json:"applicationDate"`
	DecisionDate    *time.Time        `json:"decisionDate,omitempty"`
	AutoRejected    bool              `json:"autoRejected"`
	Documents       []domain.Document `json:"documents,omitempty"`
	TenantInfo      domain.TenantInfo `json:"tenantInfo,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func toApplicationResponse(a *domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:              a.ID,
		TenantID:        a.TenantID,
		PropertyID:      a.PropertyID,
		OwnerID:         a.OwnerID,
		Status:          string(a.Status),
		Message:         a.Message,
		OwnerResponse:   a.OwnerResponse,
		ApplicationDate: a.ApplicationDate,
		DecisionDate:    a.DecisionDate,
		AutoRejected:    a.AutoRejected,
		Documents:       a.Documents,
		TenantInfo:      a.TenantInfo,
		CreatedAt:       a.CreatedAt,
	}
}

func toApplicationResponses(apps []*domain.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, toApplicationResponse(a))
	}
	return out
}

// statusFilter parses the optional ?status= query parameter.
func statusFilter(r *http.Request) (domain.ApplicationFilter, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return domain.ApplicationFilter{}, true
	}
	status := domain.Status(raw)
	if !status.Valid() {
		return domain.ApplicationFilter{}, false
	}
	return domain.ApplicationFilter{Status: status}, true
}

// Create handles POST /api/applications
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}
	if req.PropertyID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "propertyId is required"})
		return
	}

	app, err := h.applicationService.Create(r.Context(), actor, service.CreateApplicationInput{
		PropertyID: req.PropertyID,
		Message:    req.Message,
		Documents:  req.Documents,
		TenantInfo: req.TenantInfo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// ListMine handles GET /api/applications/my
func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	filter, ok := statusFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
		return
	}

	apps, err := h.applicationService.ListMine(r.Context(), actor, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// ListReceived handles GET /api/applications/received
func (h *ApplicationHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	filter, ok := statusFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
		return
	}

	apps, err := h.applicationService.ListReceived(r.Context(), actor, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// Stats handles GET /api/applications/stats
func (h *ApplicationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	stats, err := h.applicationService.StatsFor(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Get handles GET /api/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	app, err := h.applicationService.GetByID(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// Decide handles PUT /api/applications/{id} - the owner approves or rejects
func (h *ApplicationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	id := r.PathValue("id")
	var app *domain.Application
	var err error
	switch domain.Status(req.Status) {
	case domain.StatusApproved:
		app, err = h.applicationService.Approve(r.Context(), actor, id, req.OwnerResponse)
	case domain.StatusRejected:
		app, err = h.applicationService.Reject(r.Context(), actor, id, req.OwnerResponse)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status must be approved or rejected"})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// Withdraw handles PUT /api/applications/{id}/withdraw
func (h *ApplicationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	app, err := h.applicationService.Withdraw(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// ListByProperty handles GET /api/properties/{id}/applications
func (h *ApplicationHandler) ListByProperty(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	filter, ok := statusFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
		return
	}

	apps, err := h.applicationService.ListByProperty(r.Context(), actor, r.PathValue("id"), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}
