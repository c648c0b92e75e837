package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/security/middleware"
	"github.com/yourorg/rentnest/internal/service"
)

// PropertyHandler handles property listing CRUD
type PropertyHandler struct {
	propertyService *service.PropertyService
	logger          *slog.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(propertyService *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{
		propertyService: propertyService,
		logger:          logger,
	}
}

// PropertyRequest carries the owner-editable fields of a listing
type PropertyRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PropertyType    string   `json:"propertyType"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	PostalCode      string   `json:"postalCode"`
	MonthlyRent     int64    `json:"monthlyRent"`
	SecurityDeposit int64    `json:"securityDeposit"`
	Bedrooms        int      `json:"bedrooms"`
	Bathrooms       int      `json:"bathrooms"`
	AreaSqft        int      `json:"areaSqft"`
	Amenities       []string `json:"amenities,omitempty"`
}

// PropertyResponse is the wire form of a listing
type PropertyResponse struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	PropertyType    string     `json:"propertyType"`
	Address         string     `json:"address"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	PostalCode      string     `json:"postalCode"`
	MonthlyRent     int64      `json:"monthlyRent"`
	SecurityDeposit int64      `json:"securityDeposit"`
	Bedrooms        int        `json:"bedrooms"`
	Bathrooms       int        `json:"bathrooms"`
	AreaSqft        int        `json:"areaSqft"`
	Amenities       []string   `json:"amenities"`
	IsAvailable     bool       `json:"isAvailable"`
	RentedDate      *time.Time `json:"rentedDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toPropertyResponse(p *domain.Property) PropertyResponse {
	return PropertyResponse{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Title:           p.Title,
		Description:     p.Description,
		PropertyType:    p.PropertyType,
		Address:         p.Address,
		City:            p.City,
		State:           p.State,
		PostalCode:      p.PostalCode,
		MonthlyRent:     p.MonthlyRent,
		SecurityDeposit: p.SecurityDeposit,
		Bedrooms:        p.Bedrooms,
		Bathrooms:       p.Bathrooms,
		AreaSqft:        p.AreaSqft,
		Amenities:       p.Amenities,
		IsAvailable:     p.IsAvailable,
		RentedDate:      p.RentedDate,
		CreatedAt:       p.CreatedAt,
	}
}

func toPropertyResponses(props []*domain.Property) []PropertyResponse {
	out := make([]PropertyResponse, 0, len(props))
	for _, p := range props {
		out = append(out, toPropertyResponse(p))
	}
	return out
}

func (in PropertyRequest) toInput() service.PropertyInput {
	return service.PropertyInput{
		Title:           in.Title,
		Description:     in.Description,
		PropertyType:    in.PropertyType,
		Address:         in.Address,
		City:            in.City,
		State:           in.State,
		PostalCode:      in.PostalCode,
		MonthlyRent:     in.MonthlyRent,
		SecurityDeposit: in.SecurityDeposit,
		Bedrooms:        in.Bedrooms,
		Bathrooms:       in.Bathrooms,
		AreaSqft:        in.AreaSqft,
		Amenities:       in.Amenities,
	}
}

// Create handles POST /api/properties
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	var req PropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	property, err := h.propertyService.Create(r.Context(), actor, req.toInput())
	if err != nil {
		if domain.IsDomain(err) {
			writeError(w, h.logger, err)
		} else {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toPropertyResponse(property))
}

// List handles GET /api/properties with optional city, maxRent and
// available filters
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.PropertyFilter{
		City: r.URL.Query().Get("city"),
	}
	if raw := r.URL.Query().Get("maxRent"); raw != "" {
		maxRent, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxRent < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid maxRent"})
			return
		}
		filter.MaxRent = maxRent
	}
	if raw := r.URL.Query().Get("available"); raw != "" {
		filter.AvailableOnly = raw == "true"
	}

	properties, err := h.propertyService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toPropertyResponses(properties))
}

// ListMine handles GET /api/my/properties
func (h *PropertyHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	properties, err := h.propertyService.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toPropertyResponses(properties))
}

// Get handles GET /api/properties/{id}
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	property, err := h.propertyService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toPropertyResponse(property))
}

// Update handles PUT /api/properties/{id}
func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	var req PropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	property, err := h.propertyService.Update(r.Context(), actor, r.PathValue("id"), req.toInput())
	if err != nil {
		if domain.IsDomain(err) {
			writeError(w, h.logger, err)
		} else {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, toPropertyResponse(property))
}

// Delete handles DELETE /api/properties/{id}
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing auth"})
		return
	}

	if err := h.propertyService.Archive(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
