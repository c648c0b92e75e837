package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/infrastructure/redis"
)

const propertyCacheTTL = 30 * time.Second

// PropertyService handles owner CRUD on properties and public listings.
// Availability and tenancy are allocation-owned: owner edits never touch
// them here.
type PropertyService struct {
	properties domain.PropertyRepository
	cache      *redis.Client
	logger     *slog.Logger
}

// NewPropertyService creates a new property service. cache may be nil, in
// which case reads always hit the store.
func NewPropertyService(properties domain.PropertyRepository, cache *redis.Client, logger *slog.Logger) *PropertyService {
	if logger == nil {
		logger = slog.Default()
	}

	return &PropertyService{
		properties: properties,
		cache:      cache,
		logger:     logger,
	}
}

// PropertyInput carries the owner-editable descriptive fields
type PropertyInput struct {
	Title           string
	Description     string
	PropertyType    string
	Address         string
	City            string
	State           string
	PostalCode      string
	MonthlyRent     int64
	SecurityDeposit int64
	Bedrooms        int
	Bathrooms       int
	AreaSqft        int
	Amenities       []string
}

// Create publishes a new property for the acting owner
func (s *PropertyService) Create(ctx context.Context, actor domain.Actor, in PropertyInput) (*domain.Property, error) {
	if actor.Role != domain.RoleOwner {
		return nil, domain.Forbiddenf("only owners can publish properties")
	}

	p := &domain.Property{
		OwnerID:         actor.ID,
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

	if err := s.properties.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a property by id, read-through cached
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, propertyCacheKey(id)); err == nil {
			var p domain.Property
			if err := json.Unmarshal([]byte(data), &p); err == nil {
				return &p, nil
			}
		}
	}

	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheProperty(ctx, p)
	return p, nil
}

// List returns active properties matching the filter
func (s *PropertyService) List(ctx context.Context, filter domain.PropertyFilter) ([]*domain.Property, error) {
	return s.properties.List(ctx, filter)
}

// ListMine returns the acting owner's properties
func (s *PropertyService) ListMine(ctx context.Context, actor domain.Actor) ([]*domain.Property, error) {
	return s.properties.ListByOwner(ctx, actor.ID)
}

// Update applies descriptive edits to the actor's own property.
// Availability, current tenant, and rented date are preserved from the
// stored row regardless of what the caller sends.
func (s *PropertyService) Update(ctx context.Context, actor domain.Actor, id string, in PropertyInput) (*domain.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.ID {
		return nil, domain.Forbiddenf("you can only update your own properties")
	}

	p.Title = in.Title
	p.Description = in.Description
	p.PropertyType = in.PropertyType
	p.Address = in.Address
	p.City = in.City
	p.State = in.State
	p.PostalCode = in.PostalCode
	p.MonthlyRent = in.MonthlyRent
	p.SecurityDeposit = in.SecurityDeposit
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.AreaSqft = in.AreaSqft
	p.Amenities = in.Amenities

	if err := s.properties.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return p, nil
}

// Archive soft-deletes the actor's own property
func (s *PropertyService) Archive(ctx context.Context, actor domain.Actor, id string) error {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != actor.ID {
		return domain.Forbiddenf("you can only delete your own properties")
	}
	if !p.IsAvailable {
		return domain.Conflictf("cannot delete a rented property")
	}

	if err := s.properties.Archive(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *PropertyService) cacheProperty(ctx context.Context, p *domain.Property) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, propertyCacheKey(p.ID), string(data), propertyCacheTTL); err != nil {
		s.logger.Debug("property cache write failed", slog.String("error", err.Error()))
	}
}

func (s *PropertyService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, propertyCacheKey(id)); err != nil {
		s.logger.Debug("property cache invalidation failed", slog.String("error", err.Error()))
	}
}

func propertyCacheKey(id string) string {
	return "property:" + id
}
