package domain

import (
	"context"
	"time"
)

// Property is a rentable unit owned by a user.
//
// Invariant: IsAvailable is false exactly when CurrentTenantID is set, and
// the tenant it points at holds the one approved active application for this
// property. Availability and tenancy are mutated only through the allocation
// transaction; owner edits touch descriptive fields only.
type Property struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	PropertyType    string // house, apartment, villa, room, studio, ...
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
	IsAvailable     bool
	CurrentTenantID *string
	RentedDate      *time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PropertyFilter narrows property listings.
type PropertyFilter struct {
	City          string
	MaxRent       int64
	AvailableOnly bool
}

// PropertyRepository defines data access for properties.
type PropertyRepository interface {
	Create(ctx context.Context, p *Property) error
	GetByID(ctx context.Context, id string) (*Property, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Property, error)
	List(ctx context.Context, filter PropertyFilter) ([]*Property, error)
	// Update persists descriptive fields plus availability/tenancy. Callers
	// outside the allocation transaction must not change availability.
	Update(ctx context.Context, p *Property) error
	// Archive soft-deletes a property. Archived properties stay readable
	// through GetByID so historical applications keep resolving.
	Archive(ctx context.Context, id string) error
}
