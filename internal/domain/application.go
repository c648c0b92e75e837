package domain

import (
	"context"
	"time"
)

// Status is the lifecycle state of a rental application. pending is the only
// non-terminal state; once a status leaves pending it never returns.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn || s == StatusExpired
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Document is an opaque reference to a file a tenant attached at creation
// time. The core performs no validation of file contents.
type Document struct {
	Type       string    `json:"type"` // id_proof, salary_slip, bank_statement, reference_letter, other
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"uploadDate"`
}

// TenantInfo holds optional self-reported tenant details.
type TenantInfo struct {
	Occupation    string `json:"occupation,omitempty"`
	MonthlyIncome int64  `json:"monthlyIncome,omitempty"`
	FamilySize    int    `json:"familySize,omitempty"`
	HasPets       bool   `json:"hasPets,omitempty"`
	Smoker        bool   `json:"smoker,omitempty"`
}

// Application is one tenant's interest in one property.
//
// OwnerID is a snapshot of the property owner at creation time, intentionally
// not kept live-synced, so historical decisions survive owner changes.
// IsActive is an orthogonal archival bit: transition checks consider only
// Status, queries filter on IsActive separately.
type Application struct {
	ID              string
	TenantID        string
	PropertyID      string
	OwnerID         string
	Status          Status
	Message         string
	OwnerResponse   *string
	ApplicationDate time.Time
	DecisionDate    *time.Time
	AutoRejected    bool
	IsActive        bool
	Documents       []Document
	TenantInfo      TenantInfo
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Decide moves the application out of pending into the given terminal
// status, recording the decision timestamp exactly once. It fails with
// InvalidState if the application has already been decided, which makes
// re-invocation after a lost race or a client retry fail cleanly instead of
// double-applying side effects.
func (a *Application) Decide(to Status, response string, at time.Time) error {
	if !to.Terminal() {
		return InvalidStatef("cannot transition application to %s", to)
	}
	if a.Status != StatusPending {
		return InvalidStatef("cannot update application with status: %s", a.Status)
	}
	a.Status = to
	if response != "" {
		a.OwnerResponse = &response
	}
	decided := at
	a.DecisionDate = &decided
	return nil
}

// ApplicationFilter narrows application listings. Zero value means no filter.
type ApplicationFilter struct {
	Status Status
}

// StatusCounts is a per-status tally used for dashboard stats.
type StatusCounts map[Status]int

// ApplicationRepository defines data access for applications. All listing
// methods return active applications only, newest first.
type ApplicationRepository interface {
	// Create inserts a pending application. A violation of the one-active-
	// application-per-(tenant,property) constraint surfaces as a Duplicate
	// domain error, distinguishable from generic I/O failure.
	Create(ctx context.Context, a *Application) error
	GetByID(ctx context.Context, id string) (*Application, error)
	// Update persists a single-row status transition (reject, withdraw).
	// Cross-entity transitions go through the allocation transaction.
	Update(ctx context.Context, a *Application) error
	ListByTenant(ctx context.Context, tenantID string, f ApplicationFilter) ([]*Application, error)
	ListByOwner(ctx context.Context, ownerID string, f ApplicationFilter) ([]*Application, error)
	ListByProperty(ctx context.Context, propertyID string, f ApplicationFilter) ([]*Application, error)
	// FindActive returns the active application for a (tenant, property)
	// pair, or a NotFound domain error.
	FindActive(ctx context.Context, tenantID, propertyID string) (*Application, error)
	// ListApprovedActive returns every active approved application; the
	// consistency auditor scans these.
	ListApprovedActive(ctx context.Context) ([]*Application, error)
	CountPendingSiblings(ctx context.Context, propertyID, excludeID string) (int, error)
	// ExpireStale transitions every active pending application older than
	// cutoff to expired with the given response, returning the number of
	// rows transitioned. Idempotent.
	ExpireStale(ctx context.Context, cutoff time.Time, response string, at time.Time) (int64, error)
	CountByStatusForTenant(ctx context.Context, tenantID string) (StatusCounts, error)
	CountByStatusForOwner(ctx context.Context, ownerID string) (StatusCounts, error)
}
