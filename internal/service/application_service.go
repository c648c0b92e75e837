package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/observability/metrics"
	"github.com/yourorg/rentnest/internal/security/audit"
	"github.com/yourorg/rentnest/pkg/cache"
)

// AutoRejectResponse is stored on competing applications rejected as a side
// effect of a sibling's approval. Email templates depend on this wording.
const AutoRejectResponse = "Property has been rented to another applicant. " +
	"Thank you for your interest. We encourage you to explore other available properties."

// ApplicationService owns the application lifecycle: creation, the approval
// allocation transaction, rejection, withdrawal, and the read paths.
type ApplicationService struct {
	applications domain.ApplicationRepository
	properties   domain.PropertyRepository
	users        domain.UserRepository
	transactor   domain.Transactor
	notifier     domain.Notifier
	audit        *audit.Logger
	logger       *slog.Logger
	statsCache   *cache.Cache
	now          func() time.Time
}

const statsCacheTTL = 15 * time.Second

// CreateApplicationInput carries a tenant's application request
type CreateApplicationInput struct {
	PropertyID string
	Message    string
	Documents  []domain.Document
	TenantInfo domain.TenantInfo
}

// NewApplicationService creates a new application service
func NewApplicationService(
	applications domain.ApplicationRepository,
	properties domain.PropertyRepository,
	users domain.UserRepository,
	transactor domain.Transactor,
	notifier domain.Notifier,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *ApplicationService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ApplicationService{
		applications: applications,
		properties:   properties,
		users:        users,
		transactor:   transactor,
		notifier:     notifier,
		audit:        auditLog,
		logger:       logger,
		statsCache:   cache.New(),
		now:          time.Now,
	}
}

// Create inserts a new pending application for the acting tenant.
//
// The duplicate check is advisory: the authoritative guard is the unique
// index on the active (tenant, property) pair, whose violation the
// repository maps to a Duplicate error, so two racing submissions cannot
// both land.
func (s *ApplicationService) Create(ctx context.Context, actor domain.Actor, in CreateApplicationInput) (*domain.Application, error) {
	property, err := s.properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}

	if !property.IsActive {
		return nil, domain.NotFoundf("property %s not found", in.PropertyID)
	}
	if !property.IsAvailable {
		return nil, domain.Conflictf("property is not available for rent")
	}
	if property.OwnerID == actor.ID {
		return nil, domain.Forbiddenf("property owners cannot apply to their own properties")
	}

	if existing, err := s.applications.FindActive(ctx, actor.ID, in.PropertyID); err == nil {
		return nil, domain.Duplicatef("you have already applied for this property (application %s)", existing.ID)
	}

	app := &domain.Application{
		TenantID:        actor.ID,
		PropertyID:      property.ID,
		OwnerID:         property.OwnerID, // snapshot, survives later owner changes
		Status:          domain.StatusPending,
		Message:         in.Message,
		ApplicationDate: s.now(),
		IsActive:        true,
		Documents:       in.Documents,
		TenantInfo:      in.TenantInfo,
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, err
	}

	metrics.ApplicationCreated()
	s.invalidateStats(app.TenantID, app.OwnerID)
	s.audit.LogApplication(ctx, actor.ID, app.ID, "created", property.ID)
	s.notifyOwner(ctx, app, property)

	return app, nil
}

// Approve runs the allocation transaction: flip the application to approved,
// mark the property rented, and auto-reject every competing pending
// application, all or nothing. Of two concurrent approvals on the same
// property exactly one commits; the other re-reads a non-pending status
// under the row lock and fails with an InvalidState error.
func (s *ApplicationService) Approve(ctx context.Context, actor domain.Actor, applicationID, response string) (*domain.Application, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.OwnerID != actor.ID {
		return nil, domain.Forbiddenf("you can only update applications for your own properties")
	}
	if app.Status != domain.StatusPending {
		return nil, domain.InvalidStatef("cannot update application with status: %s", app.Status)
	}

	start := s.now()
	var approved *domain.Application
	var siblings []*domain.Application

	err = s.transactor.InTx(ctx, func(ctx context.Context, tx domain.AllocationTx) error {
		current, err := tx.ApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		// Authoritative re-check under the row lock; a concurrent approval
		// or rejection that committed in between is seen here.
		now := s.now()
		if err := current.Decide(domain.StatusApproved, response, now); err != nil {
			return err
		}
		if err := tx.SaveApplication(ctx, current); err != nil {
			return err
		}
		if err := tx.MarkPropertyRented(ctx, current.PropertyID, current.TenantID, now); err != nil {
			return err
		}

		siblings, err = tx.PendingSiblings(ctx, current.PropertyID, current.ID)
		if err != nil {
			return err
		}
		if len(siblings) > 0 {
			if _, err := tx.RejectPendingSiblings(ctx, current.PropertyID, current.ID, AutoRejectResponse, now); err != nil {
				return err
			}
		}

		approved = current
		return nil
	})
	if err != nil {
		metrics.ObserveApproval("error", time.Since(start))
		return nil, err
	}

	metrics.ObserveApproval("ok", time.Since(start))
	metrics.ApplicationDecided(string(domain.StatusApproved), false)
	s.invalidateStats(approved.TenantID, approved.OwnerID)
	for _, sibling := range siblings {
		s.invalidateStats(sibling.TenantID)
	}
	s.audit.LogDecision(ctx, actor.ID, approved.ID, string(domain.StatusApproved), approved.PropertyID)

	s.notifyDecision(ctx, approved, domain.StatusApproved, response, false)
	for _, sibling := range siblings {
		metrics.ApplicationDecided(string(domain.StatusRejected), true)
		s.notifyDecision(ctx, sibling, domain.StatusRejected, AutoRejectResponse, true)
	}

	return approved, nil
}

// Reject declines a pending application. Single-row transition, no
// cross-entity effects.
func (s *ApplicationService) Reject(ctx context.Context, actor domain.Actor, applicationID, response string) (*domain.Application, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.OwnerID != actor.ID {
		return nil, domain.Forbiddenf("you can only update applications for your own properties")
	}

	if err := app.Decide(domain.StatusRejected, response, s.now()); err != nil {
		return nil, err
	}
	if err := s.applications.Update(ctx, app); err != nil {
		return nil, err
	}

	metrics.ApplicationDecided(string(domain.StatusRejected), false)
	s.invalidateStats(app.TenantID, app.OwnerID)
	s.audit.LogDecision(ctx, actor.ID, app.ID, string(domain.StatusRejected), app.PropertyID)
	s.notifyDecision(ctx, app, domain.StatusRejected, response, false)

	return app, nil
}

// Withdraw cancels a tenant's own pending application.
func (s *ApplicationService) Withdraw(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.TenantID != actor.ID {
		return nil, domain.Forbiddenf("you can only withdraw your own applications")
	}

	if err := app.Decide(domain.StatusWithdrawn, "", s.now()); err != nil {
		return nil, err
	}
	if err := s.applications.Update(ctx, app); err != nil {
		return nil, err
	}

	metrics.ApplicationDecided(string(domain.StatusWithdrawn), false)
	s.invalidateStats(app.TenantID, app.OwnerID)
	s.audit.LogDecision(ctx, actor.ID, app.ID, string(domain.StatusWithdrawn), app.PropertyID)

	return app, nil
}

// GetByID returns an application if the actor is its tenant or the property
// owner.
func (s *ApplicationService) GetByID(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.TenantID != actor.ID && app.OwnerID != actor.ID {
		return nil, domain.Forbiddenf("access denied")
	}
	return app, nil
}

// ListMine returns the actor's own applications.
func (s *ApplicationService) ListMine(ctx context.Context, actor domain.Actor, f domain.ApplicationFilter) ([]*domain.Application, error) {
	return s.applications.ListByTenant(ctx, actor.ID, f)
}

// ListReceived returns applications received for the actor's properties.
func (s *ApplicationService) ListReceived(ctx context.Context, actor domain.Actor, f domain.ApplicationFilter) ([]*domain.Application, error) {
	return s.applications.ListByOwner(ctx, actor.ID, f)
}

// ListByProperty returns a property's applications to its owner.
func (s *ApplicationService) ListByProperty(ctx context.Context, actor domain.Actor, propertyID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	property, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != actor.ID {
		return nil, domain.Forbiddenf("you can only view applications for your own properties")
	}
	return s.applications.ListByProperty(ctx, propertyID, f)
}

// Stats holds per-status application tallies in both directions.
type Stats struct {
	Applied  domain.StatusCounts `json:"applied"`
	Received domain.StatusCounts `json:"received"`
}

// StatsFor tallies the actor's applications (as tenant) and the
// applications received for their properties (as owner). Counts are cached
// briefly since dashboards poll them.
func (s *ApplicationService) StatsFor(ctx context.Context, actor domain.Actor) (*Stats, error) {
	key := "stats:" + actor.ID
	if cached, ok := s.statsCache.Get(key); ok {
		return cached.(*Stats), nil
	}

	applied, err := s.applications.CountByStatusForTenant(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	received, err := s.applications.CountByStatusForOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Applied: applied, Received: received}
	s.statsCache.Set(key, stats, statsCacheTTL)
	return stats, nil
}

func (s *ApplicationService) invalidateStats(userIDs ...string) {
	for _, id := range userIDs {
		s.statsCache.Delete("stats:" + id)
	}
}

// notifyOwner tells the property owner about a new application.
// Notification failure is logged and swallowed: it must never fail the
// state change that produced it.
func (s *ApplicationService) notifyOwner(ctx context.Context, app *domain.Application, property *domain.Property) {
	owner, err := s.users.GetByID(ctx, app.OwnerID)
	if err != nil {
		s.logger.Warn("skipping owner notification, owner lookup failed",
			slog.String("application_id", app.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	ev := domain.Event{
		Type:           domain.EventApplicationCreated,
		ApplicationID:  app.ID,
		PropertyID:     property.ID,
		PropertyTitle:  property.Title,
		TenantID:       app.TenantID,
		OwnerID:        app.OwnerID,
		RecipientName:  owner.Name,
		RecipientEmail: owner.Email,
		OccurredAt:     s.now(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("failed to notify owner of new application",
			slog.String("application_id", app.ID),
			slog.String("error", err.Error()),
		)
	}
}

// notifyDecision tells the tenant their application has been decided.
func (s *ApplicationService) notifyDecision(ctx context.Context, app *domain.Application, status domain.Status, response string, auto bool) {
	tenant, err := s.users.GetByID(ctx, app.TenantID)
	if err != nil {
		s.logger.Warn("skipping decision notification, tenant lookup failed",
			slog.String("application_id", app.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	title := ""
	if property, err := s.properties.GetByID(ctx, app.PropertyID); err == nil {
		title = property.Title
	}

	ev := domain.Event{
		Type:           domain.EventApplicationDecided,
		ApplicationID:  app.ID,
		PropertyID:     app.PropertyID,
		PropertyTitle:  title,
		TenantID:       app.TenantID,
		OwnerID:        app.OwnerID,
		Status:         status,
		OwnerResponse:  response,
		AutoRejected:   auto,
		RecipientName:  tenant.Name,
		RecipientEmail: tenant.Email,
		OccurredAt:     s.now(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("failed to notify tenant of decision",
			slog.String("application_id", app.ID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}
