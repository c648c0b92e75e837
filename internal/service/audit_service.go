package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/observability/metrics"
	"github.com/yourorg/rentnest/internal/security/audit"
)

// repairResponse is stored on stray pending applications rejected during a
// consistency repair.
const repairResponse = AutoRejectResponse + " (Auto-updated for data consistency)"

// AuditorService detects and fixes divergence between approved applications
// and their properties: a property never flipped, a wrong or missing current
// tenant, or competing pending applications that were never auto-rejected.
// It exists because correctness depends on the allocation transaction always
// being honored; this is the safety net for when it wasn't.
type AuditorService struct {
	applications domain.ApplicationRepository
	properties   domain.PropertyRepository
	transactor   domain.Transactor
	audit        *audit.Logger
	logger       *slog.Logger
	now          func() time.Time
}

// NewAuditorService creates a new consistency auditor
func NewAuditorService(
	applications domain.ApplicationRepository,
	properties domain.PropertyRepository,
	transactor domain.Transactor,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuditorService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditorService{
		applications: applications,
		properties:   properties,
		transactor:   transactor,
		audit:        auditLog,
		logger:       logger,
		now:          time.Now,
	}
}

// Discrepancy describes one property whose state diverges from its approved
// application.
type Discrepancy struct {
	PropertyID      string   `json:"propertyId"`
	ApplicationID   string   `json:"applicationId"`
	TenantID        string   `json:"tenantId"`
	Issues          []string `json:"issues"`
	PendingSiblings int      `json:"pendingSiblings"`
}

// RepairResult reports the outcome of repairing one property. Failures on
// one property do not block repair of others.
type RepairResult struct {
	PropertyID       string `json:"propertyId"`
	ApplicationID    string `json:"applicationId"`
	PropertyFixed    bool   `json:"propertyFixed"`
	SiblingsRejected int64  `json:"siblingsRejected"`
	Error            string `json:"error,omitempty"`
}

// Diagnose scans every active approved application and reports each
// discrepancy found without mutating anything.
func (s *AuditorService) Diagnose(ctx context.Context) ([]Discrepancy, error) {
	approved, err := s.applications.ListApprovedActive(ctx)
	if err != nil {
		return nil, err
	}

	discrepancies := []Discrepancy{}
	for _, app := range approved {
		property, err := s.properties.GetByID(ctx, app.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load property %s: %w", app.PropertyID, err)
		}

		issues := inspect(app, property)

		pending, err := s.applications.CountPendingSiblings(ctx, app.PropertyID, app.ID)
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			issues = append(issues, fmt.Sprintf("%d other pending applications still exist", pending))
		}

		if len(issues) > 0 {
			discrepancies = append(discrepancies, Discrepancy{
				PropertyID:      app.PropertyID,
				ApplicationID:   app.ID,
				TenantID:        app.TenantID,
				Issues:          issues,
				PendingSiblings: pending,
			})
		}
	}

	return discrepancies, nil
}

// Repair applies the same corrective writes the allocation transaction
// would have applied, one transaction per property. Re-running on a
// consistent data set finds nothing and writes nothing.
func (s *AuditorService) Repair(ctx context.Context) ([]RepairResult, error) {
	discrepancies, err := s.Diagnose(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]RepairResult, 0, len(discrepancies))
	for _, d := range discrepancies {
		result := s.repairProperty(ctx, d)
		if result.Error == "" {
			metrics.RepairOperation("ok")
			s.audit.LogRepair(ctx, d.PropertyID,
				fmt.Sprintf("application=%s siblings_rejected=%d property_fixed=%t",
					d.ApplicationID, result.SiblingsRejected, result.PropertyFixed))
		} else {
			metrics.RepairOperation("error")
			s.logger.Error("failed to repair property",
				slog.String("property_id", d.PropertyID),
				slog.String("error", result.Error),
			)
		}
		results = append(results, result)
	}

	return results, nil
}

// repairProperty fixes one property inside its own transaction, reusing the
// allocation mutation primitives.
func (s *AuditorService) repairProperty(ctx context.Context, d Discrepancy) RepairResult {
	result := RepairResult{PropertyID: d.PropertyID, ApplicationID: d.ApplicationID}

	err := s.transactor.InTx(ctx, func(ctx context.Context, tx domain.AllocationTx) error {
		app, err := tx.ApplicationForUpdate(ctx, d.ApplicationID)
		if err != nil {
			return err
		}
		// Re-verify under the lock; a concurrent repair may already have
		// fixed this property.
		if app.Status != domain.StatusApproved {
			return nil
		}

		property, err := s.properties.GetByID(ctx, app.PropertyID)
		if err != nil {
			return err
		}

		if len(inspect(app, property)) > 0 {
			rentedAt := s.now()
			if app.DecisionDate != nil {
				rentedAt = *app.DecisionDate
			}
			if err := tx.MarkPropertyRented(ctx, app.PropertyID, app.TenantID, rentedAt); err != nil {
				return err
			}
			result.PropertyFixed = true
		}

		rejected, err := tx.RejectPendingSiblings(ctx, app.PropertyID, app.ID, repairResponse, s.now())
		if err != nil {
			return err
		}
		result.SiblingsRejected = rejected
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		result.PropertyFixed = false
		result.SiblingsRejected = 0
	}

	return result
}

// inspect returns the property-side invariant violations for an approved
// application.
func inspect(app *domain.Application, property *domain.Property) []string {
	var issues []string
	if property.IsAvailable {
		issues = append(issues, "property still marked as available")
	}
	if property.CurrentTenantID == nil || *property.CurrentTenantID != app.TenantID {
		issues = append(issues, "property current tenant not set to approved tenant")
	}
	return issues
}
