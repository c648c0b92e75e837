package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/rentnest/internal/domain"
)

// PostgresApplicationRepository implements domain.ApplicationRepository using PostgreSQL
type PostgresApplicationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresApplicationRepository creates a new application repository
func NewPostgresApplicationRepository(db *sql.DB, logger *slog.Logger) *PostgresApplicationRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresApplicationRepository{
		db:     db,
		logger: logger,
	}
}

const applicationColumns = `id, tenant_id, property_id, owner_id, status, message, owner_response,
	application_date, decision_date, auto_rejected, is_active, documents, tenant_info,
	created_at, updated_at`

// Create inserts a pending application. A unique-index violation on the
// active (tenant, property) pair maps to a Duplicate domain error.
func (r *PostgresApplicationRepository) Create(ctx context.Context, a *domain.Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	documents, tenantInfo, err := marshalApplicationJSON(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO applications (id, tenant_id, property_id, owner_id, status, message,
			application_date, documents, tenant_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING is_active, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		a.ID, a.TenantID, a.PropertyID, a.OwnerID, a.Status, a.Message,
		a.ApplicationDate, documents, tenantInfo,
	).Scan(&a.IsActive, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.Duplicatef("you have already applied for this property")
		}
		r.logger.Error("failed to create application",
			slog.String("tenant_id", a.TenantID),
			slog.String("property_id", a.PropertyID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by ID
func (r *PostgresApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	a, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("application %s not found", id)
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// Update persists a single-row status transition
func (r *PostgresApplicationRepository) Update(ctx context.Context, a *domain.Application) error {
	query := `
		UPDATE applications
		SET status = $2, owner_response = $3, decision_date = $4, auto_rejected = $5,
			is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Status, a.OwnerResponse, a.DecisionDate, a.AutoRejected, a.IsActive,
	).Scan(&a.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("application %s not found", a.ID)
		}
		return fmt.Errorf("failed to update application: %w", err)
	}

	return nil
}

// ListByTenant returns a tenant's active applications, newest first
func (r *PostgresApplicationRepository) ListByTenant(ctx context.Context, tenantID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	return r.list(ctx, "tenant_id", tenantID, f)
}

// ListByOwner returns the active applications received for an owner's properties
func (r *PostgresApplicationRepository) ListByOwner(ctx context.Context, ownerID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	return r.list(ctx, "owner_id", ownerID, f)
}

// ListByProperty returns the active applications on a property
func (r *PostgresApplicationRepository) ListByProperty(ctx context.Context, propertyID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	return r.list(ctx, "property_id", propertyID, f)
}

func (r *PostgresApplicationRepository) list(ctx context.Context, column, value string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE ` + column + ` = $1 AND is_active`
	args := []any{value}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY application_date DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

// FindActive returns the active application for a (tenant, property) pair
func (r *PostgresApplicationRepository) FindActive(ctx context.Context, tenantID, propertyID string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE tenant_id = $1 AND property_id = $2 AND is_active`

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, tenantID, propertyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("no active application for tenant %s on property %s", tenantID, propertyID)
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return a, nil
}

// ListApprovedActive returns every active approved application
func (r *PostgresApplicationRepository) ListApprovedActive(ctx context.Context) ([]*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE status = $1 AND is_active ORDER BY application_date`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved applications: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

// CountPendingSiblings counts the other active pending applications on a property
func (r *PostgresApplicationRepository) CountPendingSiblings(ctx context.Context, propertyID, excludeID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications
		 WHERE property_id = $1 AND status = $2 AND is_active AND id <> $3`,
		propertyID, domain.StatusPending, excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending siblings: %w", err)
	}
	return count, nil
}

// ExpireStale bulk-transitions stale pending applications to expired.
// Re-running once all qualifying rows have been transitioned finds nothing.
func (r *PostgresApplicationRepository) ExpireStale(ctx context.Context, cutoff time.Time, response string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications
		 SET status = $1, owner_response = $2, decision_date = $3, updated_at = now()
		 WHERE status = $4 AND is_active AND application_date < $5`,
		domain.StatusExpired, response, at, domain.StatusPending, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire applications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired applications: %w", err)
	}
	return n, nil
}

// CountByStatusForTenant tallies a tenant's applications by status
func (r *PostgresApplicationRepository) CountByStatusForTenant(ctx context.Context, tenantID string) (domain.StatusCounts, error) {
	return r.countByStatus(ctx, "tenant_id", tenantID)
}

// CountByStatusForOwner tallies the applications received for an owner's properties by status
func (r *PostgresApplicationRepository) CountByStatusForOwner(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	return r.countByStatus(ctx, "owner_id", ownerID)
}

func (r *PostgresApplicationRepository) countByStatus(ctx context.Context, column, value string) (domain.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM applications
		 WHERE `+column+` = $1 AND is_active GROUP BY status`, value)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	defer rows.Close()

	counts := domain.StatusCounts{}
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

func marshalApplicationJSON(a *domain.Application) (documents, tenantInfo []byte, err error) {
	docs := a.Documents
	if docs == nil {
		docs = []domain.Document{}
	}
	documents, err = json.Marshal(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal documents: %w", err)
	}
	tenantInfo, err = json.Marshal(a.TenantInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tenant info: %w", err)
	}
	return documents, tenantInfo, nil
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	a := &domain.Application{}
	var documents, tenantInfo []byte

	err := row.Scan(
		&a.ID, &a.TenantID, &a.PropertyID, &a.OwnerID, &a.Status, &a.Message,
		&a.OwnerResponse, &a.ApplicationDate, &a.DecisionDate, &a.AutoRejected,
		&a.IsActive, &documents, &tenantInfo, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &a.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
		}
	}
	if len(tenantInfo) > 0 {
		if err := json.Unmarshal(tenantInfo, &a.TenantInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant info: %w", err)
		}
	}
	return a, nil
}

func collectApplications(rows *sql.Rows) ([]*domain.Application, error) {
	apps := []*domain.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}
