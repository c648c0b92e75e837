package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/rentnest/internal/domain"
)

// PostgresPropertyRepository implements domain.PropertyRepository using PostgreSQL
type PostgresPropertyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPropertyRepository creates a new property repository
func NewPostgresPropertyRepository(db *sql.DB, logger *slog.Logger) *PostgresPropertyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPropertyRepository{
		db:     db,
		logger: logger,
	}
}

const propertyColumns = `id, owner_id, title, description, property_type, address, city, state,
	postal_code, monthly_rent, security_deposit, bedrooms, bathrooms, area_sqft, amenities,
	is_available, current_tenant_id, rented_date, is_active, created_at, updated_at`

// Create inserts a new property
func (r *PostgresPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	amenities, err := json.Marshal(p.Amenities)
	if err != nil {
		return fmt.Errorf("failed to marshal amenities: %w", err)
	}

	query := `
		INSERT INTO properties (id, owner_id, title, description, property_type, address, city,
			state, postal_code, monthly_rent, security_deposit, bedrooms, bathrooms, area_sqft,
			amenities, is_available, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE, TRUE)
		RETURNING is_available, is_active, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.OwnerID, p.Title, p.Description, p.PropertyType, p.Address, p.City,
		p.State, p.PostalCode, p.MonthlyRent, p.SecurityDeposit, p.Bedrooms, p.Bathrooms,
		p.AreaSqft, amenities,
	).Scan(&p.IsAvailable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create property",
			slog.String("owner_id", p.OwnerID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create property: %w", err)
	}

	return nil
}

// GetByID retrieves a property by ID, including archived ones so historical
// applications keep resolving
func (r *PostgresPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("property %s not found", id)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// ListByOwner returns all active properties owned by a user
func (r *PostgresPropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties
		WHERE owner_id = $1 AND is_active ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

// List returns active properties matching the filter
func (r *PostgresPropertyRepository) List(ctx context.Context, filter domain.PropertyFilter) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE is_active`
	args := []any{}

	if filter.AvailableOnly {
		query += ` AND is_available`
	}
	if filter.City != "" {
		args = append(args, filter.City)
		query += fmt.Sprintf(` AND city = $%d`, len(args))
	}
	if filter.MaxRent > 0 {
		args = append(args, filter.MaxRent)
		query += fmt.Sprintf(` AND monthly_rent <= $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

// Update persists property changes
func (r *PostgresPropertyRepository) Update(ctx context.Context, p *domain.Property) error {
	amenities, err := json.Marshal(p.Amenities)
	if err != nil {
		return fmt.Errorf("failed to marshal amenities: %w", err)
	}

	query := `
		UPDATE properties
		SET title = $2, description = $3, property_type = $4, address = $5, city = $6,
			state = $7, postal_code = $8, monthly_rent = $9, security_deposit = $10,
			bedrooms = $11, bathrooms = $12, area_sqft = $13, amenities = $14,
			is_available = $15, current_tenant_id = $16, rented_date = $17, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.Title, p.Description, p.PropertyType, p.Address, p.City,
		p.State, p.PostalCode, p.MonthlyRent, p.SecurityDeposit,
		p.Bedrooms, p.Bathrooms, p.AreaSqft, amenities,
		p.IsAvailable, p.CurrentTenantID, p.RentedDate,
	).Scan(&p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("property %s not found", p.ID)
		}
		return fmt.Errorf("failed to update property: %w", err)
	}

	return nil
}

// Archive soft-deletes a property
func (r *PostgresPropertyRepository) Archive(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE properties SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive property: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("property %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*domain.Property, error) {
	p := &domain.Property{}
	var amenities []byte

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.PropertyType, &p.Address,
		&p.City, &p.State, &p.PostalCode, &p.MonthlyRent, &p.SecurityDeposit,
		&p.Bedrooms, &p.Bathrooms, &p.AreaSqft, &amenities,
		&p.IsAvailable, &p.CurrentTenantID, &p.RentedDate, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &p.Amenities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal amenities: %w", err)
		}
	}
	return p, nil
}

func collectProperties(rows *sql.Rows) ([]*domain.Property, error) {
	props := []*domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return props, nil
}
