package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/yourorg/rentnest/internal/domain"
)

// AllocationStore implements domain.Transactor over a single PostgreSQL
// connection pool. Row locks taken by ApplicationForUpdate linearize
// concurrent approval attempts on the same property: whichever transaction
// commits first wins, the other re-reads a non-pending status.
type AllocationStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAllocationStore creates a new allocation store
func NewAllocationStore(db *sql.DB, logger *slog.Logger) *AllocationStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &AllocationStore{
		db:     db,
		logger: logger,
	}
}

// InTx runs fn inside one transaction; any error rolls everything back.
// Deadlock and serialization aborts, as well as commit failures, surface as a
// Transaction domain error so callers know the approval was not applied and a
// retry is safe. Two approvals racing on the same property can each hold one
// application row while waiting for the other (property lock vs. sibling
// lock), at which point Postgres kills one of them.
func (s *AllocationStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.AllocationTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return domain.Transactionf("failed to begin transaction: %v", err)
	}

	if err := fn(ctx, &allocationTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
		if isTxAborted(err) {
			return domain.Transactionf("transaction aborted by concurrent update: %v", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.Transactionf("failed to commit transaction: %v", err)
	}
	return nil
}

// isTxAborted reports whether err is a PostgreSQL serialization failure
// (40001) or deadlock (40P01). Both mean the transaction was rolled back by
// the server and can simply be retried.
func isTxAborted(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// allocationTx is the transaction-scoped implementation of domain.AllocationTx.
type allocationTx struct {
	tx *sql.Tx
}

// ApplicationForUpdate re-reads an application under a row lock
func (t *allocationTx) ApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`

	a, err := scanApplication(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("application %s not found", id)
		}
		return nil, fmt.Errorf("failed to lock application: %w", err)
	}
	return a, nil
}

// SaveApplication persists status fields inside the transaction
func (t *allocationTx) SaveApplication(ctx context.Context, a *domain.Application) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE applications
		 SET status = $2, owner_response = $3, decision_date = $4, auto_rejected = $5, updated_at = now()
		 WHERE id = $1`,
		a.ID, a.Status, a.OwnerResponse, a.DecisionDate, a.AutoRejected,
	)
	if err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("application %s not found", a.ID)
	}
	return nil
}

// MarkPropertyRented flips the property to unavailable and binds the tenant
func (t *allocationTx) MarkPropertyRented(ctx context.Context, propertyID, tenantID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE properties
		 SET is_available = FALSE, current_tenant_id = $2, rented_date = $3, updated_at = now()
		 WHERE id = $1`,
		propertyID, tenantID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark property rented: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("property %s not found", propertyID)
	}
	return nil
}

// PendingSiblings returns the other active pending applications on a
// property, locked so they cannot be decided concurrently
func (t *allocationTx) PendingSiblings(ctx context.Context, propertyID, excludeID string) ([]*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE property_id = $1 AND status = $2 AND is_active AND id <> $3
		ORDER BY application_date
		FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, propertyID, domain.StatusPending, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending siblings: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

// RejectPendingSiblings bulk-transitions competing pending applications
func (t *allocationTx) RejectPendingSiblings(ctx context.Context, propertyID, excludeID, response string, at time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE applications
		 SET status = $1, owner_response = $2, decision_date = $3, auto_rejected = TRUE, updated_at = now()
		 WHERE property_id = $4 AND status = $5 AND is_active AND id <> $6`,
		domain.StatusRejected, response, at, propertyID, domain.StatusPending, excludeID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reject pending siblings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count rejected siblings: %w", err)
	}
	return n, nil
}
