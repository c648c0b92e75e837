package domain

import (
	"context"
	"time"
)

// AllocationTx is the transaction-scoped mutation surface for approval and
// repair. Every method operates inside the transaction it was obtained from;
// the scope value is threaded explicitly so nested repair logic reuses the
// exact same commit boundary.
type AllocationTx interface {
	// ApplicationForUpdate re-reads an application with a row lock, so the
	// pending re-check is atomic with the writes that follow.
	ApplicationForUpdate(ctx context.Context, id string) (*Application, error)
	SaveApplication(ctx context.Context, a *Application) error
	// MarkPropertyRented flips the property to unavailable and binds the
	// approved tenant.
	MarkPropertyRented(ctx context.Context, propertyID, tenantID string, at time.Time) error
	// PendingSiblings returns the other active pending applications on a
	// property, locked for update.
	PendingSiblings(ctx context.Context, propertyID, excludeID string) ([]*Application, error)
	// RejectPendingSiblings bulk-transitions the other active pending
	// applications on a property to rejected with autoRejected set.
	RejectPendingSiblings(ctx context.Context, propertyID, excludeID, response string, at time.Time) (int64, error)
}

// Transactor runs fn inside one atomic transaction. If fn returns an error
// the transaction rolls back and no partial state is observable.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx AllocationTx) error) error
}
