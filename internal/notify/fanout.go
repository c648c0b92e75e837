package notify

import (
	"context"
	"errors"

	"github.com/yourorg/rentnest/internal/domain"
)

// Fanout dispatches one event to several notifiers (queue, live feed). It
// tries every target and joins the failures so one dead sink does not starve
// the others.
type Fanout []domain.Notifier

// Notify sends the event to every target
func (f Fanout) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
