package notify

import (
	"context"
	"errors"

	"chryso-hq/forms/pkg/retention"
)

// Multi delivers each event to every notifier in order. One notifier's
// failure does not stop delivery to the rest.
type Multi []retention.Notifier

// Notify implements retention.Notifier.
func (m Multi) Notify(ctx context.Context, ev *retention.RunEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
