package application

import (
	"context"
	"errors"

	"tuya-switch/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, change domain.StateChange) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ domain.StateChange) error {
	return nil
}

// Notifiers fans a state change out to every notifier and joins the errors.
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, change domain.StateChange) error {
	var errs []error
	for _, notifier := range n {
		if err := notifier.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
