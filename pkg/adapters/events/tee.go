package events

import (
	"context"
	"errors"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
)

// TeeEventBus publishes to a primary bus and a set of mirrors. Subscriptions
// go to the primary only.
//
// It lets a consumer-group bus carry events between processes while an
// in-memory mirror fans the same events out to every local subscriber.
type TeeEventBus struct {
	primary ports.EventBus
	mirrors []ports.EventBus
}

var _ ports.EventBus = (*TeeEventBus)(nil)

// NewTeeEventBus creates a bus that mirrors every publish
func NewTeeEventBus(primary ports.EventBus, mirrors ...ports.EventBus) *TeeEventBus {
	return &TeeEventBus{primary: primary, mirrors: mirrors}
}

// Publish sends the event to every bus. A mirror failure does not stop
// delivery to the others.
func (t *TeeEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	errs := []error{t.primary.Publish(ctx, topic, event)}
	for _, m := range t.mirrors {
		errs = append(errs, m.Publish(ctx, topic, event))
	}
	return errors.Join(errs...)
}

// Subscribe subscribes on the primary bus
func (t *TeeEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	return t.primary.Subscribe(ctx, topic, handler)
}

// Close closes every bus
func (t *TeeEventBus) Close() error {
	errs := []error{t.primary.Close()}
	for _, m := range t.mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
