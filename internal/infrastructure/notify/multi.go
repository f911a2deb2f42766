package notify

import (
	"context"
	"errors"
	"fmt"

	"CommunityInsights/internal/ports"
)

// Named tags a notifier so failures can be attributed.
type Named struct {
	Name     string
	Notifier ports.Notifier
}

// Multi fans a message out to every channel.
type Multi struct {
	targets []Named
}

var _ ports.Notifier = (*Multi)(nil)

// NewMulti drops nil notifiers.
func NewMulti(targets ...Named) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t.Notifier != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

// Len reports how many channels are configured.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Notify delivers message to all channels; one failure does not stop the rest.
func (m *Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Notifier.Notify(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
