package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

// Notifier delivers a digest to one destination.
type Notifier interface {
	Name() string
	Push(ctx context.Context, d *digest.Digest) error
}

// Manager fans a digest out to every configured notifier.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a notification manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Names lists the configured notifier names.
func (m *Manager) Names() []string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Broadcast pushes the digest to all notifiers. A failing channel never
// blocks the others; failures are joined into one error.
func (m *Manager) Broadcast(ctx context.Context, d *digest.Digest) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Push(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
