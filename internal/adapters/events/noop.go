package events

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
)

// NoopPublisher discards everything. Used in tests and when live delivery
// is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, domain.LiveMessage) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
