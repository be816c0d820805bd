package events

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

// MultiPublisher fans one live message out to several publishers, keeping
// going past individual failures so one slow transport cannot starve the
// others. The first error is reported.
type MultiPublisher struct {
	publishers []ports.Publisher
}

func NewMultiPublisher(publishers ...ports.Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (m *MultiPublisher) Publish(ctx context.Context, topic string, msg domain.LiveMessage) error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, topic, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiPublisher) Close() error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
