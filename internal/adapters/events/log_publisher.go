package events

import (
	"context"
	"log"

	"github.com/titledesk/timeline/internal/core/domain"
)

// LogPublisher writes live messages to the process log. Useful as a
// development stand-in for a real transport.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, msg domain.LiveMessage) error {
	log.Printf("live publish topic=%s ticket=%s events=%d", topic, msg.TicketID, len(msg.Events))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
