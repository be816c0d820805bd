package ports

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
)

// Publisher delivers committed events to live viewers of a ticket channel.
// Delivery is best effort, at most once; durability always wins over
// liveness, so publish errors must never propagate to the writer.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg domain.LiveMessage) error
	Close() error
}

// Subscriber receives live messages for a topic. Call the returned cancel
// function to leave the channel and close the stream.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
