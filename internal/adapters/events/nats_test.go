package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/titledesk/timeline/internal/core/domain"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNATSPublishReachesSubscriber(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	topic := domain.TicketTopic("T-1")
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	want := domain.LiveMessage{
		TicketID:  "T-1",
		RequestID: "req-1",
		Events:    []domain.ActivityEvent{{ID: 7, TicketID: "T-1", Kind: domain.KindComment}},
	}
	if err := pub.Publish(context.Background(), topic, want); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	select {
	case raw := <-ch:
		var got domain.LiveMessage
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decoding live message: %v", err)
		}
		if got.TicketID != "T-1" || got.RequestID != "req-1" || len(got.Events) != 1 || got.Events[0].ID != 7 {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestNATSSubscriberScopedToTopic(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(domain.TicketTopic("T-1"))
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	if err := pub.Publish(context.Background(), domain.TicketTopic("T-2"), domain.LiveMessage{TicketID: "T-2"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	select {
	case raw := <-ch:
		t.Fatalf("received another ticket's message: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNATSSubscriberCancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(domain.TicketTopic("T-1"))
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()
	cancel() // idempotent

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
