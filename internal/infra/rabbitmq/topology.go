package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyProcessing = "video.processing"
	RoutingKeyStatus     = "video.status"
	RoutingKeyEvents     = "video.events"
)

type Topology struct {
	Exchange    string
	Queue       string
	DLQ         string
	StatusQueue string
	EventsQueue string
}

// Declare creates the topic exchange and the durable queues bound to it.
// The DLQ is published to directly through the default exchange.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{t.Queue, t.DLQ, t.StatusQueue, t.EventsQueue} {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	for _, b := range t.bindings() {
		if err := ch.QueueBind(b.queue, b.key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}

type binding struct {
	queue string
	key   string
}

func (t Topology) bindings() []binding {
	var out []binding
	for _, b := range []binding{
		{t.Queue, RoutingKeyProcessing},
		{t.StatusQueue, RoutingKeyStatus},
		{t.EventsQueue, RoutingKeyEvents},
	} {
		if b.queue != "" {
			out = append(out, b)
		}
	}
	return out
}
