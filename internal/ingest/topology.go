package ingest

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the broker objects the worker uses.
type Topology struct {
	Exchange        string
	Queue           string
	RoutingKey      string
	DeadLetterQueue string
}

// DefaultTopology returns the exchange, queue and binding shared with the
// note producers.
func DefaultTopology() Topology {
	return Topology{
		Exchange:        "knowledge_graph_events",
		Queue:           "note_creation_queue",
		RoutingKey:      "note.*",
		DeadLetterQueue: "note_creation_queue.dead",
	}
}

// Declarer is the subset of *amqp.Channel used to declare the topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare creates the durable exchange, the work queue with its binding and
// the dead-letter queue. It is idempotent.
func Declare(ch Declarer, topo Topology) error {
	if err := ch.ExchangeDeclare(topo.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(topo.Queue, topo.RoutingKey, topo.Exchange, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(topo.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	return nil
}
