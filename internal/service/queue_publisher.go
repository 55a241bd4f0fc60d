// Package queue_publisher publishes reservation lifecycle events to
// RabbitMQ. Errors are logged and swallowed so a dead broker can never
// interrupt the main request flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	q "github.com/movieon/reservation-core/internal/queue"
)

// Publisher satisfies the booking layer's publisher contract over
// RabbitMQ. Messages are marked persistent and the queue is declared
// durable on every publish.
type Publisher struct {
	url string
	log *logrus.Logger
}

// NewPublisher builds a Publisher for the given AMQP URL.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// ReservationConfirmed publishes ev to the reservation.confirmed queue.
func (p *Publisher) ReservationConfirmed(ctx context.Context, ev q.ReservationConfirmedEvent) {
	p.publish(ctx, q.ConfirmedQueueName, ev)
}

// ReservationReleased publishes ev to the reservation.released queue.
func (p *Publisher) ReservationReleased(ctx context.Context, ev q.ReservationReleasedEvent) {
	p.publish(ctx, q.ReleasedQueueName, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).WithField("queue", queueName).Error("rabbitmq dial failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).WithField("queue", queueName).Error("rabbitmq channel open failed")
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		p.log.WithError(err).WithField("queue", queueName).Error("rabbitmq queue declare failed")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).WithField("queue", queueName).Error("marshal event failed")
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.WithError(err).WithField("queue", queueName).Error("rabbitmq publish failed")
	}
}
