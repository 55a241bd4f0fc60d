package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartConsumer connects to RabbitMQ and consumes both reservation
// lifecycle queues, appending each event to logs/reservations.log in a
// single-line, human-friendly format. It runs a reconnect loop with
// exponential backoff and never returns under normal operation;
// processing errors reject the offending message without requeueing so
// a poison message cannot wedge the consumer.
func StartConsumer(url string, log *logrus.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("reservation-consumer: dial failed; retrying in %s", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, log); err != nil {
			log.WithError(err).Warn("reservation-consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, log *logrus.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("reservation-consumer: set QoS failed")
	}

	for _, name := range []string{ConfirmedQueueName, ReleasedQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmed, err := ch.Consume(ConfirmedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ConfirmedQueueName, err)
	}
	released, err := ch.Consume(ReleasedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ReleasedQueueName, err)
	}

	for {
		var (
			d  amqp.Delivery
			ok bool
			fn func([]byte) error
		)
		select {
		case d, ok = <-confirmed:
			fn = logConfirmed
		case d, ok = <-released:
			fn = logReleased
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := fn(d.Body); err != nil {
			log.WithError(err).Warn("reservation-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue
			continue
		}
		_ = d.Ack(false)
	}
}

func logConfirmed(body []byte) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Reservation confirmed | reservation_id=%d | user_id=%d | screening_id=%d | payment_id=%d | total=%d cents | seats=%v\n",
		ev.ConfirmedAt, ev.ReservationID, ev.UserID, ev.ScreeningID, ev.PaymentID, ev.TotalAmountCents, ev.SeatIDs)
	return appendLine(line)
}

func logReleased(body []byte) error {
	var ev ReservationReleasedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Reservation released | reservation_id=%d | user_id=%d | screening_id=%d | reason=%s\n",
		ev.ReleasedAt, ev.ReservationID, ev.UserID, ev.ScreeningID, ev.Reason)
	return appendLine(line)
}

func appendLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "reservations.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
