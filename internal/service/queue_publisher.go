// Package queue_publisher provides functions to publish domain events to
// RabbitMQ.  Errors are logged and returned so callers can ignore
// failures without interrupting the main request flow; anomaly events
// additionally always reach the process log before any publish attempt.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/screening-admission/internal/allocator"
    q "github.com/iliyamo/screening-admission/internal/queue"
)

// PublishReservationConfirmed publishes a ReservationConfirmedEvent to
// the reservation.confirmed queue.  Messages are marked persistent.
func PublishReservationConfirmed(ctx context.Context, event q.ReservationConfirmedEvent) error {
    return publish(ctx, q.ConfirmedQueueName, event)
}

// PublishReservationAnomaly publishes a ReservationAnomalyEvent to the
// reservation.anomaly queue.
func PublishReservationAnomaly(ctx context.Context, event q.ReservationAnomalyEvent) error {
    return publish(ctx, q.AnomalyQueueName, event)
}

func publish(ctx context.Context, queueName string, event any) error {
    conn, err := amqp.Dial(q.BrokerURL())
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive
    // broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// AnomalyPublisher adapts the queue publisher to the allocator's
// reporter contract.  Publish failures are logged and dropped here on
// purpose: the allocator has already written the anomaly to the
// process log, so the signal is never lost entirely.
type AnomalyPublisher struct{}

// ReportAnomaly publishes from a goroutine so the move's request path
// never waits on a broker dial.  The publish gets its own timeout,
// detached from the request context, which may end before the broker
// answers.
func (AnomalyPublisher) ReportAnomaly(ctx context.Context, a allocator.Anomaly) {
    ev := q.ReservationAnomalyEvent{
        Kind:          a.Kind,
        ReservationID: a.ReservationID,
        HolderID:      a.HolderID,
        ScreeningID:   a.ScreeningID,
        SeatNumber:    a.SeatNumber,
        OccurredAt:    a.OccurredAt.Format(time.RFC3339),
        Detail:        a.Detail,
    }
    bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
    go func() {
        defer cancel()
        _ = PublishReservationAnomaly(bg, ev)
    }()
}
