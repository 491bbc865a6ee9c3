package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends notification events to a durable RabbitMQ queue.  A new
// connection is dialled per publish; the outbox relay calls it at a low
// rate and retries on failure, so there is no connection to keep healthy.
type Publisher struct {
    url   string
    queue string
    log   *slog.Logger
}

// NewPublisher returns a Publisher for queue on the broker at url.
func NewPublisher(url, queue string, log *slog.Logger) *Publisher {
    return &Publisher{url: url, queue: queue, log: log}
}

// Publish marshals ev and publishes it as a persistent message.  Errors are
// logged and returned so the caller can schedule a retry.
func (p *Publisher) Publish(ctx context.Context, ev NotificationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal notification: %w", err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("rabbitmq dial failed", "err", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq channel open failed", "err", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        p.queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        p.log.Warn("rabbitmq queue declare failed", "queue", p.queue, "err", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq publish failed", "queue", p.queue, "err", err)
        return err
    }
    return nil
}

// Deliver is the outbox handler for notification events.
func (p *Publisher) Deliver(ctx context.Context, payload []byte) error {
    var ev NotificationEvent
    if err := json.Unmarshal(payload, &ev); err != nil {
        return fmt.Errorf("decode notification: %w", err)
    }
    return p.Publish(ctx, ev)
}
