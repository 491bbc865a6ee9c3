package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/sumit010804/food-share-sub000/internal/model"
)

// FeedWriter stores notifications for display.  Writing the same id twice
// must be harmless.
type FeedWriter interface {
    InsertIfAbsent(ctx context.Context, n *model.Notification) (bool, error)
}

// Consumer drains the notification queue into the feed.
type Consumer struct {
    url   string
    queue string
    feed  FeedWriter
    log   *slog.Logger
}

// NewConsumer returns a Consumer reading queue on the broker at url.
func NewConsumer(url, queue string, feed FeedWriter, log *slog.Logger) *Consumer {
    return &Consumer{url: url, queue: queue, feed: feed, log: log}
}

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// cancelled.  Dial failures back off exponentially up to 30s and a closed
// delivery channel triggers a reconnect.  Messages that cannot be handled
// are rejected without requeue so one bad payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("notification consumer dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("notification consumer loop ended, reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("notification consumer qos failed", "err", err)
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.log.Error("notification message rejected", "err", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one message body and writes it to the feed.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev NotificationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.ID == "" || ev.UserID == "" || ev.Type == "" {
        return fmt.Errorf("incomplete notification %q", ev.ID)
    }
    if _, err := c.feed.InsertIfAbsent(ctx, ev.Notification()); err != nil {
        return fmt.Errorf("write feed: %w", err)
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
