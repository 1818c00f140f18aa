package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures       = 5
	openTimeout       = 30 * time.Second
	publishTimeout    = 5 * time.Second
	maxPublishRetries = 3
)

var errNotConnected = errors.New("amqp connection closed")

// Client wraps an AMQP connection bound to one exchange and queue. It keeps
// a circuit breaker so a dead broker fails fast instead of stalling callers.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount atomic.Int64
	state        atomic.Int32
	lastFailure  atomic.Int64 // unix nanos of the most recent failure
}

// NewClient connects to the broker and declares the exchange and queue.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open AMQP channel: %w", err)
	}

	if err := declareTopology(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	return nil
}

func declareTopology(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-deleted
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(
		queueName,
		queueName, // routing key matches queue name
		exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Publish sends a raw message body through the exchange. Connection errors
// trigger a reconnect and retry with exponential backoff; repeated failures
// open the circuit breaker.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing to publish")
	}

	var lastErr error
	for attempt := 0; attempt < maxPublishRetries; attempt++ {
		if attempt > 0 {
			wait := exponentialBackoff(attempt - 1)
			slog.WarnContext(ctx, "Retrying AMQP publish",
				"attempt", attempt+1,
				"wait", wait,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			if err := c.connect(); err != nil {
				lastErr = err
				c.recordFailure()
				continue
			}
		}

		err := c.publishOnce(ctx, body)
		if err == nil {
			c.recordSuccess()
			return nil
		}
		lastErr = err
		c.recordFailure()
		if !isConnectionError(err) {
			return err
		}
	}

	return fmt.Errorf("publish after %d attempts: %w", maxPublishRetries, lastErr)
}

func (c *Client) publishOnce(ctx context.Context, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errNotConnected
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(publishCtx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		})
}

// PublishSync marshals and publishes a sync message.
func (c *Client) PublishSync(ctx context.Context, msg *SyncMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	if err := c.Publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published sync message",
		"message_id", msg.MessageID,
		"op", msg.Op,
		"vehicle_id", msg.VehicleID,
		"queue", c.queueName)
	return nil
}

// PublishReminder marshals and publishes a reminder message.
func (c *Client) PublishReminder(ctx context.Context, msg *ReminderMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reminder message: %w", err)
	}
	if err := c.Publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published reminder message",
		"message_id", msg.MessageID,
		"vehicle_id", msg.VehicleID,
		"strategy", msg.Strategy,
		"queue", c.queueName)
	return nil
}

// Consume delivers sync messages to handler until ctx is cancelled. Handler
// errors nack and requeue the delivery; malformed payloads are dropped.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *SyncMessage) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errNotConnected
	}

	msgs, err := channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Consuming sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errNotConnected
			}
			msg, err := SyncMessageFromJSON(d.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Dropping malformed sync message", "error", err)
				d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				// Requeue once; a redelivered message that fails again
				// is poison and gets dropped.
				requeue := !d.Redelivered
				slog.ErrorContext(ctx, "Sync handler failed",
					"message_id", msg.MessageID,
					"op", msg.Op,
					"requeue", requeue,
					"error", err)
				d.Nack(false, requeue)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

func (c *Client) isCircuitOpen() bool {
	if c.state.Load() != StateOpen {
		return false
	}
	last := time.Unix(0, c.lastFailure.Load())
	if time.Since(last) > openTimeout {
		c.state.Store(StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	c.failureCount.Store(0)
	c.state.Store(StateClosed)
}

func (c *Client) recordFailure() {
	c.lastFailure.Store(time.Now().UnixNano())
	if c.failureCount.Add(1) >= maxFailures {
		c.state.Store(StateOpen)
	}
}

// exponentialBackoff returns the wait before retry number attempt, capped
// at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}

// isConnectionError reports whether err looks like a broken broker
// connection rather than a bad message.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	patterns := []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
