package amqp

import (
	"context"
	"encoding/json"
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
	maxFailures = 5
	openTimeout = 60 * time.Second
)

// Client publishes and consumes job envelopes on a single durable queue
// bound to a direct exchange. Publishing goes through a circuit breaker so
// a dead broker fails requests fast instead of blocking them.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  int64 // unix nanos, accessed atomically like the other breaker fields
}

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
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on a direct exchange.
	err = channel.QueueBind(queueName, queueName, exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&c.lastFailure))
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	failures := atomic.AddInt64(&c.failureCount, 1)
	atomic.StoreInt64(&c.lastFailure, time.Now().UnixNano())
	if failures >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Second * time.Duration(1<<attempt)
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// PublishReanalyzeMonth enqueues a month re-analysis job.
func (c *Client) PublishReanalyzeMonth(ctx context.Context, month string, skipCache bool) error {
	return c.publish(ctx, TypeReanalyzeMonth, ReanalyzeMonthMessage{Month: month, SkipCache: skipCache})
}

// PublishExportMonth enqueues a sheet export job.
func (c *Client) PublishExportMonth(ctx context.Context, month string) error {
	return c.publish(ctx, TypeExportMonth, ExportMonthMessage{Month: month})
}

func (c *Client) publish(ctx context.Context, msgType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: circuit breaker is open", msgType)
	}

	envelope, err := NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	body, err := envelope.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			if reconnectErr := c.connect(); reconnectErr != nil {
				slog.WarnContext(ctx, "AMQP reconnect failed", "error", reconnectErr)
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	slog.InfoContext(ctx, "Published job message",
		"type", msgType,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Handlers holds the per-type job callbacks the consumer dispatches to.
type Handlers struct {
	ReanalyzeMonth func(ctx context.Context, msg ReanalyzeMonthMessage) error
	ExportMonth    func(ctx context.Context, msg ExportMonthMessage) error
}

// Consume processes job messages until the context is cancelled. Handler
// errors nack with requeue; malformed or unknown messages are dropped. A
// closed delivery channel triggers a reconnect with exponential backoff.
func (c *Client) Consume(ctx context.Context, handlers Handlers) error {
	for {
		msgs, err := c.startConsuming()
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "Started consuming job messages", "queue", c.queueName)

	deliveries:
		for {
			select {
			case <-ctx.Done():
				slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
				return ctx.Err()
			case delivery, ok := <-msgs:
				if !ok {
					slog.WarnContext(ctx, "Delivery channel closed, reconnecting")
					break deliveries
				}
				c.handleDelivery(ctx, delivery, handlers)
			}
		}

		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) startConsuming() (<-chan amqp091.Delivery, error) {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return msgs, nil
}

// reconnect retries the broker connection with exponential backoff until it
// succeeds or the context is cancelled.
func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		if err := c.connect(); err != nil {
			slog.WarnContext(ctx, "AMQP reconnect failed", "error", err, "attempt", attempt+1)
			continue
		}
		slog.InfoContext(ctx, "AMQP reconnected", "attempts", attempt+1)
		return nil
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handlers Handlers) {
	envelope, err := EnvelopeFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal envelope", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	slog.InfoContext(ctx, "Processing job message", "type", envelope.Type)

	if err := dispatch(ctx, envelope, handlers); err != nil {
		if isPermanent(err) {
			slog.ErrorContext(ctx, "Dropping malformed job message",
				"type", envelope.Type, "error", err)
			delivery.Nack(false, false)
			return
		}
		slog.ErrorContext(ctx, "Failed to handle job message",
			"type", envelope.Type, "error", err)
		delivery.Nack(false, true) // reject and requeue
		return
	}

	delivery.Ack(false)
	slog.InfoContext(ctx, "Successfully processed job message", "type", envelope.Type)
}

// permanentError marks failures that a redelivery cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}

func dispatch(ctx context.Context, envelope *Envelope, handlers Handlers) error {
	switch envelope.Type {
	case TypeReanalyzeMonth:
		var msg ReanalyzeMonthMessage
		if err := json.Unmarshal(envelope.Payload, &msg); err != nil {
			return permanentError{fmt.Errorf("unmarshal reanalyze payload: %w", err)}
		}
		if handlers.ReanalyzeMonth == nil {
			return permanentError{fmt.Errorf("no handler for %s", envelope.Type)}
		}
		return handlers.ReanalyzeMonth(ctx, msg)
	case TypeExportMonth:
		var msg ExportMonthMessage
		if err := json.Unmarshal(envelope.Payload, &msg); err != nil {
			return permanentError{fmt.Errorf("unmarshal export payload: %w", err)}
		}
		if handlers.ExportMonth == nil {
			return permanentError{fmt.Errorf("no handler for %s", envelope.Type)}
		}
		return handlers.ExportMonth(ctx, msg)
	default:
		return permanentError{fmt.Errorf("unknown message type %q", envelope.Type)}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
