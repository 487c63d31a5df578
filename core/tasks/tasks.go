package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Task is one unit of background work. Payload is handler-specific JSON.
type Task struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues a task for asynchronous at-least-once execution.
type Dispatcher interface {
	Enqueue(ctx context.Context, task Task) error
}

// Handler processes one task payload. A nil return acknowledges the task;
// an error triggers a retry up to the configured attempt bound.
type Handler func(ctx context.Context, payload []byte) error

// NewAMQPDispatcher returns a Dispatcher publishing persistent messages to
// the configured durable queue. The connection is established per publish so
// a broker restart never leaves the dispatcher holding a dead channel.
func NewAMQPDispatcher(cfg Config, log *zap.Logger) Dispatcher {
	return &amqpDispatcher{cfg: cfg, log: log}
}

type amqpDispatcher struct {
	cfg Config
	log *zap.Logger
}

func (d *amqpDispatcher) Enqueue(ctx context.Context, task Task) error {
	conn, err := amqp.Dial(d.cfg.URL)
	if err != nil {
		d.log.Error("rabbitmq dial failed", zap.Error(err))
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		d.log.Error("rabbitmq channel open failed", zap.Error(err))
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so tasks survive broker restarts.
	if _, err := ch.QueueDeclare(d.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", d.cfg.Queue, false, false, pub); err != nil {
		d.log.Error("rabbitmq publish failed", zap.Error(err), zap.String("task", task.Name))
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	return nil
}

// NewInlineDispatcher returns a Dispatcher that executes registered handlers
// synchronously with the same bounded-retry semantics as the consumer. It is
// the fallback when AMQP is disabled, and the implementation used in tests.
func NewInlineDispatcher(cfg Config, registry *Registry, log *zap.Logger) Dispatcher {
	return &inlineDispatcher{cfg: cfg, registry: registry, log: log}
}

type inlineDispatcher struct {
	cfg      Config
	registry *Registry
	log      *zap.Logger
}

func (d *inlineDispatcher) Enqueue(ctx context.Context, task Task) error {
	handler, ok := d.registry.get(task.Name)
	if !ok {
		return fmt.Errorf("no handler registered for task %q", task.Name)
	}
	return runWithRetry(ctx, d.cfg, d.log, task.Name, handler, task.Payload)
}

// runWithRetry invokes the handler with bounded attempts and exponential
// backoff between failures.
func runWithRetry(ctx context.Context, cfg Config, log *zap.Logger, name string, handler Handler, payload []byte) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Duration(cfg.BackoffSeconds) * time.Second

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = handler(ctx, payload)
		if err == nil {
			return nil
		}
		log.Warn("task attempt failed",
			zap.String("task", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("task %q failed after %d attempts: %w", name, attempts, err)
}
