package tasks

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Registry maps task names to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates a handler with a task name.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
}

func (r *Registry) get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Consumer pulls tasks from the queue and runs their handlers with bounded
// retry. Messages whose handler keeps failing are dropped (nacked without
// requeue) so one poison task cannot wedge the queue.
type Consumer struct {
	cfg      Config
	registry *Registry
	log      *zap.Logger
}

// NewConsumer creates a task queue consumer.
func NewConsumer(cfg Config, registry *Registry, log *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, registry: registry, log: log}
}

// Run consumes tasks until the context is cancelled or the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return err
	}

	// One in-flight task at a time; retries are strictly sequential.
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, open := <-deliveries:
			if !open {
				return nil
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var task Task
	if err := json.Unmarshal(delivery.Body, &task); err != nil {
		c.log.Error("malformed task payload", zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}

	handler, ok := c.registry.get(task.Name)
	if !ok {
		c.log.Error("no handler registered for task", zap.String("task", task.Name))
		_ = delivery.Nack(false, false)
		return
	}

	if err := runWithRetry(ctx, c.cfg, c.log, task.Name, handler, task.Payload); err != nil {
		c.log.Error("task exhausted retries", zap.String("task", task.Name), zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}
