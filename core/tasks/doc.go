// Package tasks provides asynchronous, at-least-once task execution over
// RabbitMQ.
//
// A Dispatcher enqueues named tasks as persistent messages on a durable
// queue; the Consumer runs registered handlers with bounded attempts and
// exponential backoff. When AMQP is disabled, an inline dispatcher runs the
// same handlers synchronously with identical retry semantics.
//
// The one task wired today is remote access-code deletion, which is the
// operation explicitly deferred to a retryable background task when invoked
// from the hot path.
package tasks
