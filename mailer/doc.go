// Package mailer moves verification emails through a message broker.
//
// The engine enqueues jobs through Queue and never waits for delivery; a
// separate Worker process consumes the queue and hands each job to a
// Sender. The broker is abstracted behind Backend so tests can run against
// an in-memory implementation while production uses RabbitMQ.
package mailer
