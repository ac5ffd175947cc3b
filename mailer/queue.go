package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flashapp/flashauth"
)

// DefaultChannel is the broker queue name for email jobs.
const DefaultChannel = "emails"

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations the mailer needs.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Queue publishes email jobs onto a backend channel. It satisfies the
// engine's EmailQueue contract.
type Queue struct {
	backend Backend
	channel string
}

var _ flashauth.EmailQueue = (*Queue)(nil)

// NewQueue wraps a backend. An empty channel falls back to [DefaultChannel].
func NewQueue(backend Backend, channel string) *Queue {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Queue{backend: backend, channel: channel}
}

// Enqueue publishes the job as JSON. The job type travels as a message
// attribute so consumers can route without decoding the body.
func (q *Queue) Enqueue(ctx context.Context, job flashauth.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	_, err = q.backend.Publish(ctx, q.channel, body, map[string]string{
		"type": job.Type,
	})
	return err
}

// Close closes the underlying backend.
func (q *Queue) Close() error {
	return q.backend.Close()
}
