package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/flashapp/flashauth"
)

// Sender delivers a single email job. Implementations are expected to be
// idempotent per job: the broker redelivers on nack, so a job may arrive
// more than once.
type Sender interface {
	Send(ctx context.Context, job flashauth.EmailJob) error
}

// Worker consumes the email channel and hands each decoded job to a Sender.
type Worker struct {
	backend Backend
	channel string
	sender  Sender
	log     *slog.Logger
}

// NewWorker builds a worker. A nil logger falls back to slog.Default.
func NewWorker(backend Backend, channel string, sender Sender, log *slog.Logger) *Worker {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{backend: backend, channel: channel, sender: sender, log: log}
}

// Run consumes until ctx is canceled. Undecodable jobs are acked and
// dropped; redelivering a poison message forever helps nobody. Send
// failures are nacked for redelivery.
func (w *Worker) Run(ctx context.Context) error {
	return w.backend.Subscribe(ctx, w.channel, func(ctx context.Context, msg Message) error {
		var job flashauth.EmailJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.log.Warn("dropping undecodable email job",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
			return nil
		}

		if err := w.sender.Send(ctx, job); err != nil {
			w.log.Error("email send failed, requeueing",
				slog.String("message_id", msg.ID),
				slog.String("type", job.Type),
				slog.String("error", err.Error()))
			return err
		}

		w.log.Info("email sent",
			slog.String("message_id", msg.ID),
			slog.String("type", job.Type),
			slog.String("to", job.Data.To))
		return nil
	})
}

// LogSender is a development Sender that records the email instead of
// delivering it.
type LogSender struct {
	Log *slog.Logger
}

// Send logs the job at info level.
func (s *LogSender) Send(_ context.Context, job flashauth.EmailJob) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	if job.Data.To == "" {
		return errors.New("email job has no recipient")
	}
	log.Info("outgoing email",
		slog.String("type", job.Type),
		slog.String("to", job.Data.To),
		slog.String("username", job.Data.Username),
		slog.String("verification_link", job.Data.VerificationLink))
	return nil
}
