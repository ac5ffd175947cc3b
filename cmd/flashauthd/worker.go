package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flashapp/flashauth/mailer"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the email delivery worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		if cfg.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required")
		}

		backend, err := mailer.NewRabbitMQBackend(mailer.RabbitMQConfig{
			URL:           cfg.RabbitMQURL,
			QueueDurable:  true,
			PrefetchCount: 8,
		})
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer backend.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		worker := mailer.NewWorker(backend, mailer.DefaultChannel, &mailer.LogSender{Log: log}, log)
		log.Info("email worker started")
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
