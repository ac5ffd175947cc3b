package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/flashapp/flashauth"
	"github.com/flashapp/flashauth/directory"
	"github.com/flashapp/flashauth/httpapi"
	"github.com/flashapp/flashauth/mailer"
	"github.com/flashapp/flashauth/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flashauth HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		db, err := directory.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		var mailQueue flashauth.EmailQueue
		if cfg.RabbitMQURL != "" {
			backend, err := mailer.NewRabbitMQBackend(mailer.RabbitMQConfig{
				URL:          cfg.RabbitMQURL,
				QueueDurable: true,
			})
			if err != nil {
				return fmt.Errorf("connect rabbitmq: %w", err)
			}
			queue := mailer.NewQueue(backend, mailer.DefaultChannel)
			defer queue.Close()
			mailQueue = queue
		} else {
			log.Warn("RABBITMQ_URL not set, verification emails disabled")
		}

		engineCfg := flashauth.DefaultConfig()
		engineCfg.Token.AccessSecret = []byte(cfg.AccessSecret)
		engineCfg.Token.RefreshSecret = []byte(cfg.RefreshSecret)
		engineCfg.Token.VerificationSecret = []byte(cfg.VerificationSecret)
		engineCfg.Mail.FrontendURL = cfg.FrontendURL

		engine, err := flashauth.New().
			WithConfig(engineCfg).
			WithRedis(redisClient).
			WithDirectory(directory.NewStore(db)).
			WithEmailQueue(mailQueue).
			WithAuditSink(flashauth.NewJSONWriterSink(os.Stdout)).
			Build()
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		defer engine.Close()

		server := httpapi.New(engine, redisClient, httpapi.ServerConfig{
			Port: cfg.Port,
			Cookies: middleware.CookieConfig{
				Domain: cfg.CookieDomain,
				Secure: cfg.CookieSecure,
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info("listening", slog.Int("port", cfg.Port))
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	},
}
