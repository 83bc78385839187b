package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"hn_newsletter/internal/config"
	"hn_newsletter/internal/mail"
	"hn_newsletter/internal/publisher"
	"hn_newsletter/internal/render"
	"hn_newsletter/internal/service"
	"hn_newsletter/internal/source/hackernews"
	"hn_newsletter/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// The template file is read once per run; a broken template fails here,
	// before anything external is touched.
	templateData, err := os.ReadFile(cfg.Digest.TemplatePath)
	if err != nil {
		logger.Error("failed to read message template", "path", cfg.Digest.TemplatePath, "error", err)
		os.Exit(1)
	}

	renderer, err := render.New(string(templateData), cfg.Digest.UnsubscribeURL)
	if err != nil {
		logger.Error("invalid message template", "path", cfg.Digest.TemplatePath, "error", err)
		os.Exit(1)
	}

	// Run-report publisher is optional infrastructure.
	var reportPublisher service.ReportPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		reportPublisher = rabbitMQ
	}

	subscriberStore := postgres.NewSubscriberStore(db)

	hnSource := hackernews.New(hackernews.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		Workers:        cfg.API.Workers,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
	}, logger)

	mailClient := mail.NewClient(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	}, logger)

	runService := service.NewRunService(
		subscriberStore,
		hnSource,
		renderer,
		mailerAdapter{client: mailClient},
		reportPublisher,
		logger,
		service.Config{
			Subject:   cfg.SMTP.Subject,
			SendEmpty: cfg.Digest.SendEmpty,
		},
	)

	logger.Info("starting digest run",
		"source", hnSource.Name(),
		"smtp_host", cfg.SMTP.Host,
	)

	report, err := runService.Run(context.Background())
	if err != nil {
		logger.Error("digest run failed", "error", err)
		os.Exit(1)
	}

	// Partial per-recipient failures are reported but the run still counts
	// as completed.
	logger.Info("digest run finished",
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
}

// mailerAdapter narrows *mail.Client to the service.Mailer seam.
type mailerAdapter struct {
	client *mail.Client
}

func (m mailerAdapter) Open(ctx context.Context) (service.MailSession, error) {
	session, err := m.client.Open(ctx)
	if err != nil {
		// A typed nil *mail.Session must not leak into the interface
		// value; callers check it against plain nil.
		return nil, err
	}
	return session, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
