package main

import (
	"context"
	"os"
	"time"

	"flotta/internal/amqp"
	"flotta/internal/cli"
	"flotta/internal/log"
	"flotta/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminder)

	logger.Info("Starting reminder-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The publisher stays nil when AMQP is unavailable; due vehicles are
	// then only logged.
	var publisher services.ReminderPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reminders will only be logged", log.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "queue", cfg.AMQPReminderQueue)
		}
	} else {
		logger.Info("AMQP disabled - reminders will only be logged")
	}

	processor := services.NewReminderProcessor(repo, publisher, services.ReminderConfig{
		Interval:         cfg.ReminderInterval,
		LeadDays:         cfg.ReminderLeadDays,
		MileageThreshold: cfg.MileageDueThreshold,
	})

	if err := processor.Start(context.Background()); err != nil {
		logger.Error("Failed to start reminder processor", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := processor.Stop(stopCtx); err != nil {
			logger.Error("Reminder processor shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Reminder worker running",
		"interval", cfg.ReminderInterval,
		"lead_days", cfg.ReminderLeadDays,
		"mileage_threshold", cfg.MileageDueThreshold,
		"sqlite_db", cfg.SQLiteDBPath)

	cli.WaitForShutdown(ctx, done)
}
