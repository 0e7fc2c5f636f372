package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/remindbot/config"
	"github.com/tazhate/remindbot/internal/bot"
	"github.com/tazhate/remindbot/internal/logger"
	"github.com/tazhate/remindbot/internal/scheduler"
	"github.com/tazhate/remindbot/internal/service"
	"github.com/tazhate/remindbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		logger.Error("setup logger", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reminderSvc := service.NewReminderService(store, cfg.Timezone)

	tgBot, err := bot.New(cfg, reminderSvc)
	if err != nil {
		logger.Error("init bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(store, cfg.Timezone)
	sched.SetSender(tgBot)
	reminderSvc.SetWaker(sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler", "error", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			logger.Error("bot", "error", err)
		}
	}()

	logger.Info("remindbot started", "tz", cfg.Timezone.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		logger.Error("stop bot", "error", err)
	}

	logger.Info("remindbot stopped")
}
