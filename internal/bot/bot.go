package bot

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remindbot/config"
	"github.com/tazhate/remindbot/internal/logger"
	"github.com/tazhate/remindbot/internal/scheduler"
	"github.com/tazhate/remindbot/internal/service"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	reminders *service.ReminderService
	server    *http.Server
}

func New(cfg *config.Config, reminderSvc *service.ReminderService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	// Dispatch attempts are bounded by the scheduler; bound the transport
	// the same way.
	api.Client = &http.Client{Timeout: 30 * time.Second}

	logger.Info("authorized", "bot", api.Self.UserName)

	b := &Bot{
		api:       api,
		cfg:       cfg,
		reminders: reminderSvc,
	}
	b.setCommands()
	return b, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "list", Description: "📋 List reminders"},
		{Command: "del", Description: "🗑 Delete a reminder"},
		{Command: "pause", Description: "⏸ Pause a reminder"},
		{Command: "resume", Description: "▶️ Resume a reminder"},
		{Command: "settz", Description: "🌍 Set your timezone"},
		{Command: "export", Description: "📆 Export as iCalendar"},
		{Command: "help", Description: "❓ How to write reminders"},
	}
	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		logger.Warn("set commands", "error", err)
	}
}

// Start receives updates until ctx is cancelled: via webhook when a webhook
// URL is configured, long polling otherwise.
func (b *Bot) Start(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	if b.cfg.WebhookURL != "" {
		if err := b.setupWebhook(); err != nil {
			return err
		}
		updates = b.api.ListenForWebhook("/bot")

		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})

		b.server = &http.Server{Addr: ":" + b.cfg.ServerPort}
		go func() {
			logger.Info("webhook server listening", "port", b.cfg.ServerPort)
			if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server", "error", err)
			}
		}()
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates = b.api.GetUpdatesChan(u)
		logger.Info("long polling started")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) setupWebhook() error {
	wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL + "/bot")
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		logger.Warn("webhook last error", "message", info.LastErrorMessage)
	}
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

// Send implements scheduler.Sender. A non-nil ack token attaches the "Done"
// affordance that closes a nag cycle.
func (b *Bot) Send(ctx context.Context, userID int64, text string, ack *scheduler.AckToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, "🔔 <b>Reminder</b>\n\n"+html.EscapeString(text))
	msg.ParseMode = tgbotapi.ModeHTML
	if ack != nil {
		msg.ReplyMarkup = ackKeyboard(*ack)
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		logger.Error("send message", "chat", chatID, "error", err)
	}
}
