package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remindbot/internal/logger"
	"github.com/tazhate/remindbot/internal/pattern"
	"github.com/tazhate/remindbot/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(update.Message)
	}
}

// handleText treats any plain message as a reminder line.
func (b *Bot) handleText(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	r, err := b.reminders.Create(chatID, msg.Text)
	if err != nil {
		b.reply(chatID, describeCreateError(err))
		return
	}

	_, loc := b.reminders.Location(chatID)
	confirm := fmt.Sprintf("✅ Reminder #%d set", r.ID)
	if r.NextFire != nil {
		confirm += fmt.Sprintf(", next fire %s", r.NextFire.In(loc).Format("02.01.2006 15:04"))
	}
	if pat := r.Pattern.String(); pat != "" {
		confirm += fmt.Sprintf(" [%s]", pat)
	}
	b.reply(chatID, confirm)
}

func describeCreateError(err error) string {
	var perr *pattern.ParseError
	switch {
	case errors.As(err, &perr):
		return fmt.Sprintf("⚠️ Can't read that: at character %d I expected %s.\nTry /help for the format.",
			perr.Pos+1, strings.Join(perr.Expected, " or "))
	case errors.Is(err, pattern.ErrPastInstant):
		return "⚠️ That time is already in the past."
	case errors.Is(err, service.ErrNoFutureOccurrence):
		return "⚠️ That schedule has no future occurrence."
	case errors.Is(err, service.ErrEmptyText):
		return "⚠️ What should I remind you about? Add a description after the time."
	default:
		logger.Error("create reminder", "error", err)
		return "Something went wrong, try again."
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	verb, rest, _ := strings.Cut(cb.Data, ":")
	switch verb {
	case "ack":
		idStr, deliveryID, ok := strings.Cut(rest, ":")
		if !ok {
			b.answerCallback(cb.ID, "")
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			b.answerCallback(cb.ID, "")
			return
		}
		switch err := b.reminders.Acknowledge(chatID, id, deliveryID); {
		case err == nil:
			b.answerCallback(cb.ID, "Done ✅")
			b.clearKeyboard(chatID, cb.Message.MessageID)
		case errors.Is(err, service.ErrStaleDelivery):
			b.answerCallback(cb.ID, "Already superseded by a newer reminder")
			b.clearKeyboard(chatID, cb.Message.MessageID)
		default:
			logger.Error("acknowledge", "reminder", id, "error", err)
			b.answerCallback(cb.ID, "Failed, try again")
		}

	case "del":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			b.answerCallback(cb.ID, "")
			return
		}
		if err := b.reminders.Delete(chatID, id); err != nil {
			b.answerCallback(cb.ID, "Not found")
			return
		}
		b.answerCallback(cb.ID, fmt.Sprintf("Deleted #%d", id))
		b.clearKeyboard(chatID, cb.Message.MessageID)

	default:
		b.answerCallback(cb.ID, "")
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logger.Warn("answer callback", "error", err)
	}
}

func (b *Bot) clearKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		logger.Warn("clear keyboard", "error", err)
	}
}
