package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/scheduler"
)

// Acknowledgement keyboard attached to nagging deliveries.
func ackKeyboard(ack scheduler.AckToken) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"✅ Done",
				fmt.Sprintf("ack:%d:%s", ack.ReminderID, ack.DeliveryID),
			),
		),
	)
}

// Deletion keyboard for /del without an id.
func deleteKeyboard(reminders []*domain.Reminder) *tgbotapi.InlineKeyboardMarkup {
	if len(reminders) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range reminders {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 #%d %s", r.ID, truncate(r.Description, 25)),
				fmt.Sprintf("del:%d", r.ID),
			),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
