package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remindbot/internal/logger"
)

const helpText = `I turn messages into reminders. Examples:

<code>8:30 stand-up</code> — today (or tomorrow) at 8:30
<code>01.01 0:00 Happy New Year</code> — next 1st of January
<code>5m tea</code> — in five minutes
<code>-/mon-fri 10-20/1h30m break</code> — weekdays, every 90 min from 10:00 to 20:00
<code>-/1d 10:00!15m meds</code> — daily at 10:00, then every 15 min until you press Done
<code>cron 0 3 * * * backup</code> — five-field cron

Date: <code>d.m.yyyy</code> or <code>yyyy/m/d</code>, missing parts roll forward.
Ranges: <code>from-until/step</code>; steps like <code>2d</code>, <code>1mo</code>, <code>1h30m</code> or weekdays.
Nag: <code>!15m</code> right after the time repeats the reminder until acknowledged.

/list — your reminders
/del [id] — delete
/pause id, /resume id
/settz Europe/Berlin — your timezone
/export — iCalendar file`

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(chatID, "👋 Hi! Send me a time and a text, e.g. <code>8:30 stand-up</code>.\nSee /help for the full format.")
	case "help":
		b.reply(chatID, helpText)
	case "list":
		b.commandList(chatID)
	case "del":
		b.commandDelete(chatID, args)
	case "pause":
		b.commandPauseResume(chatID, args, true)
	case "resume":
		b.commandPauseResume(chatID, args, false)
	case "settz":
		b.commandSetTimezone(chatID, args)
	case "export":
		b.commandExport(chatID)
	default:
		b.reply(chatID, "Unknown command, see /help")
	}
}

func (b *Bot) commandList(chatID int64) {
	reminders, err := b.reminders.List(chatID)
	if err != nil {
		logger.Error("list reminders", "chat", chatID, "error", err)
		b.reply(chatID, "Something went wrong, try again.")
		return
	}
	_, loc := b.reminders.Location(chatID)
	b.reply(chatID, b.reminders.FormatList(reminders, loc))
}

func (b *Bot) commandDelete(chatID int64, args string) {
	if args == "" {
		reminders, err := b.reminders.List(chatID)
		if err != nil || len(reminders) == 0 {
			b.reply(chatID, "Nothing to delete.")
			return
		}
		msg := tgbotapi.NewMessage(chatID, "Which one?")
		msg.ReplyMarkup = deleteKeyboard(reminders)
		if _, err := b.api.Send(msg); err != nil {
			logger.Error("send delete keyboard", "error", err)
		}
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil {
		b.reply(chatID, "Usage: /del 12")
		return
	}
	if err := b.reminders.Delete(chatID, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Reminder #%d not found.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("🗑 Deleted #%d.", id))
}

func (b *Bot) commandPauseResume(chatID int64, args string, pause bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s 12", map[bool]string{true: "pause", false: "resume"}[pause]))
		return
	}
	if pause {
		err = b.reminders.Pause(chatID, id)
	} else {
		err = b.reminders.Resume(chatID, id)
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Reminder #%d not found.", id))
		return
	}
	if pause {
		b.reply(chatID, fmt.Sprintf("⏸ Paused #%d.", id))
	} else {
		b.reply(chatID, fmt.Sprintf("▶️ Resumed #%d.", id))
	}
}

func (b *Bot) commandSetTimezone(chatID int64, args string) {
	if args == "" {
		name, _ := b.reminders.Location(chatID)
		b.reply(chatID, fmt.Sprintf("Your timezone is <b>%s</b>.\nChange it with /settz Europe/Berlin", name))
		return
	}
	if err := b.reminders.SetTimezone(chatID, args); err != nil {
		b.reply(chatID, fmt.Sprintf("Unknown timezone %q. Use an IANA name like Europe/Berlin.", args))
		return
	}
	b.reply(chatID, fmt.Sprintf("🌍 Timezone set to <b>%s</b>.", args))
}

func (b *Bot) commandExport(chatID int64) {
	reminders, err := b.reminders.List(chatID)
	if err != nil {
		logger.Error("export reminders", "chat", chatID, "error", err)
		b.reply(chatID, "Something went wrong, try again.")
		return
	}
	if len(reminders) == 0 {
		b.reply(chatID, "Nothing to export yet.")
		return
	}

	ics, err := b.reminders.ExportCalendar(chatID)
	if err != nil {
		logger.Error("build calendar", "chat", chatID, "error", err)
		b.reply(chatID, "Something went wrong, try again.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "reminders.ics",
		Bytes: []byte(ics),
	})
	if _, err := b.api.Send(doc); err != nil {
		logger.Error("send calendar", "chat", chatID, "error", err)
	}
}
