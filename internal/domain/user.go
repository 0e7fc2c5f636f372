package domain

import "time"

// User holds per-chat settings; a row exists once the user has set a
// timezone with /settz.
type User struct {
	TelegramID int64
	Timezone   string // IANA zone name, empty means the configured default
	CreatedAt  time.Time
}
