package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/pattern"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// The store is written from the scheduler goroutine and from update
	// handlers; a single connection serialises them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			timezone TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			description TEXT NOT NULL,
			timezone TEXT NOT NULL,
			pattern TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_paused INTEGER NOT NULL DEFAULT 0,
			next_fire DATETIME,
			pending_since DATETIME,
			pending_delivery_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_id ON reminders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_active_next ON reminders(is_active, next_fire)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_active_pending ON reminders(is_active, pending_since)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// --- users ---------------------------------------------------------------

func (s *Storage) GetUserTimezone(telegramID int64) (string, error) {
	var tz string
	err := s.db.QueryRow(`SELECT timezone FROM users WHERE telegram_id = ?`, telegramID).Scan(&tz)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user timezone: %w", err)
	}
	return tz, nil
}

func (s *Storage) SetUserTimezone(telegramID int64, tz string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (telegram_id, timezone) VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET timezone = excluded.timezone`,
		telegramID, tz)
	if err != nil {
		return fmt.Errorf("set user timezone: %w", err)
	}
	return nil
}

// --- reminders -----------------------------------------------------------

const reminderColumns = `id, user_id, description, timezone, pattern,
	is_active, is_paused, next_fire, pending_since, pending_delivery_id, created_at`

func (s *Storage) CreateReminder(r *domain.Reminder) error {
	pat, err := json.Marshal(r.Pattern)
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO reminders (user_id, description, timezone, pattern, is_active, is_paused, next_fire)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Description, r.Timezone, string(pat), r.IsActive, r.IsPaused, nullTime(r.NextFire))
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return nil
}

func (s *Storage) GetReminder(id int64) (*domain.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *Storage) ListRemindersByUser(userID int64) ([]*domain.Reminder, error) {
	rows, err := s.db.Query(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = ? AND is_active = 1
		ORDER BY is_paused, next_fire IS NULL, next_fire, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// LoadDueWindow returns active, unpaused reminders whose next fire is within
// the horizon or which await acknowledgement, ordered by the earlier of
// next fire and pending-since.
func (s *Storage) LoadDueWindow(until time.Time) ([]*domain.Reminder, error) {
	rows, err := s.db.Query(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE is_active = 1 AND is_paused = 0
		  AND (next_fire <= ? OR pending_since IS NOT NULL)
		ORDER BY MIN(COALESCE(next_fire, pending_since), COALESCE(pending_since, next_fire)), id`, until.UTC())
	if err != nil {
		return nil, fmt.Errorf("load due window: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *Storage) SetNextFire(id int64, next *time.Time) error {
	_, err := s.db.Exec(`UPDATE reminders SET next_fire = ? WHERE id = ?`, nullTime(next), id)
	if err != nil {
		return fmt.Errorf("set next fire: %w", err)
	}
	return nil
}

// SetPendingAck records (or clears, with a nil since) the awaiting-ack
// state of a reminder.
func (s *Storage) SetPendingAck(id int64, since *time.Time, deliveryID string) error {
	_, err := s.db.Exec(`
		UPDATE reminders SET pending_since = ?, pending_delivery_id = ? WHERE id = ?`,
		nullTime(since), deliveryID, id)
	if err != nil {
		return fmt.Errorf("set pending ack: %w", err)
	}
	return nil
}

func (s *Storage) MarkInactive(id int64) error {
	_, err := s.db.Exec(`
		UPDATE reminders SET is_active = 0, next_fire = NULL, pending_since = NULL, pending_delivery_id = ''
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark inactive: %w", err)
	}
	return nil
}

func (s *Storage) SetPaused(id int64, paused bool) error {
	_, err := s.db.Exec(`UPDATE reminders SET is_paused = ? WHERE id = ?`, paused, id)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

func (s *Storage) DeleteReminder(id int64) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// --- scanning ------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*domain.Reminder, error) {
	var (
		r         domain.Reminder
		pat       string
		nextFire  sql.NullTime
		pendSince sql.NullTime
		createdAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Description, &r.Timezone, &pat,
		&r.IsActive, &r.IsPaused, &nextFire, &pendSince, &r.PendingDeliveryID, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Pattern = &pattern.Pattern{}
	if err := json.Unmarshal([]byte(pat), r.Pattern); err != nil {
		return nil, fmt.Errorf("unmarshal pattern of reminder %d: %w", r.ID, err)
	}
	if nextFire.Valid {
		t := nextFire.Time.UTC()
		r.NextFire = &t
	}
	if pendSince.Valid {
		t := pendSince.Time.UTC()
		r.PendingSince = &t
	}
	if createdAt.Valid {
		r.CreatedAt = createdAt.Time.UTC()
	}
	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]*domain.Reminder, error) {
	var reminders []*domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
