package models

import "time"

// User represents a learner enrolled in the trainer
type User struct {
	ID                  int64     `json:"id" db:"id"`
	Username            string    `json:"username" db:"username"`
	FirstName           string    `json:"first_name" db:"first_name"`
	LastName            string    `json:"last_name" db:"last_name"`
	TelegramChatID      int64     `json:"telegram_chat_id" db:"telegram_chat_id"` // 0 when the learner has not linked Telegram
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for practice reminders (0-23)
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
