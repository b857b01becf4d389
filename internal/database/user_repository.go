package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/phonobot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	var user models.User
	err := DB.Get(&user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return &user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (
			username, first_name, last_name, telegram_chat_id,
			notification_enabled, notification_hour
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	result, err := DB.Exec(
		query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.TelegramChatID,
		user.NotificationEnabled,
		user.NotificationHour,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	user.ID = id

	return nil
}

// GetUsersForNotification returns users who opted into reminders at the
// given hour and have a linked Telegram chat
func (r *UserRepository) GetUsersForNotification(hour int) ([]models.User, error) {
	var users []models.User
	query := `
		SELECT * FROM users
		WHERE notification_enabled = true
		  AND notification_hour = $1
		  AND telegram_chat_id != 0
	`
	if err := DB.Select(&users, query, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %v", err)
	}
	return users, nil
}
