package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/phonobot/internal/mastery"
)

// Telegram sends practice reminders to learners with a linked Telegram
// chat.
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram creates a notifier from a bot token
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %v", err)
	}
	return &Telegram{api: api}, nil
}

// SendReminder nudges a learner to practice their weakest skills
func (t *Telegram) SendReminder(chatID int64, weakest []mastery.Weakness) error {
	var sb strings.Builder
	sb.WriteString("Time to practice! Your trickiest sounds right now:\n")
	for _, w := range weakest {
		sb.WriteString(fmt.Sprintf("• %s (%.0f%% expected correct)\n", w.KC.Category, w.Rate*100))
	}
	sb.WriteString("Open the app and run a quick stage to sharpen them.")

	msg := tgbotapi.NewMessage(chatID, sb.String())
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %v", err)
	}
	return nil
}
