package scheduler

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/mastery"
	"github.com/example/phonobot/pkg/models"
)

// Default window inside which practice reminders may be sent
const (
	DefaultReminderStartHour = 8
	DefaultReminderEndHour   = 20
)

// reminderKCLimit is how many weak components a reminder names
const reminderKCLimit = 3

// Sweeper drops expired training sessions.
type Sweeper interface {
	SweepExpired()
}

// Notifier sends a practice reminder naming the learner's weakest
// knowledge components.
type Notifier interface {
	SendReminder(chatID int64, weakest []mastery.Weakness) error
}

// Scheduler manages the background jobs: the daily expired-session sweep
// and the hourly reminder pass.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	notifier  Notifier
	mastery   *mastery.Service
}

// New creates a scheduler instance
func New(sweeper Sweeper, notifier Notifier, masterySvc *mastery.Service) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		notifier:  notifier,
		mastery:   masterySvc,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Day().At("03:00").Do(s.sweeper.SweepExpired)

	if s.notifier != nil {
		s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	}

	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders sends a practice nudge to every learner whose
// reminder hour is now
func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().Hour()

	startHour := envHour("REMINDER_START_HOUR", DefaultReminderStartHour)
	endHour := envHour("REMINDER_END_HOUR", DefaultReminderEndHour)

	if currentHour < startHour || currentHour > endHour {
		return
	}

	userRepo := database.NewUserRepository()
	users, err := userRepo.GetUsersForNotification(currentHour)
	if err != nil {
		log.Printf("Error getting users for reminders: %v", err)
		return
	}

	for _, user := range users {
		weakest, err := s.weakestAcrossStages(user.ID)
		if err != nil {
			log.Printf("Error computing weakest components for user %d: %v", user.ID, err)
			continue
		}
		if len(weakest) == 0 {
			continue
		}

		if err := s.notifier.SendReminder(user.TelegramChatID, weakest); err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.ID, err)
		}
	}
}

// weakestAcrossStages collects each stage's weakest components and keeps
// the overall lowest rates
func (s *Scheduler) weakestAcrossStages(userID int64) ([]mastery.Weakness, error) {
	stages := []models.Stage{
		models.StageVowelChoice,
		models.StageConsonantChoice,
		models.StageSyllableCount,
		models.StagePhonemeCount,
	}

	var all []mastery.Weakness
	for _, stage := range stages {
		weakest, err := s.mastery.WeakestForStage(userID, stage, reminderKCLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, weakest...)
	}

	// Keep the globally weakest few; the per-stage lists are already
	// sorted, a single pass suffices for this size.
	out := make([]mastery.Weakness, 0, reminderKCLimit)
	for len(out) < reminderKCLimit && len(all) > 0 {
		best := 0
		for i := 1; i < len(all); i++ {
			if all[i].Rate < all[best].Rate {
				best = i
			}
		}
		out = append(out, all[best])
		all = append(all[:best], all[best+1:]...)
	}
	return out, nil
}

func envHour(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return fallback
}
