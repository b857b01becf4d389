package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/phonobot/pkg/models"
)

// StageRepository handles the durable stage-session history rows and the
// attempt log hanging off them
type StageRepository struct{}

// NewStageRepository creates a new repository instance
func NewStageRepository() *StageRepository {
	return &StageRepository{}
}

// CreateSession inserts a new stage-history row with zeroed counters
func (r *StageRepository) CreateSession(session *models.StageSession) error {
	query := `
		INSERT INTO stage_sessions (user_id, stage, total_problems, correct_count, try_count, started_at)
		VALUES ($1, $2, $3, 0, 0, $4)
	`
	result, err := DB.Exec(query, session.UserID, session.Stage, session.TotalProblems, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create stage session: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	session.ID = id

	return nil
}

// GetSession returns a stage-history row by ID
func (r *StageRepository) GetSession(id int64) (*models.StageSession, error) {
	var session models.StageSession
	err := DB.Get(&session, "SELECT * FROM stage_sessions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stage session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage session: %v", err)
	}
	return &session, nil
}

// IncrementCorrect bumps the correct-answer counter on a stage row
func (r *StageRepository) IncrementCorrect(id int64) error {
	_, err := DB.Exec("UPDATE stage_sessions SET correct_count = correct_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment correct count: %v", err)
	}
	return nil
}

// IncrementTry bumps the retry counter on a stage row
func (r *StageRepository) IncrementTry(id int64) error {
	_, err := DB.Exec("UPDATE stage_sessions SET try_count = try_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment try count: %v", err)
	}
	return nil
}

// CreateAttempt inserts one attempt row
func (r *StageRepository) CreateAttempt(attempt *models.StageAttempt) error {
	query := `
		INSERT INTO stage_attempts (
			stage_session_id, problem_number, problem_content, answer,
			attempt_number, is_correct, is_reply_correct, audio_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	result, err := DB.Exec(
		query,
		attempt.StageSessionID,
		attempt.ProblemNumber,
		attempt.ProblemContent,
		attempt.Answer,
		attempt.AttemptNumber,
		attempt.IsCorrect,
		attempt.IsReplyCorrect,
		attempt.AudioURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create stage attempt: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	attempt.ID = id

	return nil
}

// GetAttempts returns every attempt of a stage session ordered by problem
// number then attempt number
func (r *StageRepository) GetAttempts(sessionID int64) ([]models.StageAttempt, error) {
	var attempts []models.StageAttempt
	query := `
		SELECT * FROM stage_attempts
		WHERE stage_session_id = $1
		ORDER BY problem_number ASC, attempt_number ASC
	`
	if err := DB.Select(&attempts, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get stage attempts: %v", err)
	}
	return attempts, nil
}
