package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/phonobot/pkg/models"
)

// MasteryRepository handles the append-only mastery history. Records are
// only ever inserted; the newest row for a (user, kc) pair is the current
// mastery state and older rows form the trend the dashboard charts.
type MasteryRepository struct{}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository() *MasteryRepository {
	return &MasteryRepository{}
}

// Latest returns the most recently created record for a (user, kc) pair
func (r *MasteryRepository) Latest(userID, kcID int64) (*models.MasteryRecord, error) {
	var rec models.MasteryRecord
	query := `
		SELECT * FROM mastery_records
		WHERE user_id = $1 AND kc_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	err := DB.Get(&rec, query, userID, kcID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mastery for user %d kc %d: %w", userID, kcID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mastery record: %v", err)
	}
	return &rec, nil
}

// Create appends a new record to the history
func (r *MasteryRepository) Create(rec *models.MasteryRecord) error {
	query := `
		INSERT INTO mastery_records (user_id, kc_id, p_learn, p_transit, p_guess, p_slip)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	result, err := DB.Exec(
		query,
		rec.UserID,
		rec.KCID,
		rec.PLearn,
		rec.PTransit,
		rec.PGuess,
		rec.PSlip,
	)
	if err != nil {
		return fmt.Errorf("failed to create mastery record: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	rec.ID = id

	return nil
}

// HistoryForPair returns the full history for a (user, kc) pair, oldest
// first, for trend reporting
func (r *MasteryRepository) HistoryForPair(userID, kcID int64) ([]models.MasteryRecord, error) {
	var recs []models.MasteryRecord
	query := `
		SELECT * FROM mastery_records
		WHERE user_id = $1 AND kc_id = $2
		ORDER BY created_at ASC, id ASC
	`
	if err := DB.Select(&recs, query, userID, kcID); err != nil {
		return nil, fmt.Errorf("failed to get mastery history: %v", err)
	}
	return recs, nil
}

// HistoryForUser returns every record for a user, oldest first
func (r *MasteryRepository) HistoryForUser(userID int64) ([]models.MasteryRecord, error) {
	var recs []models.MasteryRecord
	query := `
		SELECT * FROM mastery_records
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	if err := DB.Select(&recs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get mastery history: %v", err)
	}
	return recs, nil
}
