package database

import (
	"fmt"

	"github.com/example/phonobot/pkg/models"
)

// CandidateItemRepository handles database operations for the candidate
// pools backing each knowledge component
type CandidateItemRepository struct{}

// NewCandidateItemRepository creates a new repository instance
func NewCandidateItemRepository() *CandidateItemRepository {
	return &CandidateItemRepository{}
}

// GetByKC returns a knowledge component's candidate pool ordered by
// position. Position is the item's bit index in the exhaustion mask.
func (r *CandidateItemRepository) GetByKC(kcID int64) ([]models.CandidateItem, error) {
	var items []models.CandidateItem
	err := DB.Select(&items, "SELECT * FROM candidate_items WHERE kc_id = $1 ORDER BY position ASC", kcID)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate items: %v", err)
	}
	return items, nil
}

// Create inserts a new candidate item
func (r *CandidateItemRepository) Create(item *models.CandidateItem) error {
	query := `
		INSERT INTO candidate_items (kc_id, position, display, audio_url)
		VALUES ($1, $2, $3, $4)
	`
	result, err := DB.Exec(query, item.KCID, item.Position, item.Display, item.AudioURL)
	if err != nil {
		return fmt.Errorf("failed to create candidate item: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	item.ID = id

	return nil
}
