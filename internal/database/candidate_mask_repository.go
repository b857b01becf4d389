package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
)

// CandidateMaskRepository persists the per-(user, kc) exhaustion bitmask.
// The mask survives across sessions so "seen recently" carries over; it is
// reset only when a draw exhausts the pool.
type CandidateMaskRepository struct{}

// NewCandidateMaskRepository creates a new repository instance
func NewCandidateMaskRepository() *CandidateMaskRepository {
	return &CandidateMaskRepository{}
}

// Get returns the stored mask for a (user, kc) pair, or 0 if the pair has
// never drawn. The column holds the mask's int64 bit pattern:
// database/sql rejects uint64 values with the high bit set, and bit 63 is
// a legal pool position.
func (r *CandidateMaskRepository) Get(userID, kcID int64) (uint64, error) {
	var stored int64
	err := DB.Get(&stored, "SELECT mask FROM candidate_masks WHERE user_id = $1 AND kc_id = $2", userID, kcID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get candidate mask: %v", err)
	}
	return uint64(stored), nil
}

// Save upserts the mask for a (user, kc) pair
func (r *CandidateMaskRepository) Save(userID, kcID int64, mask uint64) error {
	dbType := os.Getenv("DB_TYPE")

	var query string
	if dbType == "postgres" {
		query = `
			INSERT INTO candidate_masks (user_id, kc_id, mask, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, kc_id) DO UPDATE SET
				mask = EXCLUDED.mask,
				updated_at = NOW()
		`
	} else {
		query = `
			INSERT INTO candidate_masks (user_id, kc_id, mask, updated_at)
			VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
			ON CONFLICT (user_id, kc_id) DO UPDATE SET
				mask = excluded.mask,
				updated_at = CURRENT_TIMESTAMP
		`
	}

	if _, err := DB.Exec(query, userID, kcID, int64(mask)); err != nil {
		return fmt.Errorf("failed to save candidate mask: %v", err)
	}
	return nil
}
