package models

import "time"

// BKT model defaults applied the first time a user meets a knowledge
// component.
const (
	DefaultPLearn   = 0.0
	DefaultPTransit = 0.1
	DefaultPGuess   = 0.2
	DefaultPSlip    = 0.1
)

// MasteryRecord is one row of the append-only mastery history for a
// (user, knowledge component) pair. A new row is inserted after every
// observed attempt; rows are never updated in place. The most recently
// created row is the pair's current mastery state.
type MasteryRecord struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	KCID      int64     `json:"kc_id" db:"kc_id"`
	PLearn    float64   `json:"p_learn" db:"p_learn"`     // Probability the KC is mastered
	PTransit  float64   `json:"p_transit" db:"p_transit"` // Probability of learning per opportunity
	PGuess    float64   `json:"p_guess" db:"p_guess"`     // Probability of a lucky correct answer
	PSlip     float64   `json:"p_slip" db:"p_slip"`       // Probability of a careless mistake
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewDefaultMasteryRecord returns the initial record for a pair that has
// never been observed.
func NewDefaultMasteryRecord(userID, kcID int64) *MasteryRecord {
	return &MasteryRecord{
		UserID:   userID,
		KCID:     kcID,
		PLearn:   DefaultPLearn,
		PTransit: DefaultPTransit,
		PGuess:   DefaultPGuess,
		PSlip:    DefaultPSlip,
	}
}
