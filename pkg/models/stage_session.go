package models

import "time"

// StageSession is the durable history row for one timed run through a stage.
// Counters start at zero and are incremented as attempts come in; the row
// survives process restarts, unlike the in-memory session entry it is
// linked to.
type StageSession struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Stage         Stage     `json:"stage" db:"stage"`
	TotalProblems int       `json:"total_problems" db:"total_problems"`
	CorrectCount  int       `json:"correct_count" db:"correct_count"`
	TryCount      int       `json:"try_count" db:"try_count"` // Retries beyond the first attempt per problem
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
