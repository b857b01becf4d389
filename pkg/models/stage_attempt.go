package models

import "time"

// StageAttempt is the durable record of one submitted answer. Created on
// each submission, never mutated.
type StageAttempt struct {
	ID             int64     `json:"id" db:"id"`
	StageSessionID int64     `json:"stage_session_id" db:"stage_session_id"`
	ProblemNumber  int       `json:"problem_number" db:"problem_number"`
	ProblemContent string    `json:"problem_content" db:"problem_content"`
	Answer         string    `json:"answer" db:"answer"`
	AttemptNumber  int       `json:"attempt_number" db:"attempt_number"` // 1 on first try, >1 on retries
	IsCorrect      bool      `json:"is_correct" db:"is_correct"`
	IsReplyCorrect bool      `json:"is_reply_correct" db:"is_reply_correct"` // Pronunciation verdict, may lag the answer
	AudioURL       string    `json:"audio_url" db:"audio_url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
