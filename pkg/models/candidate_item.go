package models

import "time"

// CandidateItem is one practice item eligible for a knowledge component
// (a letter, syllable or short word). Position is the item's fixed index
// inside its KC's pool and doubles as its bit index in the exhaustion mask.
type CandidateItem struct {
	ID        int64     `json:"id" db:"id"`
	KCID      int64     `json:"kc_id" db:"kc_id"`
	Position  int       `json:"position" db:"position"`
	Display   string    `json:"display" db:"display"`
	AudioURL  string    `json:"audio_url" db:"audio_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
