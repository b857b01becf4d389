package models

import "time"

// Stage identifies a curriculum unit. Each stage exercises its own set of
// knowledge components and renders its own problem variant.
type Stage string

const (
	StageVowelChoice     Stage = "vowel_choice"
	StageConsonantChoice Stage = "consonant_choice"
	StageSyllableCount   Stage = "syllable_count"
	StagePhonemeCount    Stage = "phoneme_count"
)

// KnowledgeComponent represents a discrete, independently trackable language
// skill, e.g. a consonant's place of articulation in onset position.
// Reference data: read-only at runtime, loaded by the seed importer.
type KnowledgeComponent struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`         // Stable identifier, e.g. "onset_labial"
	Category  string    `json:"category" db:"category"` // Phonological classification, e.g. "labial onset"
	Stage     Stage     `json:"stage" db:"stage"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
