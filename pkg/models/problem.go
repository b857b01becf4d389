package models

// ProblemDetail carries the fields specific to one stage's problem variant.
// One implementation exists per stage type.
type ProblemDetail interface {
	Stage() Stage
	// ExpectedAnswerCount is how many answers the client should collect
	// before submitting.
	ExpectedAnswerCount() int
}

// VowelChoiceDetail asks the learner to pick the vowel they heard.
type VowelChoiceDetail struct {
	Choices []string `json:"choices"`
}

func (VowelChoiceDetail) Stage() Stage               { return StageVowelChoice }
func (d VowelChoiceDetail) ExpectedAnswerCount() int { return 1 }

// ConsonantChoiceDetail asks the learner to pick the consonant they heard.
type ConsonantChoiceDetail struct {
	Choices []string `json:"choices"`
}

func (ConsonantChoiceDetail) Stage() Stage               { return StageConsonantChoice }
func (d ConsonantChoiceDetail) ExpectedAnswerCount() int { return 1 }

// SyllableCountDetail asks the learner to tap out the syllables of a word.
type SyllableCountDetail struct {
	SyllableCount int `json:"syllable_count"`
}

func (SyllableCountDetail) Stage() Stage               { return StageSyllableCount }
func (d SyllableCountDetail) ExpectedAnswerCount() int { return d.SyllableCount }

// PhonemeCountDetail asks the learner to segment a word into phonemes.
type PhonemeCountDetail struct {
	PhonemeCount int `json:"phoneme_count"`
}

func (PhonemeCountDetail) Stage() Stage               { return StagePhonemeCount }
func (d PhonemeCountDetail) ExpectedAnswerCount() int { return d.PhonemeCount }

// ProblemDescriptor is one generated practice problem as handed to the
// client. CandidateBitmask is a snapshot of the KC's exhaustion mask after
// this problem's item was drawn.
type ProblemDescriptor struct {
	ProblemNumber       int           `json:"problem_number"`
	ProblemContent      string        `json:"problem_content"`
	AudioURL            string        `json:"audio_url"`
	ExpectedAnswerCount int           `json:"expected_answer_count"`
	KCID                int64         `json:"kc_id"`
	CandidateBitmask    uint64        `json:"candidate_bitmask"`
	Detail              ProblemDetail `json:"detail,omitempty"`
}
