package session

import (
	"sort"
	"sync"
	"time"

	"github.com/example/phonobot/internal/sampler"
	"github.com/example/phonobot/pkg/models"
)

// TrainingSession is the ephemeral in-memory state of one stage run. It
// lives only in the store; the durable counters and attempt log live on the
// linked stage_sessions row. Per-key mutation of the three maps is guarded
// by the session's own mutex, so concurrent submissions for the same
// session cannot corrupt them.
type TrainingSession struct {
	ID             string
	UserID         int64
	StageSessionID int64
	Stage          models.Stage
	TotalProblems  int
	CreatedAt      time.Time
	ExpiresAt      time.Time

	mu           sync.Mutex
	problemKCs   map[int]int64             // problem number -> kc that produced it
	masks        map[int64]sampler.Bitmask // kc -> latest exhaustion-mask snapshot
	voiceResults map[int]bool              // problem number -> pronunciation verdict
}

func newTrainingSession(id string, userID, stageSessionID int64, stage models.Stage, totalProblems int, ttl time.Duration) *TrainingSession {
	now := time.Now()
	return &TrainingSession{
		ID:             id,
		UserID:         userID,
		StageSessionID: stageSessionID,
		Stage:          stage,
		TotalProblems:  totalProblems,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		problemKCs:     make(map[int]int64),
		masks:          make(map[int64]sampler.Bitmask),
		voiceResults:   make(map[int]bool),
	}
}

// Expired reports whether the session has outlived its TTL
func (t *TrainingSession) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// SetProblemKC records which knowledge component produced a problem number
func (t *TrainingSession) SetProblemKC(problemNumber int, kcID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.problemKCs[problemNumber] = kcID
}

// KCForProblem returns the knowledge component behind a problem number
func (t *TrainingSession) KCForProblem(problemNumber int) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kcID, ok := t.problemKCs[problemNumber]
	return kcID, ok
}

// SetMask stores the latest exhaustion-mask snapshot for a knowledge
// component
func (t *TrainingSession) SetMask(kcID int64, mask sampler.Bitmask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.masks[kcID] = mask
}

// Mask returns the stored snapshot for a knowledge component
func (t *TrainingSession) Mask(kcID int64) (sampler.Bitmask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mask, ok := t.masks[kcID]
	return mask, ok
}

// SetVoiceResult records the asynchronous pronunciation verdict for a
// problem
func (t *TrainingSession) SetVoiceResult(problemNumber int, correct bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voiceResults[problemNumber] = correct
}

// UnresolvedVoice returns the problem numbers whose pronunciation check is
// still pending or came back failed, sorted ascending. Absent entries count
// as pending.
func (t *TrainingSession) UnresolvedVoice() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var unresolved []int
	for problemNumber := range t.problemKCs {
		if correct, ok := t.voiceResults[problemNumber]; !ok || !correct {
			unresolved = append(unresolved, problemNumber)
		}
	}
	sort.Ints(unresolved)
	return unresolved
}
