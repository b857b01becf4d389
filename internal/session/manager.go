package session

import (
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/mastery"
	"github.com/example/phonobot/internal/sampler"
	"github.com/example/phonobot/pkg/models"
)

// defaultWeakestLimit caps how many knowledge components one problem batch
// draws from.
const defaultWeakestLimit = 3

// choiceCount is how many options a choice-stage problem presents.
const choiceCount = 4

// MasteryProvider is the mastery-service contract the manager needs.
type MasteryProvider interface {
	WeakestForStage(userID int64, stage models.Stage, limit int) ([]mastery.Weakness, error)
	RecordOutcome(userID, kcID int64, observedCorrect bool) error
}

// UserStore validates that a learner exists.
type UserStore interface {
	GetByID(id int64) (*models.User, error)
}

// ItemStore serves each knowledge component's ordered candidate pool.
type ItemStore interface {
	GetByKC(kcID int64) ([]models.CandidateItem, error)
}

// MaskStore persists the durable per-(user, kc) exhaustion bitmask.
type MaskStore interface {
	Get(userID, kcID int64) (uint64, error)
	Save(userID, kcID int64, mask uint64) error
}

// StageStore persists the stage-history rows and the attempt log.
type StageStore interface {
	CreateSession(session *models.StageSession) error
	GetSession(id int64) (*models.StageSession, error)
	IncrementCorrect(id int64) error
	IncrementTry(id int64) error
	CreateAttempt(attempt *models.StageAttempt) error
}

// Judge accepts recorded audio for asynchronous pronunciation checking.
// The verdict comes back later through Manager.RecordVoiceResult.
type Judge interface {
	Submit(sessionID string, problemNumber int, audioURL string)
}

// Manager is the public face of the training engine: it starts stage
// sessions, generates adaptive problem batches, records attempts and
// completes sessions.
type Manager struct {
	store   *Store
	mastery MasteryProvider
	sampler *sampler.Sampler
	users   UserStore
	items   ItemStore
	masks   MaskStore
	stages  StageStore
	judge   Judge // nil when pronunciation checking is not configured

	weakestLimit int
}

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Store   *Store
	Mastery MasteryProvider
	Sampler *sampler.Sampler
	Users   UserStore
	Items   ItemStore
	Masks   MaskStore
	Stages  StageStore
	Judge   Judge

	// WeakestLimit caps the knowledge components per batch; zero means
	// the default.
	WeakestLimit int
}

// NewManager creates a training-session manager
func NewManager(cfg ManagerConfig) *Manager {
	limit := cfg.WeakestLimit
	if limit <= 0 {
		limit = defaultWeakestLimit
	}
	smp := cfg.Sampler
	if smp == nil {
		smp = sampler.New()
	}
	return &Manager{
		store:        cfg.Store,
		mastery:      cfg.Mastery,
		sampler:      smp,
		users:        cfg.Users,
		items:        cfg.Items,
		masks:        cfg.Masks,
		stages:       cfg.Stages,
		judge:        cfg.Judge,
		weakestLimit: limit,
	}
}

// StartStageResult is returned to the client when a stage begins.
type StartStageResult struct {
	SessionID     string       `json:"session_id"`
	Stage         models.Stage `json:"stage"`
	TotalProblems int          `json:"total_problems"`
	StartedAt     time.Time    `json:"started_at"`
}

// StartStage creates the durable stage-history row and the ephemeral
// session entry. Fails with database.ErrNotFound when the user is unknown.
func (m *Manager) StartStage(userID int64, stage models.Stage, totalProblems int) (*StartStageResult, error) {
	if _, err := m.users.GetByID(userID); err != nil {
		return nil, err
	}

	row := &models.StageSession{
		UserID:        userID,
		Stage:         stage,
		TotalProblems: totalProblems,
		StartedAt:     time.Now(),
	}
	if err := m.stages.CreateSession(row); err != nil {
		return nil, err
	}

	sess := newTrainingSession(uuid.NewString(), userID, row.ID, stage, totalProblems, m.store.TTL())
	m.store.Put(sess)

	return &StartStageResult{
		SessionID:     sess.ID,
		Stage:         stage,
		TotalProblems: totalProblems,
		StartedAt:     row.StartedAt,
	}, nil
}

// GenerateProblems builds a batch of count problems for the session,
// biased toward the learner's weakest knowledge components. Weaker
// components receive proportionally more items. The problem-number -> KC
// mapping and the updated exhaustion masks are cached on the session.
func (m *Manager) GenerateProblems(sessionID string, stage models.Stage, count int) ([]models.ProblemDescriptor, error) {
	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	weakest, err := m.mastery.WeakestForStage(sess.UserID, stage, m.weakestLimit)
	if err != nil {
		return nil, err
	}
	if len(weakest) == 0 {
		return nil, fmt.Errorf("stage %s: %w", stage, database.ErrNotFound)
	}

	allocations := allocate(weakest, count)

	problems := make([]models.ProblemDescriptor, 0, count)
	problemNumber := 0
	for i, w := range weakest {
		if allocations[i] == 0 {
			continue
		}

		pool, err := m.items.GetByKC(w.KC.ID)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			continue
		}

		stored, err := m.masks.Get(sess.UserID, w.KC.ID)
		if err != nil {
			return nil, err
		}

		items, mask := m.sampler.Draw(pool, sampler.Bitmask(stored), allocations[i])
		if err := m.masks.Save(sess.UserID, w.KC.ID, uint64(mask)); err != nil {
			return nil, err
		}
		sess.SetMask(w.KC.ID, mask)

		for _, item := range items {
			problemNumber++
			sess.SetProblemKC(problemNumber, w.KC.ID)

			detail := problemDetail(stage, item, pool)
			problems = append(problems, models.ProblemDescriptor{
				ProblemNumber:       problemNumber,
				ProblemContent:      item.Display,
				AudioURL:            item.AudioURL,
				ExpectedAnswerCount: detail.ExpectedAnswerCount(),
				KCID:                w.KC.ID,
				CandidateBitmask:    uint64(mask),
				Detail:              detail,
			})
		}
	}

	return problems, nil
}

// SubmitAttemptRequest carries one submitted answer.
type SubmitAttemptRequest struct {
	SessionID      string       `json:"session_id"`
	ProblemNumber  int          `json:"problem_number"`
	Stage          models.Stage `json:"stage"`
	AttemptNumber  int          `json:"attempt_number"`
	ProblemContent string       `json:"problem_content"`
	Answer         string       `json:"answer"`
	IsCorrect      bool         `json:"is_correct"`
	IsReplyCorrect bool         `json:"is_reply_correct"`
	AudioURL       string       `json:"audio_url"`
}

// AttemptResult echoes the durably recorded attempt.
type AttemptResult struct {
	AttemptID      int64 `json:"attempt_id"`
	IsCorrect      bool  `json:"is_correct"`
	IsReplyCorrect bool  `json:"is_reply_correct"`
}

// SubmitAttempt records one answer: it appends the durable attempt row,
// bumps the stage counters, folds the outcome into the mastery history and
// refreshes the session's ephemeral state. Durable writes happen before
// any ephemeral mutation, so a failed write never leaves the session map
// ahead of the database.
func (m *Manager) SubmitAttempt(userID int64, req SubmitAttemptRequest) (*AttemptResult, error) {
	sess, err := m.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	kcID, ok := sess.KCForProblem(req.ProblemNumber)
	if !ok {
		log.Printf("session %s: problem %d was never issued", sess.ID, req.ProblemNumber)
		return nil, fmt.Errorf("problem %d: %w", req.ProblemNumber, ErrInvalidState)
	}

	attempt := &models.StageAttempt{
		StageSessionID: sess.StageSessionID,
		ProblemNumber:  req.ProblemNumber,
		ProblemContent: req.ProblemContent,
		Answer:         req.Answer,
		AttemptNumber:  req.AttemptNumber,
		IsCorrect:      req.IsCorrect,
		IsReplyCorrect: req.IsReplyCorrect,
		AudioURL:       req.AudioURL,
	}
	if err := m.stages.CreateAttempt(attempt); err != nil {
		return nil, err
	}

	if req.AttemptNumber > 1 {
		if err := m.stages.IncrementTry(sess.StageSessionID); err != nil {
			return nil, err
		}
	}
	if req.IsCorrect {
		if err := m.stages.IncrementCorrect(sess.StageSessionID); err != nil {
			return nil, err
		}
	}

	if err := m.mastery.RecordOutcome(userID, kcID, req.IsCorrect); err != nil {
		return nil, err
	}

	// Push the durable mask state back into the session so the snapshot
	// the client sees next stays current.
	if stored, err := m.masks.Get(userID, kcID); err != nil {
		log.Printf("candidate mask refresh for session %s kc %d failed: %v", sess.ID, kcID, err)
	} else {
		sess.SetMask(kcID, sampler.Bitmask(stored))
	}

	if req.IsReplyCorrect {
		sess.SetVoiceResult(req.ProblemNumber, true)
	} else if m.judge != nil && req.AudioURL != "" {
		// Verdict arrives later via RecordVoiceResult; completion
		// treats the problem as pending until then.
		m.judge.Submit(sess.ID, req.ProblemNumber, req.AudioURL)
	}

	return &AttemptResult{
		AttemptID:      attempt.ID,
		IsCorrect:      attempt.IsCorrect,
		IsReplyCorrect: attempt.IsReplyCorrect,
	}, nil
}

// RecordVoiceResult stores an asynchronous pronunciation verdict. Arriving
// after the session completed or expired is not an error; the verdict is
// simply dropped.
func (m *Manager) RecordVoiceResult(sessionID string, problemNumber int, correct bool) {
	sess, err := m.store.Get(sessionID)
	if err != nil {
		log.Printf("voice result for session %s dropped: %v", sessionID, err)
		return
	}
	sess.SetVoiceResult(problemNumber, correct)
}

// StageCompleteResult summarizes a finished stage.
type StageCompleteResult struct {
	SessionID   string `json:"session_id"`
	WrongCount  int    `json:"wrong_count"`
	VoiceResult []int  `json:"voice_result"` // Problems with pending or failed pronunciation checks
}

// CompleteStage aggregates the durable counters, reports the problems with
// unresolved pronunciation checks and tears the ephemeral session down.
func (m *Manager) CompleteStage(sessionID string) (*StageCompleteResult, error) {
	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	row, err := m.stages.GetSession(sess.StageSessionID)
	if err != nil {
		return nil, err
	}

	result := &StageCompleteResult{
		SessionID:   sess.ID,
		WrongCount:  row.TotalProblems - row.CorrectCount,
		VoiceResult: sess.UnresolvedVoice(),
	}

	m.store.Remove(sess.ID)
	return result, nil
}

// SweepExpired drops every expired session from the registry
func (m *Manager) SweepExpired() {
	if removed := m.store.SweepExpired(); removed > 0 {
		log.Printf("swept %d expired training sessions", removed)
	}
}

// allocate splits count problems across the weakest components.
// Each component's share grows with how far its correctness rate is from
// certain, distributed by largest remainder so the shares always sum to
// count.
func allocate(weakest []mastery.Weakness, count int) []int {
	n := len(weakest)
	allocations := make([]int, n)
	if count <= 0 {
		return allocations
	}

	weights := make([]float64, n)
	total := 0.0
	for i, w := range weakest {
		weights[i] = 1 - w.Rate
		total += weights[i]
	}

	if total == 0 {
		// Every component already looks mastered; spread evenly,
		// weakest-ordered.
		for i := 0; i < count; i++ {
			allocations[i%n]++
		}
		return allocations
	}

	assigned := 0
	remainders := make([]float64, n)
	for i := range weights {
		exact := float64(count) * weights[i] / total
		allocations[i] = int(exact)
		remainders[i] = exact - float64(allocations[i])
		assigned += allocations[i]
	}

	for assigned < count {
		best := 0
		for i := 1; i < n; i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		allocations[best]++
		remainders[best] = -1
		assigned++
	}

	return allocations
}

// problemDetail builds the stage-specific variant for one drawn item
func problemDetail(stage models.Stage, item models.CandidateItem, pool []models.CandidateItem) models.ProblemDetail {
	switch stage {
	case models.StageVowelChoice:
		return models.VowelChoiceDetail{Choices: choicesFor(item, pool)}
	case models.StageConsonantChoice:
		return models.ConsonantChoiceDetail{Choices: choicesFor(item, pool)}
	case models.StageSyllableCount:
		return models.SyllableCountDetail{SyllableCount: utf8.RuneCountInString(item.Display)}
	case models.StagePhonemeCount:
		return models.PhonemeCountDetail{PhonemeCount: utf8.RuneCountInString(item.Display)}
	default:
		return models.VowelChoiceDetail{Choices: choicesFor(item, pool)}
	}
}

// choicesFor returns the item's display plus pool distractors, capped at
// choiceCount
func choicesFor(item models.CandidateItem, pool []models.CandidateItem) []string {
	choices := []string{item.Display}
	for _, other := range pool {
		if len(choices) == choiceCount {
			break
		}
		if other.Position != item.Position {
			choices = append(choices, other.Display)
		}
	}
	return choices
}

// Ensure the sqlx-backed repositories satisfy the manager's contracts.
var (
	_ UserStore       = (*database.UserRepository)(nil)
	_ ItemStore       = (*database.CandidateItemRepository)(nil)
	_ MaskStore       = (*database.CandidateMaskRepository)(nil)
	_ StageStore      = (*database.StageRepository)(nil)
	_ MasteryProvider = (*mastery.Service)(nil)
)
