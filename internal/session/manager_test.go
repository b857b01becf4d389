package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/mastery"
	"github.com/example/phonobot/internal/sampler"
	"github.com/example/phonobot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	known map[int64]bool
}

func (f *fakeUsers) GetByID(id int64) (*models.User, error) {
	if !f.known[id] {
		return nil, fmt.Errorf("user %d: %w", id, database.ErrNotFound)
	}
	return &models.User{ID: id}, nil
}

type fakeItems struct {
	pools map[int64][]models.CandidateItem
}

func (f *fakeItems) GetByKC(kcID int64) ([]models.CandidateItem, error) {
	return f.pools[kcID], nil
}

type fakeMasks struct {
	mu     sync.Mutex
	masks  map[string]uint64
	getErr error
}

func newFakeMasks() *fakeMasks {
	return &fakeMasks{masks: make(map[string]uint64)}
}

func (f *fakeMasks) key(userID, kcID int64) string {
	return fmt.Sprintf("%d/%d", userID, kcID)
}

func (f *fakeMasks) Get(userID, kcID int64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.masks[f.key(userID, kcID)], nil
}

func (f *fakeMasks) Save(userID, kcID int64, mask uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masks[f.key(userID, kcID)] = mask
	return nil
}

type fakeStages struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*models.StageSession
	attempts []models.StageAttempt
}

func newFakeStages() *fakeStages {
	return &fakeStages{sessions: make(map[int64]*models.StageSession)}
}

func (f *fakeStages) CreateSession(session *models.StageSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	session.ID = f.nextID
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeStages) GetSession(id int64) (*models.StageSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("stage session %d: %w", id, database.ErrNotFound)
	}
	clone := *session
	return &clone, nil
}

func (f *fakeStages) IncrementCorrect(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].CorrectCount++
	return nil
}

func (f *fakeStages) IncrementTry(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].TryCount++
	return nil
}

func (f *fakeStages) CreateAttempt(attempt *models.StageAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	attempt.ID = f.nextID
	f.attempts = append(f.attempts, *attempt)
	return nil
}

type recordedOutcome struct {
	userID  int64
	kcID    int64
	correct bool
}

type fakeMastery struct {
	mu       sync.Mutex
	weakest  []mastery.Weakness
	outcomes []recordedOutcome
}

func (f *fakeMastery) WeakestForStage(userID int64, stage models.Stage, limit int) ([]mastery.Weakness, error) {
	if limit > 0 && len(f.weakest) > limit {
		return f.weakest[:limit], nil
	}
	return f.weakest, nil
}

func (f *fakeMastery) RecordOutcome(userID, kcID int64, observedCorrect bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, recordedOutcome{userID, kcID, observedCorrect})
	return nil
}

type fakeJudge struct {
	mu          sync.Mutex
	submissions []string
}

func (f *fakeJudge) Submit(sessionID string, problemNumber int, audioURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, fmt.Sprintf("%s/%d", sessionID, problemNumber))
}

func poolOf(kcID int64, displays ...string) []models.CandidateItem {
	items := make([]models.CandidateItem, len(displays))
	for i, d := range displays {
		items[i] = models.CandidateItem{
			ID:       kcID*100 + int64(i),
			KCID:     kcID,
			Position: i,
			Display:  d,
			AudioURL: fmt.Sprintf("audio/%d/%d.mp3", kcID, i),
		}
	}
	return items
}

type fixture struct {
	manager *Manager
	store   *Store
	stages  *fakeStages
	masks   *fakeMasks
	mastery *fakeMastery
	judge   *fakeJudge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewStore(time.Minute)
	stages := newFakeStages()
	masks := newFakeMasks()
	judge := &fakeJudge{}
	weak := &fakeMastery{weakest: []mastery.Weakness{
		{KC: models.KnowledgeComponent{ID: 1, Code: "onset_labial", Stage: models.StageVowelChoice}, Rate: 0.2},
		{KC: models.KnowledgeComponent{ID: 2, Code: "onset_velar", Stage: models.StageVowelChoice}, Rate: 0.5},
		{KC: models.KnowledgeComponent{ID: 3, Code: "coda_nasal", Stage: models.StageVowelChoice}, Rate: 0.8},
	}}
	items := &fakeItems{pools: map[int64][]models.CandidateItem{
		1: poolOf(1, "ba", "bo", "bi", "bu", "be"),
		2: poolOf(2, "ga", "go", "gi"),
		3: poolOf(3, "an", "on", "in", "un"),
	}}

	manager := NewManager(ManagerConfig{
		Store:   store,
		Mastery: weak,
		Sampler: sampler.NewWithSource(rand.NewSource(11)),
		Users:   &fakeUsers{known: map[int64]bool{1: true}},
		Items:   items,
		Masks:   masks,
		Stages:  stages,
		Judge:   judge,
	})

	return &fixture{manager: manager, store: store, stages: stages, masks: masks, mastery: weak, judge: judge}
}

func startStage(t *testing.T, f *fixture) *StartStageResult {
	t.Helper()
	started, err := f.manager.StartStage(1, models.StageVowelChoice, 6)
	require.NoError(t, err)
	return started
}

func TestStartStage(t *testing.T) {
	f := newFixture(t)

	started := startStage(t, f)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, models.StageVowelChoice, started.Stage)
	assert.Equal(t, 6, started.TotalProblems)
	assert.False(t, started.StartedAt.IsZero())

	// Both halves exist: the durable row and the registry entry.
	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	row, err := f.stages.GetSession(sess.StageSessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, row.CorrectCount)
	assert.Equal(t, 0, row.TryCount)
}

func TestStartStage_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.StartStage(99, models.StageVowelChoice, 6)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Equal(t, 0, f.store.Len())
}

func TestGenerateProblems(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)

	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)
	require.Len(t, problems, 6)

	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)

	perKC := map[int64]int{}
	for i, p := range problems {
		assert.Equal(t, i+1, p.ProblemNumber)
		assert.NotEmpty(t, p.ProblemContent)
		assert.NotEmpty(t, p.AudioURL)
		assert.Equal(t, 1, p.ExpectedAnswerCount)
		require.NotNil(t, p.Detail)
		assert.Equal(t, models.StageVowelChoice, p.Detail.Stage())
		perKC[p.KCID]++

		kcID, ok := sess.KCForProblem(p.ProblemNumber)
		require.True(t, ok, "problem %d has no KC mapping", p.ProblemNumber)
		assert.Equal(t, p.KCID, kcID)
	}

	// The weakest component (rate 0.2) gets the largest share.
	assert.GreaterOrEqual(t, perKC[1], perKC[2])
	assert.GreaterOrEqual(t, perKC[2], perKC[3])

	// Masks were persisted durably and snapshotted on the session.
	for kcID, count := range perKC {
		stored, err := f.masks.Get(1, kcID)
		require.NoError(t, err)
		assert.Equal(t, count, sampler.Bitmask(stored).Count(), "kc %d", kcID)

		snapshot, ok := sess.Mask(kcID)
		require.True(t, ok)
		assert.Equal(t, sampler.Bitmask(stored), snapshot)
	}
}

func TestGenerateProblems_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.GenerateProblems("nope", models.StageVowelChoice, 6)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGenerateProblems_CountingStages(t *testing.T) {
	f := newFixture(t)
	f.mastery.weakest = []mastery.Weakness{
		{KC: models.KnowledgeComponent{ID: 1, Stage: models.StageSyllableCount}, Rate: 0.2},
	}

	started, err := f.manager.StartStage(1, models.StageSyllableCount, 2)
	require.NoError(t, err)

	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageSyllableCount, 2)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	for _, p := range problems {
		detail, ok := p.Detail.(models.SyllableCountDetail)
		require.True(t, ok)
		assert.Equal(t, len([]rune(p.ProblemContent)), detail.SyllableCount)
		assert.Equal(t, detail.SyllableCount, p.ExpectedAnswerCount)
	}
}

func TestSubmitAttempt(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	first := problems[0]
	result, err := f.manager.SubmitAttempt(1, SubmitAttemptRequest{
		SessionID:      started.SessionID,
		ProblemNumber:  first.ProblemNumber,
		Stage:          models.StageVowelChoice,
		AttemptNumber:  1,
		ProblemContent: first.ProblemContent,
		Answer:         first.ProblemContent,
		IsCorrect:      true,
		AudioURL:       "recordings/1.wav",
	})
	require.NoError(t, err)
	assert.NotZero(t, result.AttemptID)
	assert.True(t, result.IsCorrect)

	// Attempt row persisted.
	require.Len(t, f.stages.attempts, 1)
	assert.Equal(t, first.ProblemNumber, f.stages.attempts[0].ProblemNumber)

	// Counters: correct bumped, no retry recorded for attempt 1.
	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	row, err := f.stages.GetSession(sess.StageSessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.CorrectCount)
	assert.Equal(t, 0, row.TryCount)

	// Mastery outcome fed through.
	require.Len(t, f.mastery.outcomes, 1)
	assert.Equal(t, recordedOutcome{1, first.KCID, true}, f.mastery.outcomes[0])

	// Audio handed to the judge; verdict still pending.
	assert.Contains(t, f.judge.submissions, fmt.Sprintf("%s/%d", started.SessionID, first.ProblemNumber))
	assert.Contains(t, sess.UnresolvedVoice(), first.ProblemNumber)
}

func TestSubmitAttempt_RetryBumpsTryCount(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	_, err = f.manager.SubmitAttempt(1, SubmitAttemptRequest{
		SessionID:     started.SessionID,
		ProblemNumber: problems[0].ProblemNumber,
		AttemptNumber: 2,
		IsCorrect:     false,
	})
	require.NoError(t, err)

	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	row, err := f.stages.GetSession(sess.StageSessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.TryCount)
	assert.Equal(t, 0, row.CorrectCount)
}

func TestSubmitAttempt_MaskRefreshFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	first := problems[0]
	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	before, ok := sess.Mask(first.KCID)
	require.True(t, ok)

	f.masks.getErr = errors.New("connection reset")

	result, err := f.manager.SubmitAttempt(1, SubmitAttemptRequest{
		SessionID:     started.SessionID,
		ProblemNumber: first.ProblemNumber,
		AttemptNumber: 1,
		IsCorrect:     true,
	})
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)

	// Durable writes still happened.
	require.Len(t, f.stages.attempts, 1)
	require.Len(t, f.mastery.outcomes, 1)

	// The session keeps its last good snapshot.
	after, ok := sess.Mask(first.KCID)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestSubmitAttempt_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.SubmitAttempt(1, SubmitAttemptRequest{SessionID: "nope", ProblemNumber: 1})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitAttempt_UnissuedProblem(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)

	_, err := f.manager.SubmitAttempt(1, SubmitAttemptRequest{
		SessionID:     started.SessionID,
		ProblemNumber: 42,
		IsCorrect:     true,
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	// Nothing durable happened.
	assert.Empty(t, f.stages.attempts)
	assert.Empty(t, f.mastery.outcomes)
}

func TestSubmitAttempt_ImmediateReplyCorrectSkipsJudge(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	_, err = f.manager.SubmitAttempt(1, SubmitAttemptRequest{
		SessionID:      started.SessionID,
		ProblemNumber:  problems[0].ProblemNumber,
		AttemptNumber:  1,
		IsCorrect:      true,
		IsReplyCorrect: true,
		AudioURL:       "recordings/1.wav",
	})
	require.NoError(t, err)

	assert.Empty(t, f.judge.submissions)

	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	assert.NotContains(t, sess.UnresolvedVoice(), problems[0].ProblemNumber)
}

func TestRecordVoiceResult(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	n := problems[0].ProblemNumber
	f.manager.RecordVoiceResult(started.SessionID, n, true)

	sess, err := f.store.Get(started.SessionID)
	require.NoError(t, err)
	assert.NotContains(t, sess.UnresolvedVoice(), n)

	// A verdict for a session that is already gone is dropped quietly.
	f.manager.RecordVoiceResult("gone", 1, true)
}

func TestCompleteStage(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)
	problems, err := f.manager.GenerateProblems(started.SessionID, models.StageVowelChoice, 6)
	require.NoError(t, err)

	// Answer four correctly with passing pronunciation, leave two open.
	for _, p := range problems[:4] {
		_, err := f.manager.SubmitAttempt(1, SubmitAttemptRequest{
			SessionID:      started.SessionID,
			ProblemNumber:  p.ProblemNumber,
			AttemptNumber:  1,
			IsCorrect:      true,
			IsReplyCorrect: true,
		})
		require.NoError(t, err)
	}

	result, err := f.manager.CompleteStage(started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, started.SessionID, result.SessionID)
	assert.Equal(t, 2, result.WrongCount)
	assert.Equal(t, []int{problems[4].ProblemNumber, problems[5].ProblemNumber}, result.VoiceResult)

	// The ephemeral entry is gone; completing again fails.
	_, err = f.manager.CompleteStage(started.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepExpired_LeavesActiveSessionsAlone(t *testing.T) {
	f := newFixture(t)
	started := startStage(t, f)

	expired := newTrainingSession("stale", 1, 99, models.StageVowelChoice, 5, time.Minute)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	f.store.Put(expired)

	f.manager.SweepExpired()

	_, err := f.store.Get(started.SessionID)
	assert.NoError(t, err)
	_, err = f.store.Get("stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAllocate(t *testing.T) {
	weakest := []mastery.Weakness{
		{KC: models.KnowledgeComponent{ID: 1}, Rate: 0.1},
		{KC: models.KnowledgeComponent{ID: 2}, Rate: 0.5},
		{KC: models.KnowledgeComponent{ID: 3}, Rate: 0.9},
	}

	tests := []struct {
		name  string
		count int
	}{
		{"even batch", 6},
		{"odd batch", 7},
		{"tiny batch", 1},
		{"large batch", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocations := allocate(weakest, tt.count)
			sum := 0
			for _, n := range allocations {
				sum += n
			}
			require.Equal(t, tt.count, sum, "allocations must sum to the batch size")
			// Weaker components never get fewer items than stronger ones.
			assert.GreaterOrEqual(t, allocations[0], allocations[1])
			assert.GreaterOrEqual(t, allocations[1], allocations[2])
		})
	}
}

func TestAllocate_AllMastered(t *testing.T) {
	weakest := []mastery.Weakness{
		{KC: models.KnowledgeComponent{ID: 1}, Rate: 1},
		{KC: models.KnowledgeComponent{ID: 2}, Rate: 1},
	}
	allocations := allocate(weakest, 5)
	assert.Equal(t, []int{3, 2}, allocations)
}
