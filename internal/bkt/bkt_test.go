package bkt

import (
	"testing"

	"github.com/example/phonobot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(pLearn, pTransit, pGuess, pSlip float64) *models.MasteryRecord {
	return &models.MasteryRecord{
		PLearn:   pLearn,
		PTransit: pTransit,
		PGuess:   pGuess,
		PSlip:    pSlip,
	}
}

func TestPredictCorrectness(t *testing.T) {
	engine := New()

	tests := []struct {
		name string
		rec  *models.MasteryRecord
		want float64
	}{
		{"fresh learner guesses", record(0, 0.1, 0.2, 0.1), 0.2},
		{"full mastery slips", record(1, 0.1, 0.2, 0.1), 0.9},
		{"halfway", record(0.5, 0.1, 0.2, 0.1), 0.5*0.9 + 0.5*0.2},
		{"no guess no slip", record(0.3, 0.1, 0, 0), 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, engine.PredictCorrectness(tt.rec), 1e-12)
		})
	}
}

func TestUpdateMastery_KnownScenarios(t *testing.T) {
	engine := New()

	// With zero prior mastery the transition probability dominates
	// regardless of the observed outcome.
	rec := record(0, 0.1, 0.2, 0.1)
	assert.InDelta(t, 0.1, engine.UpdateMastery(rec, true), 1e-12)
	assert.InDelta(t, 0.1, engine.UpdateMastery(rec, false), 1e-12)
}

func TestUpdateMastery_BoundsOnDegenerateInputs(t *testing.T) {
	engine := New()

	// Corner states that make one of the denominators collapse to zero.
	tests := []struct {
		name    string
		rec     *models.MasteryRecord
		correct bool
	}{
		{"p is zero, observed correct", record(0, 0.1, 0, 0.1), true},
		{"p is one, observed incorrect", record(1, 0.1, 0.2, 0), false},
		{"all zero", record(0, 0, 0, 0), true},
		{"all one", record(1, 1, 1, 1), false},
		{"mastered, never slips, correct", record(1, 0.1, 0.2, 0), true},
		{"unmastered, never guesses, incorrect", record(0, 0.1, 0, 0.1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.UpdateMastery(tt.rec, tt.correct)
			require.False(t, got != got, "result is NaN")
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestUpdateMastery_MonotonicUnderCorrectRun(t *testing.T) {
	engine := New()

	rec := record(0, 0.1, 0.2, 0.1)
	prev := rec.PLearn
	for i := 0; i < 50; i++ {
		next := engine.UpdateMastery(rec, true)
		require.GreaterOrEqual(t, next, prev, "pLearn decreased at step %d", i)
		require.LessOrEqual(t, next, 1.0)
		rec.PLearn = next
		prev = next
	}
	// After a long run of correct answers the estimate approaches one.
	assert.Greater(t, rec.PLearn, 0.99)
}

func TestUpdateMastery_IncorrectCanLowerEstimate(t *testing.T) {
	engine := New()

	rec := record(0.8, 0, 0.2, 0.1)
	got := engine.UpdateMastery(rec, false)
	assert.Less(t, got, 0.8, "an incorrect observation should lower a high estimate when pTransit is 0")
}
