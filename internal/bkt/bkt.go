package bkt

import (
	"github.com/example/phonobot/pkg/models"
)

// Engine implements Bayesian Knowledge Tracing: a two-state hidden Markov
// model that updates a mastery probability after each observed response.
type Engine struct {
	// Denominators smaller than this are treated as zero
	Epsilon float64
}

// New creates a new engine with default settings
func New() *Engine {
	return &Engine{
		Epsilon: 1e-9,
	}
}

// PredictCorrectness returns the probability that the learner's next
// response is correct given the current mastery state:
// pLearn*(1-pSlip) + (1-pLearn)*pGuess. The result is in [0,1] whenever the
// inputs are.
func (e *Engine) PredictCorrectness(rec *models.MasteryRecord) float64 {
	return rec.PLearn*(1-rec.PSlip) + (1-rec.PLearn)*rec.PGuess
}

// UpdateMastery folds one observed outcome into the mastery estimate and
// returns the new pLearn. It computes the posterior probability that the
// learner was already mastered at observation time, then advances it by the
// per-opportunity transition:
//
//	correct:   posterior = pLearn*(1-pSlip) / p
//	incorrect: posterior = pLearn*pSlip / (1-p)
//	newPLearn = posterior + (1-posterior)*pTransit
//
// where p = PredictCorrectness. Degenerate denominators never produce
// NaN/Inf; the posterior is clamped instead, so this always returns a valid
// probability.
func (e *Engine) UpdateMastery(rec *models.MasteryRecord, observedCorrect bool) float64 {
	p := e.PredictCorrectness(rec)

	var posterior float64
	if observedCorrect {
		if p < e.Epsilon {
			// A correct answer was near-impossible under the model;
			// prior mastery contributes nothing.
			posterior = 0
		} else {
			posterior = rec.PLearn * (1 - rec.PSlip) / p
		}
	} else {
		if 1-p < e.Epsilon {
			// An incorrect answer was near-impossible under the model.
			posterior = 0
		} else {
			posterior = rec.PLearn * rec.PSlip / (1 - p)
		}
	}
	posterior = clamp01(posterior)

	return clamp01(posterior + (1-posterior)*rec.PTransit)
}

// clamp01 guards against floating-point drift outside [0,1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
