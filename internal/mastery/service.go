package mastery

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/phonobot/internal/bkt"
	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/pkg/models"
)

// lockStripes is the size of the mutex pool serializing RecordOutcome per
// (user, kc) pair.
const lockStripes = 64

// RecordStore is the persistence contract for the append-only mastery
// history.
type RecordStore interface {
	Latest(userID, kcID int64) (*models.MasteryRecord, error)
	Create(rec *models.MasteryRecord) error
}

// ComponentStore is the read-only contract for knowledge-component
// reference data.
type ComponentStore interface {
	GetByID(id int64) (*models.KnowledgeComponent, error)
	GetByStage(stage models.Stage) ([]models.KnowledgeComponent, error)
}

// Weakness pairs a knowledge component with the learner's predicted
// correctness rate for it.
type Weakness struct {
	KC   models.KnowledgeComponent `json:"kc"`
	Rate float64                   `json:"rate"`
}

// Service orchestrates the BKT engine and the mastery history: it predicts
// correctness from the latest record and appends a new record after every
// observed outcome.
type Service struct {
	records RecordStore
	kcs     ComponentStore
	engine  *bkt.Engine

	// Two concurrent RecordOutcome calls for the same (user, kc) pair
	// would both read the same "latest" row and race their appends.
	// A striped mutex keyed by the pair serializes them.
	locks [lockStripes]sync.Mutex
}

// New creates a mastery service
func New(records RecordStore, kcs ComponentStore) *Service {
	return &Service{
		records: records,
		kcs:     kcs,
		engine:  bkt.New(),
	}
}

// CorrectnessRate returns the probability that the learner's next response
// for the knowledge component is correct. The pair must have been
// initialized; otherwise database.ErrNotFound propagates.
func (s *Service) CorrectnessRate(userID, kcID int64) (float64, error) {
	rec, err := s.records.Latest(userID, kcID)
	if err != nil {
		return 0, err
	}
	return s.engine.PredictCorrectness(rec), nil
}

// RecordOutcome folds one observed outcome into the pair's mastery and
// appends the result as a new history row. The previous row is never
// touched.
func (s *Service) RecordOutcome(userID, kcID int64, observedCorrect bool) error {
	lock := &s.locks[s.stripe(userID, kcID)]
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.records.Latest(userID, kcID)
	if err != nil {
		return err
	}

	next := &models.MasteryRecord{
		UserID:   userID,
		KCID:     kcID,
		PLearn:   s.engine.UpdateMastery(rec, observedCorrect),
		PTransit: rec.PTransit,
		PGuess:   rec.PGuess,
		PSlip:    rec.PSlip,
	}
	if err := s.records.Create(next); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// WeakestForStage computes the correctness rate of every knowledge
// component tagged with the stage and returns the weakest ones first,
// truncated to limit. Pairs the learner has never met are initialized with
// model defaults. Ties break by KC id ascending so selection is
// deterministic.
func (s *Service) WeakestForStage(userID int64, stage models.Stage, limit int) ([]Weakness, error) {
	kcs, err := s.kcs.GetByStage(stage)
	if err != nil {
		return nil, err
	}

	weaknesses := make([]Weakness, 0, len(kcs))
	for _, kc := range kcs {
		rec, err := s.records.Latest(userID, kc.ID)
		if errors.Is(err, database.ErrNotFound) {
			rec, err = s.initPair(userID, kc.ID)
		}
		if err != nil {
			return nil, err
		}
		weaknesses = append(weaknesses, Weakness{
			KC:   kc,
			Rate: s.engine.PredictCorrectness(rec),
		})
	}

	sort.SliceStable(weaknesses, func(i, j int) bool {
		if weaknesses[i].Rate != weaknesses[j].Rate {
			return weaknesses[i].Rate < weaknesses[j].Rate
		}
		return weaknesses[i].KC.ID < weaknesses[j].KC.ID
	})

	if limit > 0 && len(weaknesses) > limit {
		weaknesses = weaknesses[:limit]
	}
	return weaknesses, nil
}

// initPair appends the initial default record for a pair that has never
// been observed
func (s *Service) initPair(userID, kcID int64) (*models.MasteryRecord, error) {
	rec := models.NewDefaultMasteryRecord(userID, kcID)
	if err := s.records.Create(rec); err != nil {
		return nil, fmt.Errorf("failed to initialize mastery: %w", err)
	}
	return rec, nil
}

func (s *Service) stripe(userID, kcID int64) uint64 {
	// Cheap pair hash; collisions only widen a critical section.
	h := uint64(userID)*31 + uint64(kcID)
	return h % lockStripes
}

// Ensure the sqlx-backed repositories satisfy the contracts.
var (
	_ RecordStore    = (*database.MasteryRepository)(nil)
	_ ComponentStore = (*database.KnowledgeComponentRepository)(nil)
)
