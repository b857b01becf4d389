package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/phonobot/pkg/models"
)

// KnowledgeComponentRepository handles database operations for knowledge
// components (reference data)
type KnowledgeComponentRepository struct{}

// NewKnowledgeComponentRepository creates a new repository instance
func NewKnowledgeComponentRepository() *KnowledgeComponentRepository {
	return &KnowledgeComponentRepository{}
}

// GetByID returns a knowledge component by ID
func (r *KnowledgeComponentRepository) GetByID(id int64) (*models.KnowledgeComponent, error) {
	var kc models.KnowledgeComponent
	err := DB.Get(&kc, "SELECT * FROM knowledge_components WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge component %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge component: %v", err)
	}
	return &kc, nil
}

// GetByStage returns all knowledge components exercised by a stage,
// ordered by ID so selection stays deterministic
func (r *KnowledgeComponentRepository) GetByStage(stage models.Stage) ([]models.KnowledgeComponent, error) {
	var kcs []models.KnowledgeComponent
	err := DB.Select(&kcs, "SELECT * FROM knowledge_components WHERE stage = $1 ORDER BY id ASC", stage)
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge components for stage: %v", err)
	}
	return kcs, nil
}

// GetByCode returns a knowledge component by its stable code
func (r *KnowledgeComponentRepository) GetByCode(code string) (*models.KnowledgeComponent, error) {
	var kc models.KnowledgeComponent
	err := DB.Get(&kc, "SELECT * FROM knowledge_components WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge component %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge component: %v", err)
	}
	return &kc, nil
}

// Create inserts a new knowledge component
func (r *KnowledgeComponentRepository) Create(kc *models.KnowledgeComponent) error {
	query := `
		INSERT INTO knowledge_components (code, category, stage)
		VALUES ($1, $2, $3)
	`
	result, err := DB.Exec(query, kc.Code, kc.Category, kc.Stage)
	if err != nil {
		return fmt.Errorf("failed to create knowledge component: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	kc.ID = id

	return nil
}
