package excel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/sampler"
	"github.com/example/phonobot/pkg/models"
)

// ImportConfig defines the seed-import configuration. Each row describes
// one candidate item and the knowledge component it belongs to; components
// are created on first sight.
type ImportConfig struct {
	FilePath       string // Path to the Excel file
	StageColumn    string // Column with the stage tag
	CategoryColumn string // Column with the phonological category
	CodeColumn     string // Column with the KC code
	DisplayColumn  string // Column with the item display value
	AudioURLColumn string // Column with the item audio URL
	SheetName      string // Name of the sheet to import
	StartRow       int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		StageColumn:    "A",
		CategoryColumn: "B",
		CodeColumn:     "C",
		DisplayColumn:  "D",
		AudioURLColumn: "E",
		SheetName:      "Sheet1",
		StartRow:       2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed    int
	ComponentsCreated int
	ItemsCreated      int
	Skipped           int
	Errors            []string
}

// ImportReferenceData loads knowledge components and their candidate pools
// from an Excel file
func ImportReferenceData(config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %v", config.SheetName, err)
	}

	kcRepo := database.NewKnowledgeComponentRepository()
	itemRepo := database.NewCandidateItemRepository()

	result := &ImportResult{Errors: make([]string, 0)}

	// KC code -> (id, next pool position)
	type kcState struct {
		id       int64
		position int
	}
	seen := make(map[string]*kcState)

	col := func(row []string, name string) string {
		idx := int(name[0] - 'A')
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	for i, row := range rows {
		rowNumber := i + 1
		if rowNumber < config.StartRow {
			continue
		}
		result.TotalProcessed++

		stage := col(row, config.StageColumn)
		category := col(row, config.CategoryColumn)
		code := col(row, config.CodeColumn)
		display := col(row, config.DisplayColumn)
		audioURL := col(row, config.AudioURLColumn)

		if code == "" || display == "" {
			result.Skipped++
			continue
		}

		state, ok := seen[code]
		if !ok {
			kc, err := kcRepo.GetByCode(code)
			if errors.Is(err, database.ErrNotFound) {
				kc = &models.KnowledgeComponent{
					Code:     code,
					Category: category,
					Stage:    models.Stage(stage),
				}
				if err := kcRepo.Create(kc); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
					continue
				}
				result.ComponentsCreated++
			} else if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
				continue
			}

			existing, err := itemRepo.GetByKC(kc.ID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
				continue
			}
			state = &kcState{id: kc.ID, position: len(existing)}
			seen[code] = state
		}

		if state.position >= sampler.MaxPoolSize {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: pool for %s is full (%d items)", rowNumber, code, sampler.MaxPoolSize))
			continue
		}

		item := &models.CandidateItem{
			KCID:     state.id,
			Position: state.position,
			Display:  display,
			AudioURL: audioURL,
		}
		if err := itemRepo.Create(item); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
			continue
		}
		state.position++
		result.ItemsCreated++
	}

	return result, nil
}
