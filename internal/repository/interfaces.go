package repository

import (
	"time"

	"faceemotion/internal/dto"
	"faceemotion/internal/model"
)

// InferenceRepository defines the journal storage operations.
type InferenceRepository interface {
	// Create operations
	InsertBatch(inferences []model.Inference) error

	// Read operations
	GetRecent(filter *dto.HistoryFilter) ([]model.Inference, error)
	GetTotalCount(filter *dto.HistoryFilter) (int, error)
	CountByLabel() (map[string]int, error)

	// Delete operations
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
