package sqlite

import (
	"fmt"
	"strings"
	"time"

	"faceemotion/internal/dto"
	"faceemotion/internal/model"
)

// InferenceRepository implements repository.InferenceRepository for SQLite.
type InferenceRepository struct {
	db *DB
}

// NewInferenceRepository creates a new SQLite inference repository.
func NewInferenceRepository(db *DB) *InferenceRepository {
	return &InferenceRepository{db: db}
}

// InsertBatch stores inferences and their faces in a single transaction.
func (r *InferenceRepository) InsertBatch(inferences []model.Inference) error {
	if len(inferences) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inferenceStmt, err := tx.Prepare(`
		INSERT INTO inferences (request_id, command, width, height, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer inferenceStmt.Close()

	faceStmt, err := tx.Prepare(`
		INSERT INTO faces (inference_id, position, xmin, ymin, xmax, ymax, label, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer faceStmt.Close()

	for _, inf := range inferences {
		result, err := inferenceStmt.Exec(inf.RequestID, inf.Command, inf.Width, inf.Height, inf.DurationMs, inf.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert inference: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inference id: %w", err)
		}

		for i, f := range inf.Faces {
			if _, err := faceStmt.Exec(id, i, f.XMin, f.YMin, f.XMax, f.YMax, f.Label, f.Confidence); err != nil {
				return fmt.Errorf("failed to insert face: %w", err)
			}
		}
	}

	return tx.Commit()
}

// whereClause builds the shared filter for listing and counting.
func whereClause(filter *dto.HistoryFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter == nil {
		return query, args
	}

	if filter.Command != "" {
		query += " AND i.command = ?"
		args = append(args, filter.Command)
	}

	if filter.Label != "" {
		query += " AND EXISTS (SELECT 1 FROM faces f WHERE f.inference_id = i.id AND f.label = ?)"
		args = append(args, filter.Label)
	}

	if !filter.After.IsZero() {
		query += " AND i.created_at >= ?"
		args = append(args, filter.After.UTC())
	}

	if !filter.Before.IsZero() {
		query += " AND i.created_at <= ?"
		args = append(args, filter.Before.UTC())
	}

	return query, args
}

// GetRecent returns inferences matching the filter, newest first, with their faces.
func (r *InferenceRepository) GetRecent(filter *dto.HistoryFilter) ([]model.Inference, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT i.id, i.request_id, i.command, i.width, i.height, i.duration_ms, i.created_at
		FROM inferences i` + where + " ORDER BY i.created_at DESC, i.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inferences: %w", err)
	}
	defer rows.Close()

	var inferences []model.Inference
	index := make(map[int64]int)
	for rows.Next() {
		var inf model.Inference
		if err := rows.Scan(&inf.ID, &inf.RequestID, &inf.Command, &inf.Width, &inf.Height, &inf.DurationMs, &inf.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inference: %w", err)
		}
		inf.Faces = []model.Face{}
		index[inf.ID] = len(inferences)
		inferences = append(inferences, inf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inferences: %w", err)
	}
	// the pool holds a single connection
	rows.Close()

	if len(inferences) == 0 {
		return inferences, nil
	}

	if err := r.attachFaces(inferences, index); err != nil {
		return nil, err
	}
	return inferences, nil
}

func (r *InferenceRepository) attachFaces(inferences []model.Inference, index map[int64]int) error {
	placeholders := make([]string, 0, len(inferences))
	args := make([]interface{}, 0, len(inferences))
	for _, inf := range inferences {
		placeholders = append(placeholders, "?")
		args = append(args, inf.ID)
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, inference_id, position, xmin, ymin, xmax, ymax, label, confidence
		FROM faces WHERE inference_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY inference_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query faces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f model.Face
		if err := rows.Scan(&f.ID, &f.InferenceID, &f.Position, &f.XMin, &f.YMin, &f.XMax, &f.YMax, &f.Label, &f.Confidence); err != nil {
			return fmt.Errorf("failed to scan face: %w", err)
		}
		i := index[f.InferenceID]
		inferences[i].Faces = append(inferences[i].Faces, f)
	}
	return rows.Err()
}

// GetTotalCount returns the number of inferences matching the filter.
func (r *InferenceRepository) GetTotalCount(filter *dto.HistoryFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM inferences i`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count inferences: %w", err)
	}
	return count, nil
}

// CountByLabel returns how many journaled faces carry each label.
func (r *InferenceRepository) CountByLabel() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*) AS cnt
		FROM faces
		WHERE label != ''
		GROUP BY label
		ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts[label] = count
	}
	return counts, rows.Err()
}

// DeleteOlderThan removes inferences created before cutoff together with their faces.
func (r *InferenceRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM faces WHERE inference_id IN (SELECT id FROM inferences WHERE created_at < ?)
	`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("failed to delete faces: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM inferences WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete inferences: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}
