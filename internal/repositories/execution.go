package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/shared"
)

// ExecutionRepository records completed sync passes. The greatest recorded watermark is
// where the next pass resumes.
type ExecutionRepository struct {
	store
}

// NewExecutionRepository creates a new [ExecutionRepository] for the given connection and driver.
func NewExecutionRepository(db *sql.DB, driver string) *ExecutionRepository {
	return &ExecutionRepository{store: newStore(db, driver)}
}

// LastUpdate returns the greatest recorded watermark, or "" when nothing was recorded yet.
//
// Watermarks are compared as strings, the same order the sync filter uses.
func (r *ExecutionRepository) LastUpdate() (string, error) {
	var last sql.NullString
	if err := r.db.QueryRow(`SELECT MAX(last_update) FROM executions`).Scan(&last); err != nil {
		return "", fmt.Errorf("failed to query last update: %w", err)
	}
	return last.String, nil
}

// Record stores a completed pass that exported words and advanced the watermark to lastUpdate.
func (r *ExecutionRepository) Record(lastUpdate string, words int) (*models.Execution, error) {
	exec := &models.Execution{
		ID:         shared.GenerateID(),
		LastUpdate: lastUpdate,
		Words:      words,
		CreatedAt:  time.Now().UTC(),
	}

	query := r.q(`INSERT INTO executions (id, last_update, words, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, exec.ID, exec.LastUpdate, exec.Words, exec.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert execution: %w", err)
	}

	return exec, nil
}

// Latest returns the most recent pass, or nil when none was recorded.
func (r *ExecutionRepository) Latest() (*models.Execution, error) {
	execs, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, nil
	}
	return execs[0], nil
}

// List returns up to limit passes, most recent first. A limit of zero or less returns all.
func (r *ExecutionRepository) List(limit int) ([]*models.Execution, error) {
	query := `SELECT id, last_update, words, created_at FROM executions ORDER BY created_at DESC, last_update DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []*models.Execution
	for rows.Next() {
		var exec models.Execution
		if err := rows.Scan(&exec.ID, &exec.LastUpdate, &exec.Words, &exec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		execs = append(execs, &exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return execs, nil
}
