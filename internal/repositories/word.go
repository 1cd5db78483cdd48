package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/skyanki/internal/models"
)

// WordRepository keeps every word handed to Anki, keyed by student, word-set and word id.
type WordRepository struct {
	store
}

// NewWordRepository creates a new [WordRepository] for the given connection and driver.
func NewWordRepository(db *sql.DB, driver string) *WordRepository {
	return &WordRepository{store: newStore(db, driver)}
}

// Save inserts rec unless a record with the same key exists and reports whether it did.
func (r *WordRepository) Save(rec models.WordRecord) (bool, error) {
	query := r.q(`
		INSERT INTO words (student_id, wordset_id, word_id, title, subtitle, meaning, created_at, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, wordset_id, word_id) DO NOTHING
	`)

	var exportedAt sql.NullTime
	if rec.ExportedAt != nil {
		exportedAt = sql.NullTime{Time: rec.ExportedAt.UTC(), Valid: true}
	}

	result, err := r.db.Exec(query,
		rec.StudentID,
		rec.WordSetID,
		rec.WordID,
		rec.Title,
		rec.Subtitle,
		rec.Meaning,
		rec.CreatedAt,
		exportedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert word: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// MarkExported stamps the word as exported at the given time.
func (r *WordRepository) MarkExported(studentID, wordSetID, wordID int64, at time.Time) error {
	query := r.q(`UPDATE words SET exported_at = ? WHERE student_id = ? AND wordset_id = ? AND word_id = ?`)

	result, err := r.db.Exec(query, at.UTC(), studentID, wordSetID, wordID)
	if err != nil {
		return fmt.Errorf("failed to mark word exported: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("word not found: %d/%d/%d", studentID, wordSetID, wordID)
	}

	return nil
}

// Exported reports whether the word was already handed to Anki.
func (r *WordRepository) Exported(studentID, wordSetID, wordID int64) (bool, error) {
	query := r.q(`
		SELECT COUNT(*) FROM words
		WHERE student_id = ? AND wordset_id = ? AND word_id = ? AND exported_at IS NOT NULL
	`)

	var n int
	if err := r.db.QueryRow(query, studentID, wordSetID, wordID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query word: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of stored words of the student.
func (r *WordRepository) Count(studentID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(r.q(`SELECT COUNT(*) FROM words WHERE student_id = ?`), studentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count words: %w", err)
	}
	return n, nil
}

// List returns the stored words of the student ordered by creation time.
func (r *WordRepository) List(studentID int64) ([]models.WordRecord, error) {
	query := r.q(`
		SELECT student_id, wordset_id, word_id, title, subtitle, meaning, created_at, exported_at
		FROM words
		WHERE student_id = ?
		ORDER BY created_at ASC, wordset_id ASC, word_id ASC
	`)

	rows, err := r.db.Query(query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query words: %w", err)
	}
	defer rows.Close()

	var records []models.WordRecord
	for rows.Next() {
		var (
			rec        models.WordRecord
			exportedAt sql.NullTime
		)

		err := rows.Scan(&rec.StudentID, &rec.WordSetID, &rec.WordID, &rec.Title, &rec.Subtitle, &rec.Meaning, &rec.CreatedAt, &exportedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		if exportedAt.Valid {
			t := exportedAt.Time
			rec.ExportedAt = &t
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
