package measurement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const createExtractionsTableMySQL = `CREATE TABLE IF NOT EXISTS measurement_extractions (
	id CHAR(36) NOT NULL PRIMARY KEY,
	instance_id VARCHAR(128) NOT NULL,
	study_id VARCHAR(128) NOT NULL DEFAULT '',
	modality VARCHAR(16) NOT NULL DEFAULT '',
	measurement_count INT NOT NULL DEFAULT 0,
	result JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	INDEX idx_instance_created (instance_id, created_at)
)`

type extractionRepoMySQL struct{ db *sql.DB }

// NewExtractionRepoMySQL creates the archive table if needed and returns a
// MySQL-backed repository.
func NewExtractionRepoMySQL(ctx context.Context, db *sql.DB) (ExtractionRepository, error) {
	if _, err := db.ExecContext(ctx, createExtractionsTableMySQL); err != nil {
		return nil, fmt.Errorf("create measurement_extractions table: %w", err)
	}
	return &extractionRepoMySQL{db: db}, nil
}

func (r *extractionRepoMySQL) Save(ctx context.Context, rec *ExtractionRecord) error {
	raw, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode extraction result: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO measurement_extractions (id, instance_id, study_id, modality, measurement_count, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.InstanceID, rec.StudyID, rec.Modality, rec.MeasurementCount, raw, rec.CreatedAt)
	return err
}

func (r *extractionRepoMySQL) ListByInstance(ctx context.Context, instanceID string, limit, offset int) ([]*ExtractionRecord, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM measurement_extractions WHERE instance_id = ?`, instanceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+extractionCols+` FROM measurement_extractions WHERE instance_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		instanceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ExtractionRecord
	for rows.Next() {
		var rec ExtractionRecord
		var id string
		var raw []byte
		if err := rows.Scan(&id, &rec.InstanceID, &rec.StudyID, &rec.Modality,
			&rec.MeasurementCount, &raw, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, 0, fmt.Errorf("parse extraction id %q: %w", id, err)
		}
		if err := decodeResult(raw, &rec); err != nil {
			return nil, 0, err
		}
		items = append(items, &rec)
	}
	return items, total, rows.Err()
}
