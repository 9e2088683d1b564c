package measurement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type extractionRepoPG struct{ db queryable }

func NewExtractionRepoPG(pool *pgxpool.Pool) ExtractionRepository {
	return &extractionRepoPG{db: pool}
}

const extractionCols = `id, instance_id, study_id, modality, measurement_count, result, created_at`

func (r *extractionRepoPG) scan(row pgx.Row) (*ExtractionRecord, error) {
	var rec ExtractionRecord
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.InstanceID, &rec.StudyID, &rec.Modality,
		&rec.MeasurementCount, &raw, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeResult(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *extractionRepoPG) Save(ctx context.Context, rec *ExtractionRecord) error {
	raw, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode extraction result: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO measurement_extractions (id, instance_id, study_id, modality, measurement_count, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.InstanceID, rec.StudyID, rec.Modality, rec.MeasurementCount, raw, rec.CreatedAt)
	return err
}

func (r *extractionRepoPG) ListByInstance(ctx context.Context, instanceID string, limit, offset int) ([]*ExtractionRecord, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM measurement_extractions WHERE instance_id = $1`, instanceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+extractionCols+` FROM measurement_extractions WHERE instance_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, instanceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ExtractionRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func decodeResult(raw []byte, rec *ExtractionRecord) error {
	if len(raw) == 0 {
		return nil
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("decode extraction %s result: %w", rec.ID, err)
	}
	rec.Result = &res
	return nil
}
