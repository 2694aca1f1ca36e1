package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) CreateRecord(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO cv_analyses (analysis_id, user_id, source_url, report_url, job_position, score, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var score any
	if rec.Score != nil {
		score = *rec.Score
	}
	_, err := r.DB.ExecContext(ctx, query,
		rec.AnalysisID,
		rec.UserID,
		rec.SourceURL,
		rec.ReportURL,
		rec.JobPosition,
		score,
		rec.ProcessedAt,
	)
	return err
}

func (r *PGRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	const query = `
INSERT INTO analysis_history (analysis_id, user_id, file_name, result, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (analysis_id) DO NOTHING`
	payload, err := json.Marshal(entry.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, entry.AnalysisID, entry.UserID, entry.FileName, payload, entry.CreatedAt)
	return err
}

func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cv_analyses WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT analysis_id, user_id, source_url, report_url, job_position, score, processed_at
FROM cv_analyses
WHERE user_id = $1
ORDER BY processed_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec   Record
			score sql.NullInt64
		)
		if err := rows.Scan(&rec.AnalysisID, &rec.UserID, &rec.SourceURL, &rec.ReportURL, &rec.JobPosition, &score, &rec.ProcessedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			rec.Score = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetHistory(ctx context.Context, analysisID string) (HistoryEntry, error) {
	const query = `
SELECT analysis_id, user_id, file_name, result, created_at
FROM analysis_history
WHERE analysis_id = $1`
	var (
		entry HistoryEntry
		raw   []byte
	)
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(&entry.AnalysisID, &entry.UserID, &entry.FileName, &raw, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, err
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &entry.Result); err != nil {
			return HistoryEntry{}, err
		}
	}
	return entry, nil
}
