package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertAssessmentSnapshot = `-- name: InsertAssessmentSnapshot :one
INSERT INTO assessment_history (
  postcode,
  overall_rating,
  outcome,
  assessment_id,
  latitude,
  longitude,
  vehicle_count,
  document
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, postcode, overall_rating, outcome, assessment_id, latitude, longitude, vehicle_count, notes, document, created_at
`

type InsertAssessmentSnapshotParams struct {
	Postcode      string
	OverallRating string
	Outcome       string
	AssessmentID  *string
	Latitude      float64
	Longitude     float64
	VehicleCount  int32
	Document      []byte
}

func (q *Queries) InsertAssessmentSnapshot(ctx context.Context, arg InsertAssessmentSnapshotParams) (AssessmentSnapshot, error) {
	row := q.db.QueryRow(ctx, insertAssessmentSnapshot,
		arg.Postcode,
		arg.OverallRating,
		arg.Outcome,
		arg.AssessmentID,
		arg.Latitude,
		arg.Longitude,
		arg.VehicleCount,
		arg.Document,
	)
	var i AssessmentSnapshot
	err := row.Scan(
		&i.ID,
		&i.Postcode,
		&i.OverallRating,
		&i.Outcome,
		&i.AssessmentID,
		&i.Latitude,
		&i.Longitude,
		&i.VehicleCount,
		&i.Notes,
		&i.Document,
		&i.CreatedAt,
	)
	return i, err
}

const listRecentAssessments = `-- name: ListRecentAssessments :many
SELECT id, postcode, overall_rating, outcome, assessment_id, latitude, longitude, vehicle_count, notes, NULL::jsonb AS document, created_at
FROM assessment_history
WHERE ($1::text IS NULL OR postcode = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2
`

type ListRecentAssessmentsParams struct {
	Postcode *string
	Limit    int32
}

// ListRecentAssessments omits the stored document; fetch it with GetAssessmentSnapshot.
func (q *Queries) ListRecentAssessments(ctx context.Context, arg ListRecentAssessmentsParams) ([]AssessmentSnapshot, error) {
	rows, err := q.db.Query(ctx, listRecentAssessments, arg.Postcode, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AssessmentSnapshot
	for rows.Next() {
		var i AssessmentSnapshot
		if err := rows.Scan(
			&i.ID,
			&i.Postcode,
			&i.OverallRating,
			&i.Outcome,
			&i.AssessmentID,
			&i.Latitude,
			&i.Longitude,
			&i.VehicleCount,
			&i.Notes,
			&i.Document,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAssessmentSnapshot = `-- name: GetAssessmentSnapshot :one
SELECT id, postcode, overall_rating, outcome, assessment_id, latitude, longitude, vehicle_count, notes, document, created_at
FROM assessment_history
WHERE id = $1::uuid
`

func (q *Queries) GetAssessmentSnapshot(ctx context.Context, id string) (AssessmentSnapshot, error) {
	row := q.db.QueryRow(ctx, getAssessmentSnapshot, id)
	var i AssessmentSnapshot
	err := row.Scan(
		&i.ID,
		&i.Postcode,
		&i.OverallRating,
		&i.Outcome,
		&i.AssessmentID,
		&i.Latitude,
		&i.Longitude,
		&i.VehicleCount,
		&i.Notes,
		&i.Document,
		&i.CreatedAt,
	)
	return i, err
}

const setAssessmentNotes = `-- name: SetAssessmentNotes :execrows
UPDATE assessment_history
SET notes = $2
WHERE assessment_id = $1
`

type SetAssessmentNotesParams struct {
	AssessmentID string
	Notes        string
}

func (q *Queries) SetAssessmentNotes(ctx context.Context, arg SetAssessmentNotesParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setAssessmentNotes, arg.AssessmentID, arg.Notes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteAssessmentsBefore = `-- name: DeleteAssessmentsBefore :execrows
WITH doomed AS (
  SELECT id
  FROM assessment_history
  WHERE created_at < $1
  ORDER BY created_at ASC
  LIMIT $2
)
DELETE FROM assessment_history h
USING doomed
WHERE h.id = doomed.id
`

type DeleteAssessmentsBeforeParams struct {
	Cutoff time.Time
	Limit  int32
}

// DeleteAssessmentsBefore removes at most Limit rows older than Cutoff.
func (q *Queries) DeleteAssessmentsBefore(ctx context.Context, arg DeleteAssessmentsBeforeParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAssessmentsBefore, arg.Cutoff, arg.Limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
