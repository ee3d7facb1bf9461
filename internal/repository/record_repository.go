package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// RecordRepository persists schema records (recurring occurrence templates).
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a record repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const recordColumns = "id, program_id, weekday, start_time, created_at"

// Create inserts a record and fills in its generated id.
func (r *RecordRepository) Create(ctx context.Context, record *models.SchemaRecord) error {
	record.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO schema_records (program_id, weekday, start_time, created_at)
VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &record.ID, query,
		record.ProgramID, record.Weekday, record.StartTime, record.CreatedAt); err != nil {
		return fmt.Errorf("create schema record: %w", err)
	}
	return nil
}

// FindByID loads a record by identifier.
func (r *RecordRepository) FindByID(ctx context.Context, id int64) (*models.SchemaRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM schema_records WHERE id = $1", recordColumns)
	var record models.SchemaRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIDs loads the records for the given id set. Missing ids are simply
// absent from the result; callers decide whether that is an error.
func (r *RecordRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.SchemaRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM schema_records WHERE id IN (%s) ORDER BY weekday, start_time",
		recordColumns, strings.Join(placeholders, ", "))
	var records []models.SchemaRecord
	if err := sqlx.SelectContext(ctx, r.exec(exec), &records, query, args...); err != nil {
		return nil, fmt.Errorf("load schema records: %w", err)
	}
	return records, nil
}

// ListBySchema returns the records associated with a schema ordered by
// weekday and time of day.
func (r *RecordRepository) ListBySchema(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error) {
	const query = `SELECT r.id, r.program_id, r.weekday, r.start_time, r.created_at
FROM schema_records r
JOIN schedule_schema_records sr ON sr.record_id = r.id
WHERE sr.schema_id = $1
ORDER BY r.weekday, r.start_time`
	var records []models.SchemaRecord
	if err := sqlx.SelectContext(ctx, r.exec(exec), &records, query, schemaID); err != nil {
		return nil, fmt.Errorf("list schema records: %w", err)
	}
	return records, nil
}

// Delete removes a record permanently.
func (r *RecordRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM schema_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schema record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schema record rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByProgram returns the number of records referencing the program.
func (r *RecordRepository) CountByProgram(ctx context.Context, programID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM schema_records WHERE program_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, programID); err != nil {
		return 0, fmt.Errorf("count program records: %w", err)
	}
	return count, nil
}
