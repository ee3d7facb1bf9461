package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// SchemaRepository persists schedule schemas and their record associations.
// Mutating methods accept an sqlx.ExtContext so the lifecycle engine can run
// a whole transition inside one transaction; passing nil targets the pool.
type SchemaRepository struct {
	db *sqlx.DB
}

// NewSchemaRepository constructs a schema repository.
func NewSchemaRepository(db *sqlx.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Beginx opens a transaction for a lifecycle unit of work.
func (r *SchemaRepository) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schema tx: %w", err)
	}
	return tx, nil
}

// InTx runs fn inside one transaction. Either every mutation fn performs
// commits, or none do; lifecycle transitions rely on this for atomicity.
func (r *SchemaRepository) InTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	tx, err := r.Beginx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaColumns = "id, name, active, pending_from, created_at, updated_at"

// FindByID loads a schema by identifier, locking the row when inside a
// transaction so concurrent transitions serialize on it.
func (r *SchemaRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ScheduleSchema, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_schemas WHERE id = $1", schemaColumns)
	if exec != nil {
		query += " FOR UPDATE"
	}
	var schema models.ScheduleSchema
	if err := sqlx.GetContext(ctx, r.exec(exec), &schema, query, id); err != nil {
		return nil, err
	}
	return &schema, nil
}

// FindActive returns the active schema, or nil when none exists yet.
func (r *SchemaRepository) FindActive(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_schemas WHERE active", schemaColumns)
	if exec != nil {
		query += " FOR UPDATE"
	}
	var schema models.ScheduleSchema
	if err := sqlx.GetContext(ctx, r.exec(exec), &schema, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active schema: %w", err)
	}
	return &schema, nil
}

// FindPending returns the schema scheduled for next week, or nil.
func (r *SchemaRepository) FindPending(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_schemas WHERE pending_from IS NOT NULL", schemaColumns)
	if exec != nil {
		query += " FOR UPDATE"
	}
	var schema models.ScheduleSchema
	if err := sqlx.GetContext(ctx, r.exec(exec), &schema, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending schema: %w", err)
	}
	return &schema, nil
}

// List returns all schemas ordered by creation.
func (r *SchemaRepository) List(ctx context.Context) ([]models.ScheduleSchema, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_schemas ORDER BY created_at ASC", schemaColumns)
	var schemas []models.ScheduleSchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return schemas, nil
}

// Create inserts a schema and fills in its generated id.
func (r *SchemaRepository) Create(ctx context.Context, exec sqlx.ExtContext, schema *models.ScheduleSchema) error {
	now := time.Now().UTC()
	schema.CreatedAt = now
	schema.UpdatedAt = now
	const query = `INSERT INTO schedule_schemas (name, active, pending_from, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &schema.ID, query,
		schema.Name, schema.Active, schema.PendingFrom, schema.CreatedAt, schema.UpdatedAt); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpdateName renames a schema.
func (r *SchemaRepository) UpdateName(ctx context.Context, exec sqlx.ExtContext, id int64, name string) error {
	const query = `UPDATE schedule_schemas SET name = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, name, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("rename schema: %w", err)
	}
	return nil
}

// SetActive flips the active flag on a schema.
func (r *SchemaRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id int64, active bool) error {
	const query = `UPDATE schedule_schemas SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, active, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set schema active flag: %w", err)
	}
	return nil
}

// SetPendingFrom sets or clears the pending activation date.
func (r *SchemaRepository) SetPendingFrom(ctx context.Context, exec sqlx.ExtContext, id int64, from *time.Time) error {
	const query = `UPDATE schedule_schemas SET pending_from = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, from, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set schema pending date: %w", err)
	}
	return nil
}

// Delete removes a schema and its record associations.
func (r *SchemaRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.Beginx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_schema_records WHERE schema_id = $1`, id); err != nil {
		return fmt.Errorf("delete schema associations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM schedule_schemas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schema rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema delete: %w", err)
	}
	return nil
}

// RecordIDs returns the ids of records associated with a schema.
func (r *SchemaRepository) RecordIDs(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]int64, error) {
	const query = `SELECT record_id FROM schedule_schema_records WHERE schema_id = $1 ORDER BY record_id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, schemaID); err != nil {
		return nil, fmt.Errorf("list schema record ids: %w", err)
	}
	return ids, nil
}

// AddRecords associates records with a schema; existing associations are
// kept untouched.
func (r *SchemaRepository) AddRecords(ctx context.Context, exec sqlx.ExtContext, schemaID int64, recordIDs []int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	target := r.exec(exec)
	const query = `INSERT INTO schedule_schema_records (schema_id, record_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, recordID := range recordIDs {
		if _, err := target.ExecContext(ctx, query, schemaID, recordID); err != nil {
			return fmt.Errorf("associate record %d with schema %d: %w", recordID, schemaID, err)
		}
	}
	return nil
}

// RemoveRecords drops the association between a schema and the given records.
func (r *SchemaRepository) RemoveRecords(ctx context.Context, exec sqlx.ExtContext, schemaID int64, recordIDs []int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(recordIDs))
	args := make([]interface{}, 0, len(recordIDs)+1)
	args = append(args, schemaID)
	for i, id := range recordIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM schedule_schema_records WHERE schema_id = $1 AND record_id IN (%s)`,
		strings.Join(placeholders, ", "))
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove schema records: %w", err)
	}
	return nil
}

// CopyRecords initializes a schema's record set from a base schema.
func (r *SchemaRepository) CopyRecords(ctx context.Context, exec sqlx.ExtContext, fromID, toID int64) error {
	const query = `INSERT INTO schedule_schema_records (schema_id, record_id)
SELECT $1, record_id FROM schedule_schema_records WHERE schema_id = $2
ON CONFLICT DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, toID, fromID); err != nil {
		return fmt.Errorf("copy schema records: %w", err)
	}
	return nil
}

// CountReferences returns how many schemas still reference the record.
func (r *SchemaRepository) CountReferences(ctx context.Context, exec sqlx.ExtContext, recordID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM schedule_schema_records WHERE record_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, recordID); err != nil {
		return 0, fmt.Errorf("count record references: %w", err)
	}
	return count, nil
}
