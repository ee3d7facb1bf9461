package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// InstructorRepository handles persistence for instructors.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository instantiates an instructor repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorColumns = "id, full_name, phone, active, created_at, updated_at"

// List returns instructors, optionally only active ones.
func (r *InstructorRepository) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	query := fmt.Sprintf("SELECT %s FROM instructors", instructorColumns)
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY full_name"
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return instructors, nil
}

// FindByID loads an instructor by identifier.
func (r *InstructorRepository) FindByID(ctx context.Context, id int64) (*models.Instructor, error) {
	query := fmt.Sprintf("SELECT %s FROM instructors WHERE id = $1", instructorColumns)
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// Create inserts an instructor.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	now := time.Now().UTC()
	instructor.CreatedAt = now
	instructor.UpdatedAt = now
	const query = `INSERT INTO instructors (full_name, phone, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &instructor.ID, query,
		instructor.FullName, instructor.Phone, instructor.Active, instructor.CreatedAt, instructor.UpdatedAt); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update modifies an instructor.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET full_name = $1, phone = $2, active = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query,
		instructor.FullName, instructor.Phone, instructor.Active, instructor.UpdatedAt, instructor.ID); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// Delete removes an instructor.
func (r *InstructorRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM instructors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	return nil
}
