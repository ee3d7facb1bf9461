package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// ProgramRepository handles persistence for training programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository instantiates a program repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = "id, name, category_id, placement_id, instructor_id, place_limit, paid, created_at, updated_at"

// List returns programs matching provided filters.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := "FROM programs WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CategoryID != 0 {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.InstructorID != 0 {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY name LIMIT %d OFFSET %d", programColumns, base, size, offset)

	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}

	return programs, total, nil
}

// FindByID loads a program by identifier.
func (r *ProgramRepository) FindByID(ctx context.Context, id int64) (*models.Program, error) {
	query := fmt.Sprintf("SELECT %s FROM programs WHERE id = $1", programColumns)
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// FindByIDs loads programs for the given id set.
func (r *ProgramRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Program, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM programs WHERE id IN (%s)", programColumns, strings.Join(placeholders, ", "))
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, fmt.Errorf("load programs: %w", err)
	}
	return programs, nil
}

// Create inserts a program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	const query = `INSERT INTO programs (name, category_id, placement_id, instructor_id, place_limit, paid, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.GetContext(ctx, &program.ID, query,
		program.Name, program.CategoryID, program.PlacementID, program.InstructorID,
		program.PlaceLimit, program.Paid, program.CreatedAt, program.UpdatedAt); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies a program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET name = $1, category_id = $2, placement_id = $3, instructor_id = $4,
place_limit = $5, paid = $6, updated_at = $7 WHERE id = $8`
	if _, err := r.db.ExecContext(ctx, query,
		program.Name, program.CategoryID, program.PlacementID, program.InstructorID,
		program.PlaceLimit, program.Paid, program.UpdatedAt, program.ID); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// Delete removes a program.
func (r *ProgramRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}
