package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// StaffRepository handles persistence for back-office accounts.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository instantiates a staff repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = "id, email, full_name, password_hash, role, active, created_at, updated_at"

// FindByEmail loads a staff member by email, case-insensitively.
func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE LOWER(email) = LOWER($1)", staffColumns)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, email); err != nil {
		return nil, err
	}
	return &staff, nil
}

// FindByID loads a staff member by identifier.
func (r *StaffRepository) FindByID(ctx context.Context, id int64) (*models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE id = $1", staffColumns)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// List returns all staff accounts.
func (r *StaffRepository) List(ctx context.Context) ([]models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff ORDER BY full_name", staffColumns)
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// Count returns the number of staff accounts; used by the admin seed.
func (r *StaffRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM staff`); err != nil {
		return 0, fmt.Errorf("count staff: %w", err)
	}
	return count, nil
}

// Create inserts a staff account.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	now := time.Now().UTC()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	const query = `INSERT INTO staff (email, full_name, password_hash, role, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &staff.ID, query,
		staff.Email, staff.FullName, staff.PasswordHash, staff.Role, staff.Active,
		staff.CreatedAt, staff.UpdatedAt); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Deactivate marks a staff account inactive.
func (r *StaffRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE staff SET active = FALSE, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate staff: %w", err)
	}
	return nil
}
