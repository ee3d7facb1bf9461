package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// PlacementRepository handles persistence for rooms and halls.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository instantiates a placement repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

// List returns all placements ordered by name.
func (r *PlacementRepository) List(ctx context.Context) ([]models.Placement, error) {
	const query = `SELECT id, name, capacity, created_at FROM placements ORDER BY name`
	var placements []models.Placement
	if err := r.db.SelectContext(ctx, &placements, query); err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	return placements, nil
}

// FindByID loads a placement by identifier.
func (r *PlacementRepository) FindByID(ctx context.Context, id int64) (*models.Placement, error) {
	const query = `SELECT id, name, capacity, created_at FROM placements WHERE id = $1`
	var placement models.Placement
	if err := r.db.GetContext(ctx, &placement, query, id); err != nil {
		return nil, err
	}
	return &placement, nil
}

// Create inserts a placement.
func (r *PlacementRepository) Create(ctx context.Context, placement *models.Placement) error {
	placement.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO placements (name, capacity, created_at) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.GetContext(ctx, &placement.ID, query,
		placement.Name, placement.Capacity, placement.CreatedAt); err != nil {
		return fmt.Errorf("create placement: %w", err)
	}
	return nil
}

// Update modifies a placement.
func (r *PlacementRepository) Update(ctx context.Context, placement *models.Placement) error {
	const query = `UPDATE placements SET name = $1, capacity = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, placement.Name, placement.Capacity, placement.ID); err != nil {
		return fmt.Errorf("update placement: %w", err)
	}
	return nil
}

// Delete removes a placement.
func (r *PlacementRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM placements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	return nil
}
