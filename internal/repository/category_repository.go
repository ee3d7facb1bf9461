package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// CategoryRepository handles persistence for program categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository instantiates a category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	const query = `SELECT id, name, created_at FROM categories ORDER BY name`
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID loads a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	const query = `SELECT id, name, created_at FROM categories WHERE id = $1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// Create inserts a category. Duplicate names violate the unique constraint.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	category.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO categories (name, created_at) VALUES ($1, $2) RETURNING id`
	if err := r.db.GetContext(ctx, &category.ID, query, category.Name, category.CreatedAt); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update renames a category.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	const query = `UPDATE categories SET name = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, category.Name, category.ID); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Delete removes a category. Referencing programs raise a foreign key
// violation the service maps to Conflict.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
