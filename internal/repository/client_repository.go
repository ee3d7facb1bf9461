package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatev/fitclub-api/internal/models"
)

// ClientRepository handles persistence for club members.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository instantiates a client repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = "id, full_name, phone, email, created_at, updated_at"

// List returns clients matching the optional search filter.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	base := "FROM clients WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND full_name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY full_name LIMIT %d OFFSET %d", clientColumns, base, size, offset)

	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	return clients, total, nil
}

// FindByID loads a client by identifier.
func (r *ClientRepository) FindByID(ctx context.Context, id int64) (*models.Client, error) {
	query := fmt.Sprintf("SELECT %s FROM clients WHERE id = $1", clientColumns)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// Create inserts a client.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	const query = `INSERT INTO clients (full_name, phone, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &client.ID, query,
		client.FullName, client.Phone, client.Email, client.CreatedAt, client.UpdatedAt); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// Update modifies a client.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET full_name = $1, phone = $2, email = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query,
		client.FullName, client.Phone, client.Email, client.UpdatedAt, client.ID); err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// Delete removes a client along with their bookings.
func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin client delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM booked_classes WHERE client_id = $1`, id); err != nil {
		return fmt.Errorf("delete client bookings: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit client delete: %w", err)
	}
	return nil
}
