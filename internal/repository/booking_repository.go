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

// BookingRepository persists client reservations for class occurrences.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a booking row. A duplicate (client, program, starts_at)
// key surfaces as a unique violation for the service to translate.
func (r *BookingRepository) Create(ctx context.Context, booking *models.BookedClass) error {
	booking.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO booked_classes (client_id, program_id, starts_at, created_at)
VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query,
		booking.ClientID, booking.ProgramID, booking.StartsAt, booking.CreatedAt); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// Delete removes one client's booking for an occurrence.
func (r *BookingRepository) Delete(ctx context.Context, clientID, programID int64, startsAt time.Time) error {
	const query = `DELETE FROM booked_classes WHERE client_id = $1 AND program_id = $2 AND starts_at = $3`
	result, err := r.db.ExecContext(ctx, query, clientID, programID, startsAt)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteMany removes every booking row matching one of the occurrence keys,
// regardless of client. Used by schema reconciliation inside its unit of
// work.
func (r *BookingRepository) DeleteMany(ctx context.Context, exec sqlx.ExtContext, keys []models.ClassKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	tuples := make([]string, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for i, key := range keys {
		tuples[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
		args = append(args, key.ProgramID, key.StartsAt)
	}
	query := fmt.Sprintf(`DELETE FROM booked_classes WHERE (program_id, starts_at) IN (%s)`,
		strings.Join(tuples, ", "))
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete bookings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted bookings rows affected: %w", err)
	}
	return affected, nil
}

// ListByClient returns a client's bookings, most recent occurrence first.
func (r *BookingRepository) ListByClient(ctx context.Context, clientID int64) ([]models.BookedClass, error) {
	const query = `SELECT client_id, program_id, starts_at, created_at
FROM booked_classes WHERE client_id = $1 ORDER BY starts_at DESC`
	var bookings []models.BookedClass
	if err := r.db.SelectContext(ctx, &bookings, query, clientID); err != nil {
		return nil, fmt.Errorf("list client bookings: %w", err)
	}
	return bookings, nil
}

// Exists reports whether any client already booked the occurrence key for
// the given client.
func (r *BookingRepository) Exists(ctx context.Context, clientID, programID int64, startsAt time.Time) (bool, error) {
	const query = `SELECT 1 FROM booked_classes WHERE client_id = $1 AND program_id = $2 AND starts_at = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, clientID, programID, startsAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check booking existence: %w", err)
	}
	return true, nil
}

// CountForClass returns how many clients booked one concrete occurrence.
func (r *BookingRepository) CountForClass(ctx context.Context, programID int64, startsAt time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM booked_classes WHERE program_id = $1 AND starts_at = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, programID, startsAt); err != nil {
		return 0, fmt.Errorf("count class bookings: %w", err)
	}
	return count, nil
}

// CountBetween aggregates booking counts per occurrence within [from, to).
func (r *BookingRepository) CountBetween(ctx context.Context, from, to time.Time) ([]models.OccurrenceBookings, error) {
	const query = `SELECT program_id, starts_at, COUNT(*) AS booked
FROM booked_classes WHERE starts_at >= $1 AND starts_at < $2
GROUP BY program_id, starts_at`
	var counts []models.OccurrenceBookings
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	return counts, nil
}

// AttendanceBetween aggregates bookings per program within [from, to),
// feeding the attendance report.
func (r *BookingRepository) AttendanceBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceRow, error) {
	const query = `SELECT b.program_id, p.name AS program_name, COUNT(*) AS bookings
FROM booked_classes b
JOIN programs p ON p.id = b.program_id
WHERE b.starts_at >= $1 AND b.starts_at < $2
GROUP BY b.program_id, p.name
ORDER BY bookings DESC, p.name`
	var rows []models.AttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate attendance: %w", err)
	}
	return rows, nil
}
