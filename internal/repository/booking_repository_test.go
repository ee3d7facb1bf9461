package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ignatev/fitclub-api/internal/models"
)

func TestBookingRepositoryDeleteManyBuildsTupleList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	first := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	second := time.Date(2026, time.January, 13, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM booked_classes WHERE (program_id, starts_at) IN (($1, $2), ($3, $4))")).
		WithArgs(int64(7), first, int64(7), second).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteMany(context.Background(), nil, []models.ClassKey{
		{ProgramID: 7, StartsAt: first},
		{ProgramID: 7, StartsAt: second},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteManyEmptyKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	removed, err := repo.DeleteMany(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Zero(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteMissingBooking(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	startsAt := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM booked_classes WHERE client_id = $1 AND program_id = $2 AND starts_at = $3")).
		WithArgs(int64(100), int64(7), startsAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 100, 7, startsAt)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	startsAt := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM booked_classes")).
		WithArgs(int64(100), int64(7), startsAt).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.Exists(context.Background(), 100, 7, startsAt)
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM booked_classes")).
		WithArgs(int64(100), int64(7), startsAt).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	exists, err = repo.Exists(context.Background(), 100, 7, startsAt)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryAttendanceBetween(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT b.program_id, p.name AS program_name, COUNT(*) AS bookings")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "program_name", "bookings"}).
			AddRow(7, "Yoga", 12).
			AddRow(8, "Pilates", 5))

	rows, err := repo.AttendanceBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Yoga", rows[0].ProgramName)
	require.Equal(t, 12, rows[0].Bookings)
	require.NoError(t, mock.ExpectationsWereMet())
}
