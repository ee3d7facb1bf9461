package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type mockBookingRepo struct {
	existing  map[models.ClassKey]map[int64]struct{}
	created   []models.BookedClass
	deleted   []models.ClassKey
	createErr error
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{existing: make(map[models.ClassKey]map[int64]struct{})}
}

func (m *mockBookingRepo) book(clientID, programID int64, startsAt time.Time) {
	key := models.ClassKey{ProgramID: programID, StartsAt: startsAt}
	if m.existing[key] == nil {
		m.existing[key] = make(map[int64]struct{})
	}
	m.existing[key][clientID] = struct{}{}
}

func (m *mockBookingRepo) Create(_ context.Context, booking *models.BookedClass) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *booking)
	m.book(booking.ClientID, booking.ProgramID, booking.StartsAt)
	return nil
}

func (m *mockBookingRepo) Delete(_ context.Context, clientID, programID int64, startsAt time.Time) error {
	key := models.ClassKey{ProgramID: programID, StartsAt: startsAt}
	clients, ok := m.existing[key]
	if !ok {
		return sql.ErrNoRows
	}
	if _, ok := clients[clientID]; !ok {
		return sql.ErrNoRows
	}
	delete(clients, clientID)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockBookingRepo) ListByClient(_ context.Context, clientID int64) ([]models.BookedClass, error) {
	var out []models.BookedClass
	for key, clients := range m.existing {
		if _, ok := clients[clientID]; ok {
			out = append(out, models.BookedClass{ClientID: clientID, ProgramID: key.ProgramID, StartsAt: key.StartsAt})
		}
	}
	return out, nil
}

func (m *mockBookingRepo) Exists(_ context.Context, clientID, programID int64, startsAt time.Time) (bool, error) {
	clients, ok := m.existing[models.ClassKey{ProgramID: programID, StartsAt: startsAt}]
	if !ok {
		return false, nil
	}
	_, booked := clients[clientID]
	return booked, nil
}

func (m *mockBookingRepo) CountForClass(_ context.Context, programID int64, startsAt time.Time) (int, error) {
	return len(m.existing[models.ClassKey{ProgramID: programID, StartsAt: startsAt}]), nil
}

type mockBookingSchemas struct {
	active  *models.ScheduleSchema
	pending *models.ScheduleSchema
}

func (m *mockBookingSchemas) FindActive(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	return m.active, nil
}

func (m *mockBookingSchemas) FindPending(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	return m.pending, nil
}

type mockBookingRecords struct {
	bySchema map[int64][]models.SchemaRecord
}

func (m *mockBookingRecords) ListBySchema(_ context.Context, _ sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error) {
	return m.bySchema[schemaID], nil
}

type mockBookingPrograms struct {
	programs map[int64]*models.Program
}

func (m *mockBookingPrograms) FindByID(_ context.Context, id int64) (*models.Program, error) {
	program, ok := m.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return program, nil
}

type mockBookingClients struct {
	clients map[int64]*models.Client
}

func (m *mockBookingClients) FindByID(_ context.Context, id int64) (*models.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return client, nil
}

type bookingFixture struct {
	svc      *BookingService
	bookings *mockBookingRepo
	schemas  *mockBookingSchemas
}

// Active schema id 1 with Tuesday 09:00 for program 7; client 100 exists;
// clock pinned to Monday 2026-01-05 08:00 UTC.
func newBookingFixture() *bookingFixture {
	bookings := newMockBookingRepo()
	schemas := &mockBookingSchemas{active: &models.ScheduleSchema{ID: 1, Name: "S1", Active: true}}
	records := &mockBookingRecords{bySchema: map[int64][]models.SchemaRecord{
		1: {{ID: 11, ProgramID: 7, Weekday: 1, StartTime: "09:00:00"}},
	}}
	programs := &mockBookingPrograms{programs: map[int64]*models.Program{
		7: {ID: 7, Name: "Yoga", PlaceLimit: 2},
	}}
	clients := &mockBookingClients{clients: map[int64]*models.Client{
		100: {ID: 100, FullName: "Anna"},
	}}
	svc := NewBookingService(bookings, schemas, records, programs, clients,
		clock.NewFixed(testNow), nil, nil, zap.NewNop())
	return &bookingFixture{svc: svc, bookings: bookings, schemas: schemas}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	return appErr.Status
}

func TestBookOccurrenceInGoverningSchema(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)

	booking, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	require.NoError(t, err)
	assert.Equal(t, int64(100), booking.ClientID)
	require.Len(t, f.bookings.created, 1)
}

func TestBookPastOccurrenceIsRejected(t *testing.T) {
	f := newBookingFixture()
	lastTuesday := time.Date(2025, time.December, 30, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: lastTuesday})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Empty(t, f.bookings.created)
}

func TestBookOccurrenceStartingExactlyNowIsRejected(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: testNow})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestBookUnknownOccurrenceIsNotFound(t *testing.T) {
	f := newBookingFixture()
	// Wednesday has no scheduled class for program 7.
	thisWednesday := time.Date(2026, time.January, 7, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisWednesday})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestBookDuplicateIsConflict(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	f.bookings.book(100, 7, thisTuesday)

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestBookConcurrentDuplicateIsConflict(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	// A racing request inserts between the duplicate check and our insert;
	// the primary key reports it as a unique violation.
	f.bookings.createErr = &pq.Error{Code: "23505"}

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestBookFullClassIsConflict(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	f.bookings.book(101, 7, thisTuesday)
	f.bookings.book(102, 7, thisTuesday)

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestBookNextWeekGovernedByPendingSchema(t *testing.T) {
	f := newBookingFixture()
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	f.schemas.pending = &models.ScheduleSchema{ID: 2, Name: "S2", PendingFrom: &nextMonday}

	// The pending schema has no records, so the active schema's Tuesday
	// class does not exist next week.
	nextTuesday := time.Date(2026, time.January, 13, 9, 0, 0, 0, time.UTC)
	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: nextTuesday})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestBookBeyondNextWeekIsRejected(t *testing.T) {
	f := newBookingFixture()
	twoWeeksOut := time.Date(2026, time.January, 20, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.Book(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: twoWeeksOut})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestUnbookMissingBookingIsNotFound(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)

	err := f.svc.Unbook(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUnbookRemovesBooking(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	f.bookings.book(100, 7, thisTuesday)

	require.NoError(t, f.svc.Unbook(context.Background(), 100, BookRequest{ProgramID: 7, StartsAt: thisTuesday}))
	require.Len(t, f.bookings.deleted, 1)
}

func TestBookUnknownClientIsNotFound(t *testing.T) {
	f := newBookingFixture()
	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.Book(context.Background(), 999, BookRequest{ProgramID: 7, StartsAt: thisTuesday})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
