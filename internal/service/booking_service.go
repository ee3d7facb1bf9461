package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/internal/repository"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type bookingRepository interface {
	Create(ctx context.Context, booking *models.BookedClass) error
	Delete(ctx context.Context, clientID, programID int64, startsAt time.Time) error
	ListByClient(ctx context.Context, clientID int64) ([]models.BookedClass, error)
	Exists(ctx context.Context, clientID, programID int64, startsAt time.Time) (bool, error)
	CountForClass(ctx context.Context, programID int64, startsAt time.Time) (int, error)
}

type bookingSchemaRepository interface {
	FindActive(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error)
	FindPending(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error)
}

type bookingRecordRepository interface {
	ListBySchema(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error)
}

type bookingProgramRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Program, error)
}

type bookingClientRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Client, error)
}

// BookRequest identifies the class occurrence a client wants a place in.
type BookRequest struct {
	ProgramID int64     `json:"program_id" validate:"required,gt=0"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
}

// BookingService places and releases client reservations. An occurrence is
// bookable only while the schema governing its week still produces it, the
// start lies strictly in the future, and the program has free places.
type BookingService struct {
	bookings  bookingRepository
	schemas   bookingSchemaRepository
	records   bookingRecordRepository
	programs  bookingProgramRepository
	clients   bookingClientRepository
	clock     *clock.Clock
	timetable timetableInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService creates a booking service.
func NewBookingService(bookings bookingRepository, schemas bookingSchemaRepository, records bookingRecordRepository, programs bookingProgramRepository, clients bookingClientRepository, clk *clock.Clock, timetable timetableInvalidator, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		schemas:   schemas,
		records:   records,
		programs:  programs,
		clients:   clients,
		clock:     clk,
		timetable: timetable,
		validator: validate,
		logger:    logger,
	}
}

// Book reserves a place for the client on the given occurrence.
func (s *BookingService) Book(ctx context.Context, clientID int64, req BookRequest) (*models.BookedClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	startsAt := req.StartsAt.In(s.clock.Location())
	now := s.clock.Now()
	// An occurrence starting exactly now already belongs to the past.
	if !startsAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class occurrence already started")
	}

	ok, err := s.occurrenceExists(ctx, req.ProgramID, startsAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no such class occurrence in the governing schedule")
	}

	booked, err := s.bookings.Exists(ctx, clientID, req.ProgramID, startsAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking")
	}
	if booked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "client already booked this class")
	}

	if program.PlaceLimit > 0 {
		taken, err := s.bookings.CountForClass(ctx, req.ProgramID, startsAt)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
		}
		if taken >= program.PlaceLimit {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class is fully booked")
		}
	}

	booking := &models.BookedClass{ClientID: clientID, ProgramID: req.ProgramID, StartsAt: startsAt}
	if err := s.bookings.Create(ctx, booking); err != nil {
		// A concurrent request may win the race past the Exists check and
		// leave the duplicate to the primary key.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "client already booked this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	s.invalidateTimetable(ctx)
	s.logger.Info("class booked",
		zap.Int64("client_id", clientID),
		zap.Int64("program_id", req.ProgramID),
		zap.Time("starts_at", startsAt))
	return booking, nil
}

// Unbook releases a client's reservation.
func (s *BookingService) Unbook(ctx context.Context, clientID int64, req BookRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	startsAt := req.StartsAt.In(s.clock.Location())
	if err := s.bookings.Delete(ctx, clientID, req.ProgramID, startsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}
	s.invalidateTimetable(ctx)
	return nil
}

// ListForClient returns the client's bookings.
func (s *BookingService) ListForClient(ctx context.Context, clientID int64) ([]models.BookedClass, error) {
	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	bookings, err := s.bookings.ListByClient(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// occurrenceExists checks that the schema governing the occurrence's week
// produces it. The current week is governed by the active schema; the next
// week by the pending schema when one exists, otherwise by the active one.
func (s *BookingService) occurrenceExists(ctx context.Context, programID int64, startsAt time.Time) (bool, error) {
	thisMonday := s.clock.MondayOfCurrentWeek()
	nextMonday := s.clock.MondayOfNextWeek()
	weekAfter := nextMonday.AddDate(0, 0, 7)

	var offsetDays int
	switch {
	case !startsAt.Before(thisMonday) && startsAt.Before(nextMonday):
		offsetDays = 0
	case !startsAt.Before(nextMonday) && startsAt.Before(weekAfter):
		offsetDays = 7
	default:
		return false, appErrors.Clone(appErrors.ErrValidation, "bookings are accepted for the current and next week only")
	}

	schema, err := s.governingSchema(ctx, offsetDays == 7)
	if err != nil {
		return false, err
	}
	if schema == nil {
		return false, nil
	}

	records, err := s.records.ListBySchema(ctx, nil, schema.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schema records")
	}
	for _, record := range records {
		if record.ProgramID != programID {
			continue
		}
		at, err := s.clock.Materialize(record.Weekday, record.StartTime)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize record")
		}
		if at.AddDate(0, 0, offsetDays).Equal(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (s *BookingService) governingSchema(ctx context.Context, nextWeek bool) (*models.ScheduleSchema, error) {
	if nextWeek {
		pending, err := s.schemas.FindPending(ctx, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find pending schema")
		}
		if pending != nil {
			return pending, nil
		}
	}
	active, err := s.schemas.FindActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find active schema")
	}
	return active, nil
}

func (s *BookingService) invalidateTimetable(ctx context.Context) {
	if s.timetable != nil {
		s.timetable.Invalidate(ctx)
	}
}
