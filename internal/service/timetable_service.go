package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

const timetableCacheKey = "timetable:current-week"

type timetableSchemaRepository interface {
	FindActive(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error)
}

type timetableRecordRepository interface {
	ListBySchema(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error)
}

type timetableProgramRepository interface {
	FindByIDs(ctx context.Context, ids []int64) ([]models.Program, error)
}

type timetableBookingRepository interface {
	CountBetween(ctx context.Context, from, to time.Time) ([]models.OccurrenceBookings, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TimetableService materializes the active schema into the public weekly
// timetable, enriched with program names, place limits and booking counts.
// The result is cached in Redis; any schema transition, record change or
// booking invalidates it.
type TimetableService struct {
	schemas  timetableSchemaRepository
	records  timetableRecordRepository
	programs timetableProgramRepository
	bookings timetableBookingRepository
	cache    timetableCache
	clock    *clock.Clock
	ttl      time.Duration
	metrics  *Metrics
	logger   *zap.Logger
}

// NewTimetableService creates a timetable service.
func NewTimetableService(schemas timetableSchemaRepository, records timetableRecordRepository, programs timetableProgramRepository, bookings timetableBookingRepository, cache timetableCache, clk *clock.Clock, ttl time.Duration, metrics *Metrics, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		schemas:  schemas,
		records:  records,
		programs: programs,
		bookings: bookings,
		cache:    cache,
		clock:    clk,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}
}

// Get returns the current week's timetable, serving from cache when fresh.
func (s *TimetableService) Get(ctx context.Context) (*models.Timetable, error) {
	if s.cache != nil {
		var cached models.Timetable
		err := s.cache.Get(ctx, timetableCacheKey, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.CacheHit("timetable")
			}
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.CacheMiss("timetable")
		}
	}

	timetable, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, timetableCacheKey, timetable, s.ttl); err != nil {
			s.logger.Warn("timetable cache write failed", zap.Error(err))
		}
	}
	return timetable, nil
}

// Invalidate drops the cached timetable. Safe to call without a cache.
func (s *TimetableService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, timetableCacheKey); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.Error(err))
	}
}

func (s *TimetableService) build(ctx context.Context) (*models.Timetable, error) {
	active, err := s.schemas.FindActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find active schema")
	}
	weekStart := s.clock.MondayOfCurrentWeek()
	timetable := &models.Timetable{WeekStart: weekStart, Entries: []models.TimetableEntry{}}
	if active == nil {
		return timetable, nil
	}
	timetable.SchemaID = active.ID
	timetable.SchemaName = active.Name

	records, err := s.records.ListBySchema(ctx, nil, active.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schema records")
	}
	if len(records) == 0 {
		return timetable, nil
	}

	programIDs := make([]int64, 0, len(records))
	seen := make(map[int64]struct{}, len(records))
	for _, record := range records {
		if _, ok := seen[record.ProgramID]; ok {
			continue
		}
		seen[record.ProgramID] = struct{}{}
		programIDs = append(programIDs, record.ProgramID)
	}
	programs, err := s.programs.FindByIDs(ctx, programIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load programs")
	}
	byID := make(map[int64]models.Program, len(programs))
	for _, program := range programs {
		byID[program.ID] = program
	}

	weekEnd := weekStart.AddDate(0, 0, 7)
	counts, err := s.bookings.CountBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}
	booked := make(map[models.ClassKey]int, len(counts))
	for _, count := range counts {
		booked[models.ClassKey{ProgramID: count.ProgramID, StartsAt: count.StartsAt.In(s.clock.Location())}] = count.Booked
	}

	for _, record := range records {
		startsAt, err := s.clock.Materialize(record.Weekday, record.StartTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize record")
		}
		entry := models.TimetableEntry{
			RecordID:  record.ID,
			ProgramID: record.ProgramID,
			Weekday:   record.Weekday,
			StartsAt:  startsAt,
			Booked:    booked[models.ClassKey{ProgramID: record.ProgramID, StartsAt: startsAt}],
		}
		if program, ok := byID[record.ProgramID]; ok {
			entry.ProgramName = program.Name
			entry.PlaceLimit = program.PlaceLimit
		}
		timetable.Entries = append(timetable.Entries, entry)
	}
	return timetable, nil
}
