package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type recordRepository interface {
	Create(ctx context.Context, record *models.SchemaRecord) error
	FindByID(ctx context.Context, id int64) (*models.SchemaRecord, error)
}

type recordProgramRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Program, error)
}

// CreateRecordRequest describes payload for creating a schedule record.
type CreateRecordRequest struct {
	ProgramID int64  `json:"program_id" validate:"required,gt=0"`
	Weekday   int    `json:"weekday" validate:"gte=0,lte=6"`
	TimeOfDay string `json:"time_of_day" validate:"required"`
}

// RecordService creates immutable schedule records. Records carry no
// schema affiliation of their own; schemas reference them through the
// association set managed by SchemaService.
type RecordService struct {
	records   recordRepository
	programs  recordProgramRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecordService creates a record service.
func NewRecordService(records recordRepository, programs recordProgramRepository, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{records: records, programs: programs, validator: validate, logger: logger}
}

// Create validates and stores a new record.
func (s *RecordService) Create(ctx context.Context, req CreateRecordRequest) (*models.SchemaRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}
	startTime, err := clock.NormalizeTimeOfDay(req.TimeOfDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time of day")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	record := &models.SchemaRecord{
		ProgramID: req.ProgramID,
		Weekday:   req.Weekday,
		StartTime: startTime,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}
	s.logger.Info("schedule record created",
		zap.Int64("record_id", record.ID),
		zap.Int64("program_id", record.ProgramID),
		zap.Int("weekday", record.Weekday),
		zap.String("start_time", record.StartTime))
	return record, nil
}

// Get returns a record by id.
func (s *RecordService) Get(ctx context.Context, id int64) (*models.SchemaRecord, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}
