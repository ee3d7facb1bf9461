package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/internal/repository"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id int64) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, id int64) error
}

type programRecordCounter interface {
	CountByProgram(ctx context.Context, programID int64) (int, error)
}

// ProgramRequest carries a training program's mutable fields.
type ProgramRequest struct {
	Name         string `json:"name" validate:"required"`
	CategoryID   int64  `json:"category_id" validate:"required,gt=0"`
	PlacementID  int64  `json:"placement_id" validate:"required,gt=0"`
	InstructorID int64  `json:"instructor_id" validate:"required,gt=0"`
	PlaceLimit   int    `json:"place_limit" validate:"gte=0"`
	Paid         bool   `json:"paid"`
}

// ProgramService manages training programs.
type ProgramService struct {
	programs  programRepository
	records   programRecordCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService creates a program service.
func NewProgramService(programs programRepository, records programRecordCounter, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{programs: programs, records: records, validator: validate, logger: logger}
}

// List returns programs matching the filter with paging metadata.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	programs, total, err := s.programs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *ProgramService) Get(ctx context.Context, id int64) (*models.Program, error) {
	program, err := s.programs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

func (s *ProgramService) Create(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program := &models.Program{
		Name:         req.Name,
		CategoryID:   req.CategoryID,
		PlacementID:  req.PlacementID,
		InstructorID: req.InstructorID,
		PlaceLimit:   req.PlaceLimit,
		Paid:         req.Paid,
	}
	if err := s.programs.Create(ctx, program); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program name already exists")
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category, placement or instructor")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

func (s *ProgramService) Update(ctx context.Context, id int64, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	program.Name = req.Name
	program.CategoryID = req.CategoryID
	program.PlacementID = req.PlacementID
	program.InstructorID = req.InstructorID
	program.PlaceLimit = req.PlaceLimit
	program.Paid = req.Paid
	if err := s.programs.Update(ctx, program); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program name already exists")
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category, placement or instructor")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// Delete removes a program unless schedule records still reference it.
func (s *ProgramService) Delete(ctx context.Context, id int64) error {
	refs, err := s.records.CountByProgram(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count program records")
	}
	if refs > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "program is referenced by schedule records")
	}
	if err := s.programs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	return nil
}
