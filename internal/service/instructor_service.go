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

type instructorRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Instructor, error)
	FindByID(ctx context.Context, id int64) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Delete(ctx context.Context, id int64) error
}

// InstructorRequest carries an instructor's mutable fields.
type InstructorRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"active"`
}

// InstructorService manages coaches.
type InstructorService struct {
	instructors instructorRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInstructorService creates an instructor service.
func NewInstructorService(instructors instructorRepository, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{instructors: instructors, validator: validate, logger: logger}
}

func (s *InstructorService) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	instructors, err := s.instructors.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, nil
}

func (s *InstructorService) Get(ctx context.Context, id int64) (*models.Instructor, error) {
	instructor, err := s.instructors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

func (s *InstructorService) Create(ctx context.Context, req InstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor := &models.Instructor{FullName: req.FullName, Phone: req.Phone, Active: true}
	if req.Active != nil {
		instructor.Active = *req.Active
	}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

func (s *InstructorService) Update(ctx context.Context, id int64, req InstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	instructor.FullName = req.FullName
	instructor.Phone = req.Phone
	if req.Active != nil {
		instructor.Active = *req.Active
	}
	if err := s.instructors.Update(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

func (s *InstructorService) Delete(ctx context.Context, id int64) error {
	if err := s.instructors.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		if repository.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "instructor is referenced by programs")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete instructor")
	}
	return nil
}
