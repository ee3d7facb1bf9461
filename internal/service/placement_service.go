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

type placementRepository interface {
	List(ctx context.Context) ([]models.Placement, error)
	FindByID(ctx context.Context, id int64) (*models.Placement, error)
	Create(ctx context.Context, placement *models.Placement) error
	Update(ctx context.Context, placement *models.Placement) error
	Delete(ctx context.Context, id int64) error
}

// PlacementRequest carries a room's mutable fields.
type PlacementRequest struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

// PlacementService manages rooms classes take place in.
type PlacementService struct {
	placements placementRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPlacementService creates a placement service.
func NewPlacementService(placements placementRepository, validate *validator.Validate, logger *zap.Logger) *PlacementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacementService{placements: placements, validator: validate, logger: logger}
}

func (s *PlacementService) List(ctx context.Context) ([]models.Placement, error) {
	placements, err := s.placements.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	return placements, nil
}

func (s *PlacementService) Get(ctx context.Context, id int64) (*models.Placement, error) {
	placement, err := s.placements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "placement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load placement")
	}
	return placement, nil
}

func (s *PlacementService) Create(ctx context.Context, req PlacementRequest) (*models.Placement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	placement := &models.Placement{Name: req.Name, Capacity: req.Capacity}
	if err := s.placements.Create(ctx, placement); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "placement name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create placement")
	}
	return placement, nil
}

func (s *PlacementService) Update(ctx context.Context, id int64, req PlacementRequest) (*models.Placement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	placement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	placement.Name = req.Name
	placement.Capacity = req.Capacity
	if err := s.placements.Update(ctx, placement); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "placement name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update placement")
	}
	return placement, nil
}

func (s *PlacementService) Delete(ctx context.Context, id int64) error {
	if err := s.placements.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "placement not found")
		}
		if repository.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "placement is referenced by programs")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete placement")
	}
	return nil
}
