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
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type schemaRepository interface {
	InTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ScheduleSchema, error)
	FindActive(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error)
	FindPending(ctx context.Context, exec sqlx.ExtContext) (*models.ScheduleSchema, error)
	List(ctx context.Context) ([]models.ScheduleSchema, error)
	Create(ctx context.Context, exec sqlx.ExtContext, schema *models.ScheduleSchema) error
	UpdateName(ctx context.Context, exec sqlx.ExtContext, id int64, name string) error
	SetActive(ctx context.Context, exec sqlx.ExtContext, id int64, active bool) error
	SetPendingFrom(ctx context.Context, exec sqlx.ExtContext, id int64, from *time.Time) error
	Delete(ctx context.Context, id int64) error
	RecordIDs(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]int64, error)
	AddRecords(ctx context.Context, exec sqlx.ExtContext, schemaID int64, recordIDs []int64) error
	RemoveRecords(ctx context.Context, exec sqlx.ExtContext, schemaID int64, recordIDs []int64) error
	CopyRecords(ctx context.Context, exec sqlx.ExtContext, fromID, toID int64) error
	CountReferences(ctx context.Context, exec sqlx.ExtContext, recordID int64) (int, error)
}

type schemaRecordRepository interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.SchemaRecord, error)
	ListBySchema(ctx context.Context, exec sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
}

type schemaBookingRepository interface {
	DeleteMany(ctx context.Context, exec sqlx.ExtContext, keys []models.ClassKey) (int64, error)
}

type timetableInvalidator interface {
	Invalidate(ctx context.Context)
}

// CreateSchemaRequest describes payload for creating schedule schemas.
type CreateSchemaRequest struct {
	Name         string `json:"name" validate:"required"`
	BaseSchemaID *int64 `json:"base_schema_id"`
}

// UpdateSchemaRequest multiplexes lifecycle transitions and plain field
// updates. Transition flags are processed before the field copy.
type UpdateSchemaRequest struct {
	Active           *bool  `json:"active"`
	ActivateNextWeek *bool  `json:"activate_next_week"`
	Name             string `json:"name"`
}

// IncludeRecordsRequest adds records to a schema's set.
type IncludeRecordsRequest struct {
	RecordIDs []int64 `json:"record_ids" validate:"required,min=1"`
}

// ExcludeRecordsRequest removes records from a schema's set, optionally
// deleting records no schema references anymore.
type ExcludeRecordsRequest struct {
	RecordIDs   []int64 `json:"record_ids"`
	ForceDelete bool    `json:"force_delete"`
}

// reconcileHorizon selects which calendar week a reconciliation pass
// cancels bookings in.
type reconcileHorizon int

const (
	horizonThisWeek reconcileHorizon = iota
	horizonNextWeek
)

// SchemaService is the schedule schema lifecycle engine. It owns the
// activate / schedule-pending / unset-pending transitions and the booking
// reconciliation that keeps client reservations consistent with the
// governing schema. Every transition runs as one transaction: either all
// flag flips and booking deletions commit, or none do.
type SchemaService struct {
	schemas   schemaRepository
	records   schemaRecordRepository
	bookings  schemaBookingRepository
	clock     *clock.Clock
	timetable timetableInvalidator
	metrics   *Metrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchemaService creates the lifecycle engine.
func NewSchemaService(schemas schemaRepository, records schemaRecordRepository, bookings schemaBookingRepository, clk *clock.Clock, timetable timetableInvalidator, metrics *Metrics, validate *validator.Validate, logger *zap.Logger) *SchemaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaService{
		schemas:   schemas,
		records:   records,
		bookings:  bookings,
		clock:     clk,
		timetable: timetable,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns all schemas.
func (s *SchemaService) List(ctx context.Context) ([]models.ScheduleSchema, error) {
	schemas, err := s.schemas.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schemas")
	}
	return schemas, nil
}

// Get returns a schema by id.
func (s *SchemaService) Get(ctx context.Context, id int64) (*models.ScheduleSchema, error) {
	schema, err := s.schemas.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schema")
	}
	return schema, nil
}

// Create adds a schema. The very first schema becomes active; a base schema
// id clones that schema's record set into the new one.
func (s *SchemaService) Create(ctx context.Context, req CreateSchemaRequest) (*models.ScheduleSchema, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schema payload")
	}

	schema := &models.ScheduleSchema{Name: req.Name}
	err := s.schemas.InTx(ctx, func(exec sqlx.ExtContext) error {
		if req.BaseSchemaID != nil {
			if _, err := s.schemas.FindByID(ctx, exec, *req.BaseSchemaID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "base schema not found")
				}
				return err
			}
		}

		active, err := s.schemas.FindActive(ctx, exec)
		if err != nil {
			return err
		}
		schema.Active = active == nil

		if err := s.schemas.Create(ctx, exec, schema); err != nil {
			return err
		}
		if req.BaseSchemaID != nil {
			if err := s.schemas.CopyRecords(ctx, exec, *req.BaseSchemaID, schema.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.asAppError(err, "failed to create schema")
	}
	return schema, nil
}

// Delete removes a schema. Active and pending schemas may not be deleted.
func (s *SchemaService) Delete(ctx context.Context, id int64) error {
	schema, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if schema.Active || schema.Pending() {
		return appErrors.Clone(appErrors.ErrConflict, "active or pending schema may not be deleted")
	}
	if err := s.schemas.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schema")
	}
	return nil
}

// Update applies lifecycle transitions and field updates in one unit of
// work. Activation diffs the target against the outgoing active schema and
// cancels bookings for occurrences only the old schema produces; scheduling
// for next week displaces a previously pending schema the same way.
func (s *SchemaService) Update(ctx context.Context, id int64, req UpdateSchemaRequest) (*models.ScheduleSchema, error) {
	var updated *models.ScheduleSchema
	err := s.schemas.InTx(ctx, func(exec sqlx.ExtContext) error {
		target, err := s.schemas.FindByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "schema not found")
			}
			return err
		}
		active, err := s.schemas.FindActive(ctx, exec)
		if err != nil {
			return err
		}
		pending, err := s.schemas.FindPending(ctx, exec)
		if err != nil {
			return err
		}

		if req.Active != nil && *req.Active {
			if err := s.activate(ctx, exec, target, active, pending); err != nil {
				return err
			}
			// Later branches must see the flags activate just flipped.
			target.Active = true
			active = target
			if pending != nil && pending.ID == target.ID {
				pending = nil
			}
		}
		if req.Active != nil && !*req.Active {
			if active != nil && active.ID == target.ID {
				return appErrors.Clone(appErrors.ErrConflict, "active schema may not be deactivated directly")
			}
		}
		if req.ActivateNextWeek != nil && !*req.ActivateNextWeek {
			if err := s.unsetPending(ctx, exec, target, active, pending); err != nil {
				return err
			}
		}
		if req.ActivateNextWeek != nil && *req.ActivateNextWeek {
			if err := s.schedulePending(ctx, exec, target, active, pending); err != nil {
				return err
			}
		}

		if req.Name != "" && req.Name != target.Name {
			if err := s.schemas.UpdateName(ctx, exec, target.ID, req.Name); err != nil {
				return err
			}
		}

		updated, err = s.schemas.FindByID(ctx, exec, id)
		return err
	})
	if err != nil {
		return nil, s.asAppError(err, "failed to update schema")
	}
	s.invalidateTimetable(ctx)
	return updated, nil
}

// activate makes target the active schema. Occurrences that only the
// outgoing schema produces lose their remaining bookings for this week, and
// for next week too when no pending schema will take over.
func (s *SchemaService) activate(ctx context.Context, exec sqlx.ExtContext, target, active, pending *models.ScheduleSchema) error {
	if active != nil && active.ID == target.ID {
		return appErrors.Clone(appErrors.ErrConflict, "schema is already active")
	}

	if active != nil {
		if err := s.reconcile(ctx, exec, target.ID, active.ID, horizonThisWeek); err != nil {
			return err
		}
		if pending == nil {
			if err := s.reconcile(ctx, exec, target.ID, active.ID, horizonNextWeek); err != nil {
				return err
			}
		}
	}
	if pending != nil && pending.ID == target.ID {
		if err := s.schemas.SetPendingFrom(ctx, exec, target.ID, nil); err != nil {
			return err
		}
	}
	if active != nil {
		if err := s.schemas.SetActive(ctx, exec, active.ID, false); err != nil {
			return err
		}
	}
	if err := s.schemas.SetActive(ctx, exec, target.ID, true); err != nil {
		return err
	}

	s.logger.Info("schema activated",
		zap.Int64("schema_id", target.ID),
		zap.String("schema_name", target.Name))
	return nil
}

// unsetPending withdraws the target from next week. Bookings for next-week
// occurrences only the pending schema would produce are cancelled.
func (s *SchemaService) unsetPending(ctx context.Context, exec sqlx.ExtContext, target, active, pending *models.ScheduleSchema) error {
	if pending == nil || pending.ID != target.ID {
		return nil
	}
	activeID := int64(0)
	if active != nil {
		activeID = active.ID
	}
	if err := s.reconcile(ctx, exec, activeID, target.ID, horizonNextWeek); err != nil {
		return err
	}
	return s.schemas.SetPendingFrom(ctx, exec, target.ID, nil)
}

// schedulePending marks target to become active from next week's Monday,
// displacing a previously pending schema.
func (s *SchemaService) schedulePending(ctx context.Context, exec sqlx.ExtContext, target, active, pending *models.ScheduleSchema) error {
	if active != nil && active.ID == target.ID {
		return appErrors.Clone(appErrors.ErrConflict, "schema is already active")
	}
	if pending != nil && pending.ID == target.ID {
		return nil
	}
	if pending != nil {
		if err := s.reconcile(ctx, exec, target.ID, pending.ID, horizonNextWeek); err != nil {
			return err
		}
		if err := s.schemas.SetPendingFrom(ctx, exec, pending.ID, nil); err != nil {
			return err
		}
	}
	monday := s.clock.MondayOfNextWeek()
	if err := s.schemas.SetPendingFrom(ctx, exec, target.ID, &monday); err != nil {
		return err
	}

	s.logger.Info("schema scheduled for next week",
		zap.Int64("schema_id", target.ID),
		zap.Time("pending_from", monday))
	return nil
}

// GetRecords returns the schema's record set.
func (s *SchemaService) GetRecords(ctx context.Context, id int64) ([]models.SchemaRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySchema(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schema records")
	}
	return records, nil
}

// IncludeRecords unions the given records into the schema's set. Adding
// occurrences never orphans a booking, so no reconciliation happens.
func (s *SchemaService) IncludeRecords(ctx context.Context, id int64, req IncludeRecordsRequest) ([]models.SchemaRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid include payload")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	found, err := s.records.FindByIDs(ctx, nil, req.RecordIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}
	if len(found) != len(dedupe(req.RecordIDs)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown record id in payload")
	}

	if err := s.schemas.AddRecords(ctx, nil, id, req.RecordIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to include records")
	}
	s.invalidateTimetable(ctx)
	return s.GetRecords(ctx, id)
}

// ExcludeRecords removes records from the schema's set and cancels the
// bookings those records govern: for the active schema this week's
// remaining occurrences (and next week's, unless a pending schema takes
// over), for the pending schema next week's only. With forceDelete records
// no schema references anymore are deleted outright.
func (s *SchemaService) ExcludeRecords(ctx context.Context, id int64, req ExcludeRecordsRequest) error {
	if len(req.RecordIDs) == 0 {
		return nil
	}

	err := s.schemas.InTx(ctx, func(exec sqlx.ExtContext) error {
		target, err := s.schemas.FindByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "schema not found")
			}
			return err
		}
		pending, err := s.schemas.FindPending(ctx, exec)
		if err != nil {
			return err
		}

		switch {
		case target.Active:
			if err := s.cancelBookings(ctx, exec, req.RecordIDs, horizonThisWeek); err != nil {
				return err
			}
			if pending == nil {
				if err := s.cancelBookings(ctx, exec, req.RecordIDs, horizonNextWeek); err != nil {
					return err
				}
			}
		case target.Pending():
			if err := s.cancelBookings(ctx, exec, req.RecordIDs, horizonNextWeek); err != nil {
				return err
			}
		}

		if err := s.schemas.RemoveRecords(ctx, exec, target.ID, req.RecordIDs); err != nil {
			return err
		}

		if req.ForceDelete {
			for _, recordID := range req.RecordIDs {
				refs, err := s.schemas.CountReferences(ctx, exec, recordID)
				if err != nil {
					return err
				}
				if refs > 0 {
					continue
				}
				if err := s.records.Delete(ctx, exec, recordID); err != nil && !errors.Is(err, sql.ErrNoRows) {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return s.asAppError(err, "failed to exclude records")
	}
	s.invalidateTimetable(ctx)
	return nil
}

// reconcile cancels bookings for occurrences the losing schema produces
// but the kept schema does not, within the given horizon week.
func (s *SchemaService) reconcile(ctx context.Context, exec sqlx.ExtContext, keepID, loseID int64, horizon reconcileHorizon) error {
	var keep []int64
	if keepID != 0 {
		var err error
		keep, err = s.schemas.RecordIDs(ctx, exec, keepID)
		if err != nil {
			return err
		}
	}
	lose, err := s.schemas.RecordIDs(ctx, exec, loseID)
	if err != nil {
		return err
	}

	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var lost []int64
	for _, id := range lose {
		if _, ok := kept[id]; !ok {
			lost = append(lost, id)
		}
	}
	return s.cancelBookings(ctx, exec, lost, horizon)
}

// cancelBookings removes bookings for the occurrences the given records
// produce in the horizon week. Only occurrences strictly in the future are
// touched: history stays for attendance reporting, and an occurrence at
// exactly "now" counts as past.
func (s *SchemaService) cancelBookings(ctx context.Context, exec sqlx.ExtContext, recordIDs []int64, horizon reconcileHorizon) error {
	if len(recordIDs) == 0 {
		return nil
	}
	records, err := s.records.FindByIDs(ctx, exec, recordIDs)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	keys := make([]models.ClassKey, 0, len(records))
	for _, record := range records {
		startsAt, err := s.clock.Materialize(record.Weekday, record.StartTime)
		if err != nil {
			return err
		}
		if horizon == horizonNextWeek {
			startsAt = startsAt.AddDate(0, 0, 7)
		}
		if startsAt.After(now) {
			keys = append(keys, models.ClassKey{ProgramID: record.ProgramID, StartsAt: startsAt})
		}
	}
	if len(keys) == 0 {
		return nil
	}

	removed, err := s.bookings.DeleteMany(ctx, exec, keys)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.BookingsReconciled(removed)
	}
	if removed > 0 {
		s.logger.Info("bookings reconciled",
			zap.Int64("removed", removed),
			zap.Int("occurrences", len(keys)))
	}
	return nil
}

func (s *SchemaService) invalidateTimetable(ctx context.Context) {
	if s.timetable != nil {
		s.timetable.Invalidate(ctx)
	}
}

func (s *SchemaService) asAppError(err error, fallback string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
