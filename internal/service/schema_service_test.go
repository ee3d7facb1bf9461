package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

// scheduleState is shared in-memory backing for the fake repositories.
type scheduleState struct {
	schemas  map[int64]*models.ScheduleSchema
	records  map[int64]models.SchemaRecord
	assoc    map[int64]map[int64]struct{}
	bookings map[models.ClassKey]int
	nextID   int64

	cancelledKeys []models.ClassKey
}

func newScheduleState() *scheduleState {
	return &scheduleState{
		schemas:  make(map[int64]*models.ScheduleSchema),
		records:  make(map[int64]models.SchemaRecord),
		assoc:    make(map[int64]map[int64]struct{}),
		bookings: make(map[models.ClassKey]int),
	}
}

func (s *scheduleState) addSchema(name string, active bool, pendingFrom *time.Time) *models.ScheduleSchema {
	s.nextID++
	schema := &models.ScheduleSchema{ID: s.nextID, Name: name, Active: active, PendingFrom: pendingFrom}
	s.schemas[schema.ID] = schema
	s.assoc[schema.ID] = make(map[int64]struct{})
	return schema
}

func (s *scheduleState) addRecord(programID int64, weekday int, startTime string, schemaIDs ...int64) models.SchemaRecord {
	s.nextID++
	record := models.SchemaRecord{ID: s.nextID, ProgramID: programID, Weekday: weekday, StartTime: startTime}
	s.records[record.ID] = record
	for _, schemaID := range schemaIDs {
		s.assoc[schemaID][record.ID] = struct{}{}
	}
	return record
}

type fakeSchemaRepo struct{ state *scheduleState }

func (f *fakeSchemaRepo) InTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	return fn(nil)
}

func (f *fakeSchemaRepo) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.ScheduleSchema, error) {
	schema, ok := f.state.schemas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *schema
	return &copied, nil
}

func (f *fakeSchemaRepo) FindActive(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	for _, schema := range f.state.schemas {
		if schema.Active {
			copied := *schema
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSchemaRepo) FindPending(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	for _, schema := range f.state.schemas {
		if schema.PendingFrom != nil {
			copied := *schema
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSchemaRepo) List(_ context.Context) ([]models.ScheduleSchema, error) {
	out := make([]models.ScheduleSchema, 0, len(f.state.schemas))
	for _, schema := range f.state.schemas {
		out = append(out, *schema)
	}
	return out, nil
}

func (f *fakeSchemaRepo) Create(_ context.Context, _ sqlx.ExtContext, schema *models.ScheduleSchema) error {
	f.state.nextID++
	schema.ID = f.state.nextID
	copied := *schema
	f.state.schemas[schema.ID] = &copied
	f.state.assoc[schema.ID] = make(map[int64]struct{})
	return nil
}

func (f *fakeSchemaRepo) UpdateName(_ context.Context, _ sqlx.ExtContext, id int64, name string) error {
	schema, ok := f.state.schemas[id]
	if !ok {
		return sql.ErrNoRows
	}
	schema.Name = name
	return nil
}

func (f *fakeSchemaRepo) SetActive(_ context.Context, _ sqlx.ExtContext, id int64, active bool) error {
	schema, ok := f.state.schemas[id]
	if !ok {
		return sql.ErrNoRows
	}
	schema.Active = active
	return nil
}

func (f *fakeSchemaRepo) SetPendingFrom(_ context.Context, _ sqlx.ExtContext, id int64, from *time.Time) error {
	schema, ok := f.state.schemas[id]
	if !ok {
		return sql.ErrNoRows
	}
	schema.PendingFrom = from
	return nil
}

func (f *fakeSchemaRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.state.schemas[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.state.schemas, id)
	delete(f.state.assoc, id)
	return nil
}

func (f *fakeSchemaRepo) RecordIDs(_ context.Context, _ sqlx.ExtContext, schemaID int64) ([]int64, error) {
	var ids []int64
	for id := range f.state.assoc[schemaID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSchemaRepo) AddRecords(_ context.Context, _ sqlx.ExtContext, schemaID int64, recordIDs []int64) error {
	for _, id := range recordIDs {
		f.state.assoc[schemaID][id] = struct{}{}
	}
	return nil
}

func (f *fakeSchemaRepo) RemoveRecords(_ context.Context, _ sqlx.ExtContext, schemaID int64, recordIDs []int64) error {
	for _, id := range recordIDs {
		delete(f.state.assoc[schemaID], id)
	}
	return nil
}

func (f *fakeSchemaRepo) CopyRecords(_ context.Context, _ sqlx.ExtContext, fromID, toID int64) error {
	for id := range f.state.assoc[fromID] {
		f.state.assoc[toID][id] = struct{}{}
	}
	return nil
}

func (f *fakeSchemaRepo) CountReferences(_ context.Context, _ sqlx.ExtContext, recordID int64) (int, error) {
	count := 0
	for _, records := range f.state.assoc {
		if _, ok := records[recordID]; ok {
			count++
		}
	}
	return count, nil
}

type fakeRecordRepo struct{ state *scheduleState }

func (f *fakeRecordRepo) FindByIDs(_ context.Context, _ sqlx.ExtContext, ids []int64) ([]models.SchemaRecord, error) {
	var out []models.SchemaRecord
	for _, id := range ids {
		if record, ok := f.state.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) ListBySchema(_ context.Context, _ sqlx.ExtContext, schemaID int64) ([]models.SchemaRecord, error) {
	var out []models.SchemaRecord
	for id := range f.state.assoc[schemaID] {
		out = append(out, f.state.records[id])
	}
	return out, nil
}

func (f *fakeRecordRepo) Delete(_ context.Context, _ sqlx.ExtContext, id int64) error {
	if _, ok := f.state.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.state.records, id)
	return nil
}

type fakeBookingRepo struct{ state *scheduleState }

func (f *fakeBookingRepo) DeleteMany(_ context.Context, _ sqlx.ExtContext, keys []models.ClassKey) (int64, error) {
	var removed int64
	for _, key := range keys {
		f.state.cancelledKeys = append(f.state.cancelledKeys, key)
		if count, ok := f.state.bookings[key]; ok {
			removed += int64(count)
			delete(f.state.bookings, key)
		}
	}
	return removed, nil
}

// Monday 8:00 so that every weekday occurrence of the current week is still
// ahead of "now".
var testNow = time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)

func newSchemaServiceForTest(state *scheduleState) *SchemaService {
	return NewSchemaService(
		&fakeSchemaRepo{state: state},
		&fakeRecordRepo{state: state},
		&fakeBookingRepo{state: state},
		clock.NewFixed(testNow),
		nil, nil, nil,
		zap.NewNop(),
	)
}

func conflictStatus(t *testing.T, err error) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestCreateFirstSchemaBecomesActive(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	schema, err := svc.Create(context.Background(), CreateSchemaRequest{Name: "Winter"})
	require.NoError(t, err)
	assert.True(t, schema.Active)

	second, err := svc.Create(context.Background(), CreateSchemaRequest{Name: "Spring"})
	require.NoError(t, err)
	assert.False(t, second.Active)
}

func TestActivateCloneWithExtraRecordCancelsNothing(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	s2 := state.addSchema("S2", false, nil)
	state.addRecord(10, 0, "18:00:00", s2.ID)

	activate := true
	updated, err := svc.Update(context.Background(), s2.ID, UpdateSchemaRequest{Active: &activate})
	require.NoError(t, err)

	assert.True(t, updated.Active)
	assert.False(t, state.schemas[s1.ID].Active)
	assert.Empty(t, state.cancelledKeys)
}

func TestActivateCancelsLostOccurrencesThisAndNextWeek(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	s2 := state.addSchema("S2", false, nil)
	record := state.addRecord(7, 1, "09:00:00", s1.ID)

	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	nextTuesday := thisTuesday.AddDate(0, 0, 7)
	twoWeeksOut := thisTuesday.AddDate(0, 0, 14)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday}] = 1
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday}] = 2
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: twoWeeksOut}] = 1

	activate := true
	_, err := svc.Update(context.Background(), s2.ID, UpdateSchemaRequest{Active: &activate})
	require.NoError(t, err)

	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday})
	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday})
	assert.Contains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: twoWeeksOut},
		"occurrences beyond the next week are outside the reconciliation horizon")
}

func TestActivateSkipsNextWeekWhenPendingSchemaExists(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	s2 := state.addSchema("S2", false, nil)
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	state.addSchema("S3", false, &nextMonday)
	record := state.addRecord(7, 1, "09:00:00", s1.ID)

	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	nextTuesday := thisTuesday.AddDate(0, 0, 7)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday}] = 1
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday}] = 1

	activate := true
	_, err := svc.Update(context.Background(), s2.ID, UpdateSchemaRequest{Active: &activate})
	require.NoError(t, err)

	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday})
	assert.Contains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday},
		"next week is governed by the pending schema, not the outgoing one")
}

func TestActivateAlreadyActiveIsConflict(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	s1 := state.addSchema("S1", true, nil)

	activate := true
	_, err := svc.Update(context.Background(), s1.ID, UpdateSchemaRequest{Active: &activate})
	conflictStatus(t, err)
}

func TestActivateAndScheduleNextWeekTogetherIsConflict(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	state.addSchema("S1", true, nil)
	s2 := state.addSchema("S2", false, nil)

	activate := true
	nextWeek := true
	_, err := svc.Update(context.Background(), s2.ID, UpdateSchemaRequest{Active: &activate, ActivateNextWeek: &nextWeek})
	conflictStatus(t, err)
	assert.Nil(t, state.schemas[s2.ID].PendingFrom,
		"a schema activated in the same request may not also become pending")
}

func TestDeactivateActiveSchemaIsConflict(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	s1 := state.addSchema("S1", true, nil)

	deactivate := false
	_, err := svc.Update(context.Background(), s1.ID, UpdateSchemaRequest{Active: &deactivate})
	conflictStatus(t, err)
}

func TestSchedulePendingDisplacesPreviousPending(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	state.addSchema("S1", true, nil)
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	s2 := state.addSchema("S2", false, &nextMonday)
	s3 := state.addSchema("S3", false, nil)
	record := state.addRecord(7, 2, "10:00:00", s2.ID)

	nextWednesday := time.Date(2026, time.January, 14, 10, 0, 0, 0, time.UTC)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextWednesday}] = 3

	schedule := true
	updated, err := svc.Update(context.Background(), s3.ID, UpdateSchemaRequest{ActivateNextWeek: &schedule})
	require.NoError(t, err)

	assert.True(t, updated.Pending())
	assert.Equal(t, nextMonday, *updated.PendingFrom)
	assert.Nil(t, state.schemas[s2.ID].PendingFrom, "displaced schema loses its pending mark")
	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextWednesday},
		"bookings for occurrences only the displaced schema produced are cancelled")
}

func TestUnsetPendingCancelsNextWeekOnly(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	state.addSchema("S1", true, nil)
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	s2 := state.addSchema("S2", false, &nextMonday)
	record := state.addRecord(7, 1, "09:00:00", s2.ID)

	thisTuesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
	nextTuesday := thisTuesday.AddDate(0, 0, 7)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday}] = 1
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday}] = 1

	unschedule := false
	updated, err := svc.Update(context.Background(), s2.ID, UpdateSchemaRequest{ActivateNextWeek: &unschedule})
	require.NoError(t, err)

	assert.False(t, updated.Pending())
	assert.Contains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisTuesday})
	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextTuesday})
}

func TestUpdateRenameOnly(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	s1 := state.addSchema("S1", false, nil)

	updated, err := svc.Update(context.Background(), s1.ID, UpdateSchemaRequest{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Empty(t, state.cancelledKeys)
}

func TestDeleteActiveOrPendingSchemaIsConflict(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	s2 := state.addSchema("S2", false, &nextMonday)
	s3 := state.addSchema("S3", false, nil)

	conflictStatus(t, svc.Delete(context.Background(), s1.ID))
	conflictStatus(t, svc.Delete(context.Background(), s2.ID))
	require.NoError(t, svc.Delete(context.Background(), s3.ID))
	assert.NotContains(t, state.schemas, s3.ID)
}

func TestExcludeRecordsForceDeleteRespectsReferences(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	s3 := state.addSchema("S3", false, nil)
	orphan := state.addRecord(7, 3, "11:00:00", s1.ID)
	shared := state.addRecord(8, 4, "12:00:00", s1.ID, s3.ID)

	err := svc.ExcludeRecords(context.Background(), s1.ID, ExcludeRecordsRequest{
		RecordIDs:   []int64{orphan.ID, shared.ID},
		ForceDelete: true,
	})
	require.NoError(t, err)

	assert.NotContains(t, state.records, orphan.ID, "unreferenced record is deleted")
	assert.Contains(t, state.records, shared.ID, "record still referenced by another schema survives")
	assert.NotContains(t, state.assoc[s1.ID], shared.ID)
}

func TestExcludeRecordsFromActiveCancelsBookings(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	record := state.addRecord(7, 4, "19:00:00", s1.ID)

	thisFriday := time.Date(2026, time.January, 9, 19, 0, 0, 0, time.UTC)
	nextFriday := thisFriday.AddDate(0, 0, 7)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisFriday}] = 2
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextFriday}] = 1

	err := svc.ExcludeRecords(context.Background(), s1.ID, ExcludeRecordsRequest{RecordIDs: []int64{record.ID}})
	require.NoError(t, err)

	assert.Empty(t, state.bookings)
}

func TestExcludeRecordsFromPendingCancelsNextWeekOnly(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	state.addSchema("S1", true, nil)
	nextMonday := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	s2 := state.addSchema("S2", false, &nextMonday)
	record := state.addRecord(7, 4, "19:00:00", s2.ID)

	thisFriday := time.Date(2026, time.January, 9, 19, 0, 0, 0, time.UTC)
	nextFriday := thisFriday.AddDate(0, 0, 7)
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisFriday}] = 1
	state.bookings[models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextFriday}] = 1

	err := svc.ExcludeRecords(context.Background(), s2.ID, ExcludeRecordsRequest{RecordIDs: []int64{record.ID}})
	require.NoError(t, err)

	assert.Contains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: thisFriday})
	assert.NotContains(t, state.bookings, models.ClassKey{ProgramID: record.ProgramID, StartsAt: nextFriday})
}

func TestExcludeRecordsEmptyIsNoOp(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	s1 := state.addSchema("S1", true, nil)

	require.NoError(t, svc.ExcludeRecords(context.Background(), s1.ID, ExcludeRecordsRequest{}))
	assert.Empty(t, state.cancelledKeys)
}

func TestExcludeSkipsOccurrenceStartingExactlyNow(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", true, nil)
	// Monday 08:00, the pinned test instant.
	record := state.addRecord(7, 0, "08:00:00", s1.ID)
	atNow := models.ClassKey{ProgramID: record.ProgramID, StartsAt: testNow}
	state.bookings[atNow] = 1

	err := svc.ExcludeRecords(context.Background(), s1.ID, ExcludeRecordsRequest{RecordIDs: []int64{record.ID}})
	require.NoError(t, err)

	assert.Contains(t, state.bookings, atNow, "an occurrence starting exactly now counts as past")
}

func TestIncludeRecordsRoundTrip(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	s1 := state.addSchema("S1", false, nil)
	record := state.addRecord(7, 2, "10:00:00")

	records, err := svc.IncludeRecords(context.Background(), s1.ID, IncludeRecordsRequest{RecordIDs: []int64{record.ID}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	assert.Empty(t, state.cancelledKeys, "adding records never touches bookings")

	err = svc.ExcludeRecords(context.Background(), s1.ID, ExcludeRecordsRequest{RecordIDs: []int64{record.ID}})
	require.NoError(t, err)
	remaining, err := svc.GetRecords(context.Background(), s1.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestIncludeUnknownRecordIsNotFound(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)
	s1 := state.addSchema("S1", false, nil)

	_, err := svc.IncludeRecords(context.Background(), s1.ID, IncludeRecordsRequest{RecordIDs: []int64{999}})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestCreateSchemaClonesBaseRecords(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	base := state.addSchema("Base", true, nil)
	record := state.addRecord(7, 0, "18:00:00", base.ID)

	clone, err := svc.Create(context.Background(), CreateSchemaRequest{Name: "Clone", BaseSchemaID: &base.ID})
	require.NoError(t, err)
	assert.False(t, clone.Active)
	assert.Contains(t, state.assoc[clone.ID], record.ID)
}

func TestGetUnknownSchemaIsNotFound(t *testing.T) {
	state := newScheduleState()
	svc := newSchemaServiceForTest(state)

	_, err := svc.Get(context.Background(), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}
