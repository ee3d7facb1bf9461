package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/internal/service"
)

// stubSchemaStore implements the schema service's repository surfaces with a
// fixed pair of schemas: id 1 active, id 2 inactive.
type stubSchemaStore struct {
	schemas map[int64]*models.ScheduleSchema
}

func newStubSchemaStore() *stubSchemaStore {
	return &stubSchemaStore{schemas: map[int64]*models.ScheduleSchema{
		1: {ID: 1, Name: "Current", Active: true},
		2: {ID: 2, Name: "Draft"},
	}}
}

func (s *stubSchemaStore) InTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	return fn(nil)
}

func (s *stubSchemaStore) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.ScheduleSchema, error) {
	schema, ok := s.schemas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *schema
	return &copied, nil
}

func (s *stubSchemaStore) FindActive(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	for _, schema := range s.schemas {
		if schema.Active {
			copied := *schema
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubSchemaStore) FindPending(_ context.Context, _ sqlx.ExtContext) (*models.ScheduleSchema, error) {
	return nil, nil
}

func (s *stubSchemaStore) List(_ context.Context) ([]models.ScheduleSchema, error) {
	out := make([]models.ScheduleSchema, 0, len(s.schemas))
	for _, schema := range s.schemas {
		out = append(out, *schema)
	}
	return out, nil
}

func (s *stubSchemaStore) Create(_ context.Context, _ sqlx.ExtContext, schema *models.ScheduleSchema) error {
	schema.ID = int64(len(s.schemas) + 1)
	copied := *schema
	s.schemas[schema.ID] = &copied
	return nil
}

func (s *stubSchemaStore) UpdateName(_ context.Context, _ sqlx.ExtContext, id int64, name string) error {
	s.schemas[id].Name = name
	return nil
}

func (s *stubSchemaStore) SetActive(_ context.Context, _ sqlx.ExtContext, id int64, active bool) error {
	s.schemas[id].Active = active
	return nil
}

func (s *stubSchemaStore) SetPendingFrom(_ context.Context, _ sqlx.ExtContext, id int64, from *time.Time) error {
	s.schemas[id].PendingFrom = from
	return nil
}

func (s *stubSchemaStore) Delete(_ context.Context, id int64) error {
	delete(s.schemas, id)
	return nil
}

func (s *stubSchemaStore) RecordIDs(_ context.Context, _ sqlx.ExtContext, _ int64) ([]int64, error) {
	return nil, nil
}

func (s *stubSchemaStore) AddRecords(_ context.Context, _ sqlx.ExtContext, _ int64, _ []int64) error {
	return nil
}

func (s *stubSchemaStore) RemoveRecords(_ context.Context, _ sqlx.ExtContext, _ int64, _ []int64) error {
	return nil
}

func (s *stubSchemaStore) CopyRecords(_ context.Context, _ sqlx.ExtContext, _, _ int64) error {
	return nil
}

func (s *stubSchemaStore) CountReferences(_ context.Context, _ sqlx.ExtContext, _ int64) (int, error) {
	return 0, nil
}

type stubRecordStore struct{}

func (stubRecordStore) FindByIDs(_ context.Context, _ sqlx.ExtContext, _ []int64) ([]models.SchemaRecord, error) {
	return nil, nil
}

func (stubRecordStore) ListBySchema(_ context.Context, _ sqlx.ExtContext, _ int64) ([]models.SchemaRecord, error) {
	return nil, nil
}

func (stubRecordStore) Delete(_ context.Context, _ sqlx.ExtContext, _ int64) error {
	return nil
}

type stubBookingStore struct{}

func (stubBookingStore) DeleteMany(_ context.Context, _ sqlx.ExtContext, _ []models.ClassKey) (int64, error) {
	return 0, nil
}

func newSchemaRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	svc := service.NewSchemaService(newStubSchemaStore(), stubRecordStore{}, stubBookingStore{},
		clock.NewFixed(now), nil, nil, nil, zap.NewNop())
	h := NewSchemaHandler(svc)

	r := gin.New()
	r.GET("/schemas/:id", h.Get)
	r.PATCH("/schemas/:id", h.Update)
	return r
}

func patchSchema(t *testing.T, r *gin.Engine, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/schemas/"+id, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSchemaPatchActivate(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "2", `{"active": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.ScheduleSchema `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Active)
	assert.Equal(t, int64(2), envelope.Data.ID)
}

func TestSchemaPatchActivateAlreadyActive(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "1", `{"active": true}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSchemaPatchUnknownSchema(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "99", `{"name": "X"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchemaPatchInvalidID(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "abc", `{"name": "X"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaPatchMalformedBody(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "2", `{"active": "yes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaPatchScheduleNextWeek(t *testing.T) {
	r := newSchemaRouter(t)

	w := patchSchema(t, r, "2", `{"activate_next_week": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.ScheduleSchema `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.PendingFrom)
	assert.Equal(t, time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC), envelope.Data.PendingFrom.UTC())
}
