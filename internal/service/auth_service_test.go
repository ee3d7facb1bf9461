package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/pkg/config"
)

type mockStaffRepo struct {
	byEmail map[string]*models.Staff
	created []models.Staff
}

func (m *mockStaffRepo) FindByEmail(_ context.Context, email string) (*models.Staff, error) {
	staff, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return staff, nil
}

func (m *mockStaffRepo) FindByID(_ context.Context, id int64) (*models.Staff, error) {
	for _, staff := range m.byEmail {
		if staff.ID == id {
			return staff, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStaffRepo) List(_ context.Context) ([]models.Staff, error) { return nil, nil }

func (m *mockStaffRepo) Count(_ context.Context) (int, error) { return len(m.byEmail), nil }

func (m *mockStaffRepo) Create(_ context.Context, staff *models.Staff) error {
	staff.ID = int64(len(m.byEmail) + 1)
	if m.byEmail == nil {
		m.byEmail = make(map[string]*models.Staff)
	}
	m.byEmail[staff.Email] = staff
	m.created = append(m.created, *staff)
	return nil
}

func (m *mockStaffRepo) Deactivate(_ context.Context, _ int64) error { return nil }

var testJWTConfig = config.JWTConfig{Secret: "test_secret", Expiration: time.Hour, Issuer: "fitclub-test"}

func newAuthFixture(t *testing.T) (*AuthService, *mockStaffRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockStaffRepo{byEmail: map[string]*models.Staff{
		"admin@club.test": {
			ID:           1,
			Email:        "admin@club.test",
			FullName:     "Admin",
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
			Active:       true,
		},
	}}
	return NewAuthService(repo, testJWTConfig, nil, zap.NewNop()), repo
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "Admin@Club.Test", Password: "correct horse"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, models.RoleAdmin, result.Staff.Role)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.StaffID)
	assert.Equal(t, "fitclub-test", claims.Issuer)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@club.test", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@club.test", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.byEmail["admin@club.test"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@club.test", Password: "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), RegisterStaffRequest{
		Email:    "ADMIN@club.test",
		FullName: "Other",
		Password: "longenough",
		Role:     models.RoleOperator,
	})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestRegisterLowercasesEmail(t *testing.T) {
	svc, repo := newAuthFixture(t)

	staff, err := svc.Register(context.Background(), RegisterStaffRequest{
		Email:    "Front@Club.Test",
		FullName: "Front Desk",
		Password: "longenough",
		Role:     models.RoleOperator,
	})
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower("Front@Club.Test"), staff.Email)
	require.Len(t, repo.created, 1)
}

func TestSeedAdminSkipsWhenStaffExist(t *testing.T) {
	svc, repo := newAuthFixture(t)

	err := svc.SeedAdmin(context.Background(), config.AdminSeedConfig{
		Email: "boot@club.test", FullName: "Boot", Password: "secret",
	})
	require.NoError(t, err)
	assert.Empty(t, repo.created)
}

func TestSeedAdminCreatesFirstAccount(t *testing.T) {
	repo := &mockStaffRepo{byEmail: map[string]*models.Staff{}}
	svc := NewAuthService(repo, testJWTConfig, nil, zap.NewNop())

	err := svc.SeedAdmin(context.Background(), config.AdminSeedConfig{
		Email: "Boot@Club.Test", FullName: "Boot", Password: "secret",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleAdmin, repo.created[0].Role)
	assert.Equal(t, "boot@club.test", repo.created[0].Email)
}
