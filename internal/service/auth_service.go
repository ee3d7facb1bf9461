package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/pkg/config"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
)

type staffRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Staff, error)
	FindByID(ctx context.Context, id int64) (*models.Staff, error)
	List(ctx context.Context) ([]models.Staff, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, staff *models.Staff) error
	Deactivate(ctx context.Context, id int64) error
}

// RegisterStaffRequest describes payload for creating a staff account.
type RegisterStaffRequest struct {
	Email    string           `json:"email" validate:"required,email"`
	FullName string           `json:"full_name" validate:"required"`
	Password string           `json:"password" validate:"required,min=8"`
	Role     models.StaffRole `json:"role" validate:"required,oneof=admin operator"`
}

// AuthService authenticates staff and issues JWT access tokens.
type AuthService struct {
	staff     staffRepository
	jwtCfg    config.JWTConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(staff staffRepository, jwtCfg config.JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{staff: staff, jwtCfg: jwtCfg, validator: validate, logger: logger}
}

// Login verifies credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	staff, err := s.staff.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff account")
	}
	if !staff.Active {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtCfg.Expiration)
	claims := models.JWTClaims{
		StaffID:  staff.ID,
		Role:     staff.Role,
		Email:    staff.Email,
		FullName: staff.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwtCfg.Issuer,
			Subject:   fmt.Sprintf("%d", staff.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("staff logged in", zap.Int64("staff_id", staff.ID), zap.String("role", string(staff.Role)))
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtCfg.Expiration.Seconds()),
		IssuedAt:    now,
		Staff: models.StaffInfo{
			ID:       staff.ID,
			Email:    staff.Email,
			FullName: staff.FullName,
			Role:     staff.Role,
		},
	}, nil
}

// ValidateToken parses and verifies an access token, returning its claims.
func (s *AuthService) ValidateToken(token string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

// Register creates a staff account. Duplicate emails yield Conflict.
func (s *AuthService) Register(ctx context.Context, req RegisterStaffRequest) (*models.StaffInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	email := strings.ToLower(req.Email)
	if existing, err := s.staff.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	staff := &models.Staff{
		Email:        email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff account")
	}

	s.logger.Info("staff account created", zap.Int64("staff_id", staff.ID), zap.String("role", string(staff.Role)))
	return &models.StaffInfo{ID: staff.ID, Email: staff.Email, FullName: staff.FullName, Role: staff.Role}, nil
}

// SeedAdmin creates the bootstrap administrator when no staff exist yet.
func (s *AuthService) SeedAdmin(ctx context.Context, seed config.AdminSeedConfig) error {
	if seed.Password == "" {
		return nil
	}
	count, err := s.staff.Count(ctx)
	if err != nil {
		return fmt.Errorf("count staff: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &models.Staff{
		Email:        strings.ToLower(seed.Email),
		FullName:     seed.FullName,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.staff.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	s.logger.Info("bootstrap administrator created", zap.String("email", admin.Email))
	return nil
}
