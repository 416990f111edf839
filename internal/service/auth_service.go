package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/repository"
	"github.com/noah-isme/campus-schedule-api/pkg/credential"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

// passwordHasher is satisfied by credential.Hasher.
type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

type tokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

// AdminBootstrap describes the administrator seeded on an empty install.
type AdminBootstrap struct {
	Username string
	Password string
	Email    string
}

// AuthService provides sign-in, self-registration and password changes.
type AuthService struct {
	repo      authUserRepository
	hasher    passwordHasher
	tokens    tokenIssuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, hasher passwordHasher, tokens tokenIssuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, hasher: hasher, tokens: tokens, metrics: metrics, validator: validate, logger: logger}
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown usernames pay the same bcrypt cost as wrong passwords.
			s.hasher.Verify(req.Password, s.missingUserDigest())
			s.metrics.RecordAuthRejection(RejectBadCredentials)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.metrics.RecordAuthRejection(RejectBadCredentials)
		return nil, appErrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
		Redirect:  user.Role.HomePath(),
	}, nil
}

// Register creates a student account. Self-registration never grants another role.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, hashError(err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Role:         models.RoleStudent,
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "username or email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register user")
	}
	return user, nil
}

// Profile returns the current state of the user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "new password must be 6 to 72 characters and match the confirmation")
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return appErrors.Clone(appErrors.ErrValidation, "current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return hashError(err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	return nil
}

// EnsureAdmin seeds an administrator when none exists. It reports whether one
// was created. Without a configured password nothing is seeded.
func (s *AuthService) EnsureAdmin(ctx context.Context, seed AdminBootstrap) (bool, error) {
	admins, err := s.repo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}
	if seed.Username == "" || seed.Password == "" {
		s.logger.Warn("no administrator exists and ADMIN_PASSWORD is not set")
		return false, nil
	}

	hash, err := s.hasher.Hash(seed.Password)
	if err != nil {
		return false, err
	}
	admin := &models.User{
		Username:     seed.Username,
		PasswordHash: hash,
		Email:        seed.Email,
		Role:         models.RoleAdmin,
		Firstname:    "System",
		Lastname:     "Administrator",
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return false, err
	}
	s.logger.Info("bootstrap administrator created", zap.String("username", admin.Username))
	return true, nil
}

func (s *AuthService) missingUserDigest() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("campus-schedule-unknown-user")
	})
	return s.dummyDigest
}

func hashError(err error) error {
	if errors.Is(err, credential.ErrPasswordTooLong) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "password must be at most 72 bytes")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
}
