package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindTeacher(ctx context.Context, id string) (*models.TeacherSummary, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CountTeacherSlots(ctx context.Context, id string) (int, error)
	ListGroups(ctx context.Context, userID string) ([]string, error)
	AssignGroup(ctx context.Context, userID, groupName string) error
	RemoveGroup(ctx context.Context, userID, groupName string) error
}

type groupCatalog interface {
	ListGroups(ctx context.Context) ([]string, error)
}

// CreateUserRequest payload for admin-created accounts.
type CreateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3,max=50"`
	Password  string          `json:"password" validate:"required,min=6,max=72"`
	Email     string          `json:"email" validate:"required,email,max=100"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin teacher student"`
	Firstname string          `json:"firstname" validate:"required,max=50"`
	Lastname  string          `json:"lastname" validate:"required,max=50"`
}

// UpdateUserRequest payload for editing an account.
type UpdateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3,max=50"`
	Email     string          `json:"email" validate:"required,email,max=100"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin teacher student"`
	Firstname string          `json:"firstname" validate:"required,max=50"`
	Lastname  string          `json:"lastname" validate:"required,max=50"`
}

// ResetPasswordRequest sets a new password for another user.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// AssignGroupRequest adds a student to a group.
type AssignGroupRequest struct {
	GroupName string `json:"group_name" validate:"required,max=50"`
}

// UserService exposes admin user management and group membership.
type UserService struct {
	repo      userRepository
	groups    groupCatalog
	hasher    passwordHasher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService builds a user service.
func NewUserService(repo userRepository, groups groupCatalog, hasher passwordHasher, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, groups: groups, hasher: hasher, cache: cache, validator: validate, logger: logger}
}

// List returns users with pagination.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create inserts a new user with any role.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, hashError(err)
	}
	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Role:         req.Role,
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.writeError(err, "failed to create user")
	}
	return user, nil
}

// Update edits profile fields and role of a user.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleTeacher && req.Role != models.RoleTeacher {
		if err := s.ensureNoSlots(ctx, id, "teacher still has scheduled classes"); err != nil {
			return nil, err
		}
	}

	user.Username = req.Username
	user.Email = req.Email
	user.Role = req.Role
	user.Firstname = req.Firstname
	user.Lastname = req.Lastname
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.writeError(err, "failed to update user")
	}
	s.cache.InvalidateSchedules(ctx)
	return user, nil
}

// ResetPassword sets a new password for the user.
func (s *UserService) ResetPassword(ctx context.Context, id string, req ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "password must be between 6 and 72 characters")
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return hashError(err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash, time.Now().UTC()); err != nil {
		return s.writeError(err, "failed to reset password")
	}
	return nil
}

// Delete removes a user. Admins cannot delete themselves and teachers with
// scheduled classes cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleTeacher {
		if err := s.ensureNoSlots(ctx, id, "teacher still has scheduled classes"); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeError(err, "failed to delete user")
	}
	s.cache.InvalidateSchedules(ctx)
	return nil
}

// Teacher returns the public view of a teacher, or not found for other roles.
func (s *UserService) Teacher(ctx context.Context, id string) (*models.TeacherSummary, error) {
	teacher, err := s.repo.FindTeacher(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Groups lists a student's memberships alongside every known group.
func (s *UserService) Groups(ctx context.Context, id string) (*models.StudentGroups, error) {
	student, err := s.student(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ListGroups(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student groups")
	}
	available, err := s.groups.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return &models.StudentGroups{Student: *student, Groups: groups, AvailableGroups: available}, nil
}

// AssignGroup adds the student to a group. Repeating an assignment is harmless.
func (s *UserService) AssignGroup(ctx context.Context, id string, req AssignGroupRequest) (*models.StudentGroups, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "group name is required")
	}
	if _, err := s.student(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.AssignGroup(ctx, id, req.GroupName); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign group")
	}
	s.cache.Invalidate(ctx, StudentScheduleKey(id))
	return s.Groups(ctx, id)
}

// RemoveGroup removes the student from a group.
func (s *UserService) RemoveGroup(ctx context.Context, id, groupName string) error {
	if _, err := s.student(ctx, id); err != nil {
		return err
	}
	if err := s.repo.RemoveGroup(ctx, id, groupName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not in this group")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove group")
	}
	s.cache.Invalidate(ctx, StudentScheduleKey(id))
	return nil
}

func (s *UserService) student(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "groups can only be managed for students")
	}
	return user, nil
}

func (s *UserService) ensureNoSlots(ctx context.Context, id, message string) error {
	slots, err := s.repo.CountTeacherSlots(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teacher slots")
	}
	if slots > 0 {
		return appErrors.Clone(appErrors.ErrReferenced, message)
	}
	return nil
}

func (s *UserService) writeError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrDuplicate, "username or email already exists")
	case errors.Is(err, repository.ErrReferenced):
		return appErrors.Clone(appErrors.ErrReferenced, "user is still referenced by scheduled classes")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
