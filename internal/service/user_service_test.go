package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	slots      map[string]int
	groups     map[string][]string
	createErr  error
	deleted    []string
	lastFilter models.UserFilter
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*models.User{}, slots: map[string]int{}, groups: map[string][]string{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) FindTeacher(ctx context.Context, id string) (*models.TeacherSummary, error) {
	u, ok := m.users[id]
	if !ok || u.Role != models.RoleTeacher {
		return nil, sql.ErrNoRows
	}
	return &models.TeacherSummary{ID: u.ID, Firstname: u.Firstname, Lastname: u.Lastname}, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "new-user"
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CountTeacherSlots(ctx context.Context, id string) (int, error) {
	return m.slots[id], nil
}

func (m *mockUserRepo) ListGroups(ctx context.Context, userID string) ([]string, error) {
	return m.groups[userID], nil
}

func (m *mockUserRepo) AssignGroup(ctx context.Context, userID, groupName string) error {
	for _, g := range m.groups[userID] {
		if g == groupName {
			return nil
		}
	}
	m.groups[userID] = append(m.groups[userID], groupName)
	return nil
}

func (m *mockUserRepo) RemoveGroup(ctx context.Context, userID, groupName string) error {
	groups := m.groups[userID]
	for i, g := range groups {
		if g == groupName {
			m.groups[userID] = append(groups[:i], groups[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type staticGroups []string

func (g staticGroups) ListGroups(ctx context.Context) ([]string, error) {
	return g, nil
}

func newUserService(repo *mockUserRepo, cache *CacheService) *UserService {
	return NewUserService(repo, staticGroups{"CS-101", "MATH-2"}, testHasher, cache, nil, nil)
}

func TestUserServiceListPagination(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := newUserService(repo, nil)

	role := models.RoleStudent
	users, page, err := svc.List(context.Background(), models.UserFilter{Role: &role, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, &role, repo.lastFilter.Role)

	bogus := models.UserRole("janitor")
	_, _, err = svc.List(context.Background(), models.UserFilter{Role: &bogus})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := newUserService(repo, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Username: "msmith", Password: "secret1", Email: "m@uni.edu",
		Role: models.RoleTeacher, Firstname: "Mary", Lastname: "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.True(t, testHasher.Verify("secret1", user.PasswordHash))

	_, err = svc.Create(context.Background(), CreateUserRequest{Username: "x", Password: "1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.createErr = errors.Join(repository.ErrDuplicate, errors.New("pq: duplicate"))
	_, err = svc.Create(context.Background(), CreateUserRequest{
		Username: "msmith", Password: "secret1", Email: "m@uni.edu",
		Role: models.RoleStudent, Firstname: "Mary", Lastname: "Smith",
	})
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
}

func TestUserServiceUpdateTeacherWithSlotsKeepsRole(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "t1", Username: "msmith", Role: models.RoleTeacher})
	repo.slots["t1"] = 2
	svc := newUserService(repo, nil)

	req := UpdateUserRequest{Username: "msmith", Email: "m@uni.edu", Role: models.RoleStudent, Firstname: "Mary", Lastname: "Smith"}
	_, err := svc.Update(context.Background(), "t1", req)
	assert.ErrorIs(t, err, appErrors.ErrReferenced)

	req.Role = models.RoleTeacher
	req.Firstname = "Marie"
	user, err := svc.Update(context.Background(), "t1", req)
	require.NoError(t, err)
	assert.Equal(t, "Marie", user.Firstname)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "admin", Role: models.RoleAdmin},
		&models.User{ID: "t1", Role: models.RoleTeacher},
		&models.User{ID: "s1", Role: models.RoleStudent},
	)
	repo.slots["t1"] = 1
	cacheRepo := newMemoryCacheRepo()
	svc := newUserService(repo, NewCacheService(cacheRepo, nil, 0, nil, true))
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, "admin", "admin"), appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, "admin", "t1"), appErrors.ErrReferenced)
	assert.ErrorIs(t, svc.Delete(ctx, "admin", "missing"), appErrors.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "admin", "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	assert.Equal(t, []string{"schedule:*"}, cacheRepo.patterns)
}

func TestUserServiceResetPassword(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "s1", Role: models.RoleStudent})
	svc := newUserService(repo, nil)

	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "s1", ResetPasswordRequest{NewPassword: "123"}), appErrors.ErrValidation)
	require.NoError(t, svc.ResetPassword(context.Background(), "s1", ResetPasswordRequest{NewPassword: "newpass1"}))
	assert.True(t, testHasher.Verify("newpass1", repo.users["s1"].PasswordHash))
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "nobody", ResetPasswordRequest{NewPassword: "newpass1"}), appErrors.ErrNotFound)
}

func TestUserServiceRejectsOverlongPasswords(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "s1", Role: models.RoleStudent})
	svc := newUserService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserRequest{
		Username: "jdoe", Password: strings.Repeat("a", 80), Email: "jdoe@example.com", Role: models.RoleStudent, Firstname: "John", Lastname: "Doe",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	// 25 runes pass the length tag but take 75 bytes.
	_, err = svc.Create(ctx, CreateUserRequest{
		Username: "jdoe", Password: strings.Repeat("€", 25), Email: "jdoe@example.com", Role: models.RoleStudent, Firstname: "John", Lastname: "Doe",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "s1", ResetPasswordRequest{NewPassword: strings.Repeat("a", 80)}), appErrors.ErrValidation)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "s1", ResetPasswordRequest{NewPassword: strings.Repeat("€", 25)}), appErrors.ErrValidation)
}

func TestUserServiceTeacherLookup(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "t1", Role: models.RoleTeacher, Firstname: "Mary"},
		&models.User{ID: "s1", Role: models.RoleStudent},
	)
	svc := newUserService(repo, nil)

	teacher, err := svc.Teacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Mary", teacher.Firstname)

	_, err = svc.Teacher(context.Background(), "s1")
	assert.Equal(t, "teacher not found", appErrors.FromError(err).Message)
}

func TestUserServiceGroupMembership(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "s1", Role: models.RoleStudent},
		&models.User{ID: "t1", Role: models.RoleTeacher},
	)
	cacheRepo := newMemoryCacheRepo()
	svc := newUserService(repo, NewCacheService(cacheRepo, nil, 0, nil, true))
	ctx := context.Background()

	groups, err := svc.AssignGroup(ctx, "s1", AssignGroupRequest{GroupName: "CS-101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS-101"}, groups.Groups)
	assert.Equal(t, []string{"CS-101", "MATH-2"}, groups.AvailableGroups)
	assert.Equal(t, []string{StudentScheduleKey("s1")}, cacheRepo.patterns)

	groups, err = svc.AssignGroup(ctx, "s1", AssignGroupRequest{GroupName: "CS-101"})
	require.NoError(t, err)
	assert.Len(t, groups.Groups, 1)

	_, err = svc.AssignGroup(ctx, "t1", AssignGroupRequest{GroupName: "CS-101"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.AssignGroup(ctx, "s1", AssignGroupRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, svc.RemoveGroup(ctx, "s1", "CS-101"))
	assert.ErrorIs(t, svc.RemoveGroup(ctx, "s1", "CS-101"), appErrors.ErrNotFound)
}
