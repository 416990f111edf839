package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type fakeUserService struct {
	filter     models.UserFilter
	deleteArgs [2]string
	removed    [2]string
	assigned   service.AssignGroupRequest
}

func (f *fakeUserService) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	return []models.User{*studentUser}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (f *fakeUserService) Get(_ context.Context, id string) (*models.User, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

func (f *fakeUserService) Create(_ context.Context, req service.CreateUserRequest) (*models.User, error) {
	return &models.User{ID: "u-new", Username: req.Username, Role: req.Role}, nil
}

func (f *fakeUserService) Update(_ context.Context, id string, req service.UpdateUserRequest) (*models.User, error) {
	return nil, appErrors.Clone(appErrors.ErrReferenced, "teacher still has scheduled classes")
}

func (f *fakeUserService) ResetPassword(_ context.Context, id string, req service.ResetPasswordRequest) error {
	return nil
}

func (f *fakeUserService) Delete(_ context.Context, actorID, id string) error {
	f.deleteArgs = [2]string{actorID, id}
	if actorID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	return nil
}

func (f *fakeUserService) Teacher(_ context.Context, id string) (*models.TeacherSummary, error) {
	if id != "t1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return &models.TeacherSummary{ID: "t1", Firstname: "Mary", Lastname: "Smith"}, nil
}

func (f *fakeUserService) Groups(_ context.Context, id string) (*models.StudentGroups, error) {
	return &models.StudentGroups{Student: *studentUser, Groups: []string{"CS-101"}}, nil
}

func (f *fakeUserService) AssignGroup(_ context.Context, id string, req service.AssignGroupRequest) (*models.StudentGroups, error) {
	f.assigned = req
	return &models.StudentGroups{Student: *studentUser, Groups: []string{req.GroupName}}, nil
}

func (f *fakeUserService) RemoveGroup(_ context.Context, id, groupName string) error {
	f.removed = [2]string{id, groupName}
	return nil
}

func TestUserHandlerListParsesQuery(t *testing.T) {
	svc := &fakeUserService{}
	rec, c := newTestContext(http.MethodGet, "/admin/users?role=student&page=2&page_size=5&search=doe", nil, adminUser)

	NewUserHandler(svc).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, models.RoleStudent, *svc.filter.Role)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Equal(t, "doe", svc.filter.Search)
	assert.Contains(t, rec.Body.String(), `"pagination"`)
}

func TestUserHandlerDeleteUsesActor(t *testing.T) {
	svc := &fakeUserService{}
	h := NewUserHandler(svc)

	rec, c := newTestContext(http.MethodDelete, "/admin/users/a1", nil, adminUser)
	c.AddParam("id", "a1")
	h.Delete(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, [2]string{"a1", "a1"}, svc.deleteArgs)

	rec, c = newTestContext(http.MethodDelete, "/admin/users/s1", nil, adminUser)
	c.AddParam("id", "s1")
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserHandlerErrorsMapToStatus(t *testing.T) {
	h := NewUserHandler(&fakeUserService{})

	rec, c := newTestContext(http.MethodPut, "/admin/users/t1", map[string]string{"username": "msmith"}, adminUser)
	c.AddParam("id", "t1")
	h.Update(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REFERENCED", decode(t, rec).Error.Code)

	rec, c = newTestContext(http.MethodGet, "/admin/teachers/s1", nil, adminUser)
	c.AddParam("id", "s1")
	h.Teacher(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, c = newTestContext(http.MethodPost, "/admin/users", "[]", adminUser)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerGroupMembership(t *testing.T) {
	svc := &fakeUserService{}
	h := NewUserHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/admin/users/s1/groups", service.AssignGroupRequest{GroupName: "CS-101"}, adminUser)
	c.AddParam("id", "s1")
	h.AssignGroup(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CS-101", svc.assigned.GroupName)

	_, c = newTestContext(http.MethodDelete, "/admin/users/s1/groups/CS-101", nil, adminUser)
	c.AddParam("id", "s1")
	c.AddParam("group", "CS-101")
	h.RemoveGroup(c)
	assert.Equal(t, [2]string{"s1", "CS-101"}, svc.removed)
}
