package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type fakeSubjectService struct {
	created service.SubjectRequest
}

func (f *fakeSubjectService) List(context.Context) ([]models.Subject, error) {
	return []models.Subject{{ID: "sub-1", Name: "Algebra"}}, nil
}

func (f *fakeSubjectService) Get(_ context.Context, id string) (*models.Subject, error) {
	return &models.Subject{ID: id, Name: "Algebra"}, nil
}

func (f *fakeSubjectService) Create(_ context.Context, req service.SubjectRequest) (*models.Subject, error) {
	f.created = req
	return &models.Subject{ID: "sub-2", Name: req.Name}, nil
}

func (f *fakeSubjectService) Update(_ context.Context, id string, req service.SubjectRequest) (*models.Subject, error) {
	return &models.Subject{ID: id, Name: req.Name}, nil
}

func (f *fakeSubjectService) Delete(_ context.Context, id string) error {
	return appErrors.Clone(appErrors.ErrReferenced, "subject is used by scheduled classes")
}

func TestSubjectHandlerCreate(t *testing.T) {
	svc := &fakeSubjectService{}
	rec, c := newTestContext(http.MethodPost, "/subjects", service.SubjectRequest{Name: "Physics"}, adminUser)

	NewSubjectHandler(svc).Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Physics", svc.created.Name)
}

func TestSubjectHandlerDeleteInUse(t *testing.T) {
	rec, c := newTestContext(http.MethodDelete, "/subjects/sub-1", nil, adminUser)
	c.AddParam("id", "sub-1")

	NewSubjectHandler(&fakeSubjectService{}).Delete(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REFERENCED", decode(t, rec).Error.Code)
}

func TestSubjectHandlerGet(t *testing.T) {
	rec, c := newTestContext(http.MethodGet, "/subjects/sub-1", nil, studentUser)
	c.AddParam("id", "sub-1")

	NewSubjectHandler(&fakeSubjectService{}).Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"id":"sub-1"`)
}
