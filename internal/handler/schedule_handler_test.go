package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/middleware"
	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type fakeScheduleService struct {
	week      models.WeekSchedule
	hit       bool
	lastID    string
	lastActor *models.User
	createErr error
	filter    models.ScheduleFilter
}

func (f *fakeScheduleService) TeacherSchedule(_ context.Context, teacherID string) (models.WeekSchedule, bool, error) {
	f.lastID = teacherID
	return f.week, f.hit, nil
}

func (f *fakeScheduleService) StudentSchedule(_ context.Context, studentID string) (models.WeekSchedule, bool, error) {
	f.lastID = studentID
	return f.week, f.hit, nil
}

func (f *fakeScheduleService) AllSchedules(_ context.Context, filter models.ScheduleFilter) (models.WeekSchedule, error) {
	f.filter = filter
	return f.week, nil
}

func (f *fakeScheduleService) ManageSchedule(_ context.Context, teacherID string) (*models.ManageSchedule, error) {
	f.lastID = teacherID
	return &models.ManageSchedule{Schedule: f.week}, nil
}

func (f *fakeScheduleService) Create(_ context.Context, actor *models.User, req service.ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	f.lastActor = actor
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.ScheduleSlot{ID: "slot-1", TeacherID: actor.ID, DayOfWeek: req.DayOfWeek}, nil
}

func (f *fakeScheduleService) Update(_ context.Context, actor *models.User, id string, req service.ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	f.lastActor = actor
	f.lastID = id
	return &models.ScheduleSlot{ID: id}, nil
}

func (f *fakeScheduleService) Delete(_ context.Context, actor *models.User, id string) error {
	f.lastActor = actor
	f.lastID = id
	if actor.ID != "t1" && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own schedule")
	}
	return nil
}

func sampleWeek() models.WeekSchedule {
	return service.GroupByDay([]models.ScheduleEntry{{
		ScheduleSlot: models.ScheduleSlot{
			ID: "slot-1", TeacherID: "t1", DayOfWeek: 1, GroupName: "CS-101", Location: "Room 4",
			StartTime: models.MustClockTime("09:00"), EndTime: models.MustClockTime("10:00"),
		},
		SubjectName: "Algebra", TeacherFirstname: "Mary", TeacherLastname: "Smith",
	}})
}

func newScheduleHandler(svc *fakeScheduleService) *ScheduleHandler {
	return NewScheduleHandler(svc, service.NewExportService(nil))
}

func TestScheduleHandlerTeacherScheduleReportsCacheHit(t *testing.T) {
	svc := &fakeScheduleService{week: sampleWeek(), hit: true}
	rec, c := newTestContext(http.MethodGet, "/teacher/schedule", nil, teacherUser)
	middleware.ResponseMeta()(c)

	newScheduleHandler(svc).TeacherSchedule(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.lastID)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, string(envelope.Data), `"formatted_time":"09:00 - 10:00"`)
}

func TestScheduleHandlerTargetResolution(t *testing.T) {
	svc := &fakeScheduleService{week: sampleWeek()}
	h := newScheduleHandler(svc)

	rec, c := newTestContext(http.MethodGet, "/teacher/schedule", nil, adminUser)
	h.TeacherSchedule(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = newTestContext(http.MethodGet, "/teacher/schedule?teacher_id=t9", nil, adminUser)
	h.TeacherSchedule(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t9", svc.lastID)

	rec, c = newTestContext(http.MethodGet, "/student/schedule?student_id=s2", nil, studentUser)
	h.StudentSchedule(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, c = newTestContext(http.MethodGet, "/student/schedule", nil, studentUser)
	h.StudentSchedule(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", svc.lastID)

	rec, c = newTestContext(http.MethodGet, "/student/schedule", nil, teacherUser)
	h.StudentSchedule(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScheduleHandlerCreateConflict(t *testing.T) {
	svc := &fakeScheduleService{createErr: appErrors.Clone(appErrors.ErrScheduleConflict, "teacher already has a class on Tuesday at 09:00 - 10:00")}
	payload := map[string]interface{}{
		"subject_id":  "8a4c3b1e-0d1f-4c55-9a55-1f7c2d9e0a01",
		"day_of_week": 2,
		"start_time":  "09:30",
		"end_time":    "10:30",
		"group_name":  "CS-101",
	}
	rec, c := newTestContext(http.MethodPost, "/teacher/schedule", payload, teacherUser)

	newScheduleHandler(svc).Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, "SCHEDULE_CONFLICT", envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "Tuesday")
	assert.Equal(t, teacherUser, svc.lastActor)
}

func TestScheduleHandlerCreateRejectsBadTime(t *testing.T) {
	payload := map[string]interface{}{"subject_id": "x", "day_of_week": 2, "start_time": "9am", "end_time": "10:00"}
	rec, c := newTestContext(http.MethodPost, "/teacher/schedule", payload, teacherUser)

	newScheduleHandler(&fakeScheduleService{}).Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerDeleteForbidden(t *testing.T) {
	svc := &fakeScheduleService{}
	other := &models.User{ID: "t2", Role: models.RoleTeacher}
	rec, c := newTestContext(http.MethodDelete, "/teacher/schedule/slot-1", nil, other)
	c.AddParam("id", "slot-1")

	newScheduleHandler(svc).Delete(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "slot-1", svc.lastID)
}

func TestScheduleHandlerExportCSV(t *testing.T) {
	rec, c := newTestContext(http.MethodGet, "/teacher/schedule/export?format=csv", nil, teacherUser)

	newScheduleHandler(&fakeScheduleService{week: sampleWeek()}).ExportTeacherSchedule(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="schedule-mary-smith-\d{8}\.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Monday,09:00 - 10:00,Algebra,Mary Smith,CS-101,Room 4")
}

func TestScheduleHandlerExportRejectsUnknownFormat(t *testing.T) {
	rec, c := newTestContext(http.MethodGet, "/student/schedule/export?format=docx", nil, studentUser)

	newScheduleHandler(&fakeScheduleService{week: sampleWeek()}).ExportStudentSchedule(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerAllSchedulesFilter(t *testing.T) {
	svc := &fakeScheduleService{week: sampleWeek()}
	rec, c := newTestContext(http.MethodGet, "/admin/schedules?teacher_id=t1&group=CS-101", nil, adminUser)

	newScheduleHandler(svc).AllSchedules(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ScheduleFilter{TeacherID: "t1", GroupName: "CS-101"}, svc.filter)
}
