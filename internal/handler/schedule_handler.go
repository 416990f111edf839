package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-schedule-api/internal/middleware"
	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
	"github.com/noah-isme/campus-schedule-api/pkg/response"
)

type scheduleService interface {
	TeacherSchedule(ctx context.Context, teacherID string) (models.WeekSchedule, bool, error)
	StudentSchedule(ctx context.Context, studentID string) (models.WeekSchedule, bool, error)
	AllSchedules(ctx context.Context, filter models.ScheduleFilter) (models.WeekSchedule, error)
	ManageSchedule(ctx context.Context, teacherID string) (*models.ManageSchedule, error)
	Create(ctx context.Context, actor *models.User, req service.ScheduleSlotRequest) (*models.ScheduleSlot, error)
	Update(ctx context.Context, actor *models.User, id string, req service.ScheduleSlotRequest) (*models.ScheduleSlot, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

type scheduleExporter interface {
	Render(week models.WeekSchedule, owner, rawFormat string) (*service.ExportFile, error)
}

// ScheduleHandler exposes the weekly schedule views and slot management.
type ScheduleHandler struct {
	service  scheduleService
	exporter scheduleExporter
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(svc scheduleService, exporter scheduleExporter) *ScheduleHandler {
	return &ScheduleHandler{service: svc, exporter: exporter}
}

// TeacherSchedule godoc
// @Summary Teacher weekly schedule
// @Description Slots of the current teacher grouped by day. Admins pass teacher_id.
// @Tags Schedules
// @Produce json
// @Param teacher_id query string false "Teacher ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teacher/schedule [get]
func (h *ScheduleHandler) TeacherSchedule(c *gin.Context) {
	week, _, ok := h.teacherWeek(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, week, nil, middleware.Meta(c))
}

// StudentSchedule godoc
// @Summary Student weekly schedule
// @Description Slots of every group the student belongs to, grouped by day. Admins pass student_id.
// @Tags Schedules
// @Produce json
// @Param student_id query string false "Student ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /student/schedule [get]
func (h *ScheduleHandler) StudentSchedule(c *gin.Context) {
	week, _, ok := h.studentWeek(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, week, nil, middleware.Meta(c))
}

// ExportTeacherSchedule godoc
// @Summary Export teacher schedule
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param teacher_id query string false "Teacher ID (admin only)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /teacher/schedule/export [get]
func (h *ScheduleHandler) ExportTeacherSchedule(c *gin.Context) {
	week, owner, ok := h.teacherWeek(c)
	if !ok {
		return
	}
	h.export(c, week, owner)
}

// ExportStudentSchedule godoc
// @Summary Export student schedule
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param student_id query string false "Student ID (admin only)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /student/schedule/export [get]
func (h *ScheduleHandler) ExportStudentSchedule(c *gin.Context) {
	week, owner, ok := h.studentWeek(c)
	if !ok {
		return
	}
	h.export(c, week, owner)
}

// ManageSchedule godoc
// @Summary Schedule editor data
// @Description The teacher's week plus every subject and known group
// @Tags Schedules
// @Produce json
// @Param teacher_id query string false "Teacher ID (admin only)"
// @Success 200 {object} response.Envelope
// @Router /teacher/manage-schedule [get]
func (h *ScheduleHandler) ManageSchedule(c *gin.Context) {
	teacherID, _, ok := targetID(c, models.RoleTeacher, "teacher_id")
	if !ok {
		return
	}
	manage, err := h.service.ManageSchedule(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, manage, nil)
}

// AllSchedules godoc
// @Summary All schedules
// @Description Every slot grouped by day, optionally filtered by teacher or group
// @Tags Schedules
// @Produce json
// @Param teacher_id query string false "Teacher filter"
// @Param group query string false "Group filter"
// @Success 200 {object} response.Envelope
// @Router /admin/schedules [get]
func (h *ScheduleHandler) AllSchedules(c *gin.Context) {
	filter := models.ScheduleFilter{TeacherID: c.Query("teacher_id"), GroupName: c.Query("group")}
	week, err := h.service.AllSchedules(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// Create godoc
// @Summary Create schedule slot
// @Description Rejected with 409 when it overlaps another slot of the same teacher on the same day
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.ScheduleSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher/schedule [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		return
	}
	var req service.ScheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	slot, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, slot)
}

// Update godoc
// @Summary Update schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.ScheduleSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher/schedule/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		return
	}
	var req service.ScheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	slot, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Delete schedule slot
// @Tags Schedules
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teacher/schedule/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *ScheduleHandler) teacherWeek(c *gin.Context) (models.WeekSchedule, string, bool) {
	teacherID, owner, ok := targetID(c, models.RoleTeacher, "teacher_id")
	if !ok {
		return nil, "", false
	}
	week, hit, err := h.service.TeacherSchedule(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return nil, "", false
	}
	middleware.SetCacheHit(c, hit)
	return week, owner, true
}

func (h *ScheduleHandler) studentWeek(c *gin.Context) (models.WeekSchedule, string, bool) {
	studentID, owner, ok := targetID(c, models.RoleStudent, "student_id")
	if !ok {
		return nil, "", false
	}
	week, hit, err := h.service.StudentSchedule(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return nil, "", false
	}
	middleware.SetCacheHit(c, hit)
	return week, owner, true
}

func (h *ScheduleHandler) export(c *gin.Context, week models.WeekSchedule, owner string) {
	file, err := h.exporter.Render(week, owner, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// targetID resolves whose schedule is requested. Users with role see their
// own; admins must name the user through param.
func targetID(c *gin.Context, role models.UserRole, param string) (string, string, bool) {
	actor := currentUser(c)
	if actor == nil {
		return "", "", false
	}
	requested := c.Query(param)
	switch actor.Role {
	case role:
		if requested != "" && requested != actor.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own schedule"))
			return "", "", false
		}
		return actor.ID, actor.FullName(), true
	case models.RoleAdmin:
		if requested == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, param+" is required"))
			return "", "", false
		}
		return requested, requested, true
	}
	response.Error(c, appErrors.ErrForbidden)
	return "", "", false
}
