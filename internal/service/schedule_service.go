package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntry, error)
	ListByGroup(ctx context.Context, groupName string) ([]models.ScheduleEntry, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleEntry, error)
	ListTeacherDay(ctx context.Context, teacherID string, day int) ([]models.ScheduleSlot, error)
	ListGroups(ctx context.Context) ([]string, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	Update(ctx context.Context, slot *models.ScheduleSlot) error
	Delete(ctx context.Context, id string) error
}

type scheduleSubjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	List(ctx context.Context) ([]models.Subject, error)
}

type scheduleTeacherLookup interface {
	FindTeacher(ctx context.Context, id string) (*models.TeacherSummary, error)
}

// ScheduleSlotRequest payload for creating or updating a slot. TeacherID is
// only honoured for admins; teachers always write their own slots.
type ScheduleSlotRequest struct {
	SubjectID string            `json:"subject_id" validate:"required,uuid"`
	TeacherID string            `json:"teacher_id" validate:"omitempty,uuid"`
	DayOfWeek int               `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime *models.ClockTime `json:"start_time" validate:"required"`
	EndTime   *models.ClockTime `json:"end_time" validate:"required"`
	GroupName string            `json:"group_name" validate:"required,max=50"`
	Location  string            `json:"location" validate:"max=100"`
}

// ScheduleService manages weekly slots and the grouped views built from them.
type ScheduleService struct {
	repo      scheduleRepository
	subjects  scheduleSubjectLookup
	teachers  scheduleTeacherLookup
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleRepository, subjects scheduleSubjectLookup, teachers scheduleTeacherLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, subjects: subjects, teachers: teachers, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// TeacherSchedule returns the teacher's slots grouped by day. The bool reports a cache hit.
func (s *ScheduleService) TeacherSchedule(ctx context.Context, teacherID string) (models.WeekSchedule, bool, error) {
	return s.cachedWeek(ctx, TeacherScheduleKey(teacherID), func() ([]models.ScheduleEntry, error) {
		return s.repo.ListByTeacher(ctx, teacherID)
	})
}

// StudentSchedule returns the slots of every group the student belongs to, grouped by day.
func (s *ScheduleService) StudentSchedule(ctx context.Context, studentID string) (models.WeekSchedule, bool, error) {
	return s.cachedWeek(ctx, StudentScheduleKey(studentID), func() ([]models.ScheduleEntry, error) {
		return s.repo.ListByStudent(ctx, studentID)
	})
}

// AllSchedules returns every slot matching filter grouped by day.
func (s *ScheduleService) AllSchedules(ctx context.Context, filter models.ScheduleFilter) (models.WeekSchedule, error) {
	var (
		entries []models.ScheduleEntry
		err     error
	)
	if filter.TeacherID == "" && filter.GroupName != "" {
		entries, err = s.repo.ListByGroup(ctx, filter.GroupName)
	} else {
		entries, err = s.repo.List(ctx, filter)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return GroupByDay(entries), nil
}

// ManageSchedule bundles the teacher's week with the subjects and groups used by the editor.
func (s *ScheduleService) ManageSchedule(ctx context.Context, teacherID string) (*models.ManageSchedule, error) {
	week, _, err := s.TeacherSchedule(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return &models.ManageSchedule{Schedule: week, Subjects: subjects, Groups: groups}, nil
}

// Create adds a slot after rejecting overlaps with the teacher's existing slots.
func (s *ScheduleService) Create(ctx context.Context, actor *models.User, req ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	teacherID, err := s.resolveTeacher(ctx, actor, req.TeacherID, "")
	if err != nil {
		return nil, err
	}
	if err := s.ensureSubject(ctx, req.SubjectID); err != nil {
		return nil, err
	}

	slot := &models.ScheduleSlot{
		SubjectID: req.SubjectID,
		TeacherID: teacherID,
		DayOfWeek: req.DayOfWeek,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		GroupName: req.GroupName,
		Location:  req.Location,
	}
	if err := s.checkConflict(ctx, *slot, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, s.writeError(err, *slot, "failed to create schedule slot")
	}

	s.cache.InvalidateSchedules(ctx)
	s.logger.Info("schedule slot created", zap.String("slot_id", slot.ID), zap.String("teacher_id", slot.TeacherID), zap.String("actor_id", actor.ID))
	return slot, nil
}

// Update rewrites a slot. Non-admins may only touch their own slots.
func (s *ScheduleService) Update(ctx context.Context, actor *models.User, id string, req ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	slot, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	teacherID, err := s.resolveTeacher(ctx, actor, req.TeacherID, slot.TeacherID)
	if err != nil {
		return nil, err
	}
	if req.SubjectID != slot.SubjectID {
		if err := s.ensureSubject(ctx, req.SubjectID); err != nil {
			return nil, err
		}
	}

	slot.SubjectID = req.SubjectID
	slot.TeacherID = teacherID
	slot.DayOfWeek = req.DayOfWeek
	slot.StartTime = *req.StartTime
	slot.EndTime = *req.EndTime
	slot.GroupName = req.GroupName
	slot.Location = req.Location

	if err := s.checkConflict(ctx, *slot, slot.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, s.writeError(err, *slot, "failed to update schedule slot")
	}

	s.cache.InvalidateSchedules(ctx)
	return slot, nil
}

// Delete removes a slot. Non-admins may only delete their own slots.
func (s *ScheduleService) Delete(ctx context.Context, actor *models.User, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule slot")
	}
	s.cache.InvalidateSchedules(ctx)
	return nil
}

func (s *ScheduleService) cachedWeek(ctx context.Context, key string, load func() ([]models.ScheduleEntry, error)) (models.WeekSchedule, bool, error) {
	var week models.WeekSchedule
	if s.cache.Get(ctx, key, &week) {
		return week, true, nil
	}
	entries, err := load()
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	week = GroupByDay(entries)
	s.cache.Set(ctx, key, week, 0)
	return week, false, nil
}

func (s *ScheduleService) validate(req ScheduleSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if !(models.TimeRange{Start: *req.StartTime, End: *req.EndTime}).Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	return nil
}

// resolveTeacher decides whose slot is being written. current is the slot's
// teacher on update and empty on create.
func (s *ScheduleService) resolveTeacher(ctx context.Context, actor *models.User, requested, current string) (string, error) {
	switch actor.Role {
	case models.RoleTeacher:
		if requested != "" && requested != actor.ID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "teachers can only schedule their own classes")
		}
		return actor.ID, nil
	case models.RoleAdmin:
		if requested == "" {
			requested = current
		}
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
		}
		if requested == current {
			return current, nil
		}
		if _, err := s.teachers.FindTeacher(ctx, requested); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrValidation, "teacher_id must reference a teacher")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		return requested, nil
	}
	return "", appErrors.ErrForbidden
}

func (s *ScheduleService) ensureSubject(ctx context.Context, id string) error {
	if _, err := s.subjects.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return nil
}

func (s *ScheduleService) owned(ctx context.Context, actor *models.User, id string) (*models.ScheduleSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slot")
	}
	if actor.Role != models.RoleAdmin && slot.TeacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own schedule")
	}
	return slot, nil
}

func (s *ScheduleService) checkConflict(ctx context.Context, candidate models.ScheduleSlot, excludeID string) error {
	existing, err := s.repo.ListTeacherDay(ctx, candidate.TeacherID, candidate.DayOfWeek)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	if clash, found := FindConflict(candidate, existing, excludeID); found {
		return s.conflictError(*clash)
	}
	return nil
}

func (s *ScheduleService) conflictError(clash models.ScheduleSlot) error {
	s.metrics.RecordScheduleConflict()
	msg := fmt.Sprintf("teacher already has a class on %s at %s", DayName(clash.DayOfWeek), clash.Range())
	return appErrors.Clone(appErrors.ErrScheduleConflict, msg)
}

func (s *ScheduleService) writeError(err error, slot models.ScheduleSlot, message string) error {
	switch {
	case errors.Is(err, repository.ErrOverlap):
		// Lost a race with a concurrent write; the exclusion constraint caught it.
		s.metrics.RecordScheduleConflict()
		msg := fmt.Sprintf("teacher already has a class on %s overlapping %s", DayName(slot.DayOfWeek), slot.Range())
		return appErrors.Clone(appErrors.ErrScheduleConflict, msg)
	case errors.Is(err, repository.ErrReferenced):
		return appErrors.Clone(appErrors.ErrValidation, "subject or teacher does not exist")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
