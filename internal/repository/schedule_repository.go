package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

const slotColumns = `id, subject_id, teacher_id, day_of_week, start_time, end_time, group_name, location, created_at, updated_at`

const entrySelect = `SELECT s.id, s.subject_id, s.teacher_id, s.day_of_week, s.start_time, s.end_time, s.group_name, s.location, s.created_at, s.updated_at,
sub.name AS subject_name, u.firstname AS teacher_firstname, u.lastname AS teacher_lastname
FROM schedule_slots s
JOIN subjects sub ON sub.id = s.subject_id
JOIN users u ON u.id = s.teacher_id`

const entryOrder = ` ORDER BY s.day_of_week, s.start_time`

// ScheduleRepository manages persistence for weekly schedule slots.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID fetches a slot by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find schedule slot: %w", err)
	}
	return &slot, nil
}

// List returns joined entries matching filter, ordered by day then start time.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.GroupName != "" {
		conditions = append(conditions, fmt.Sprintf("s.group_name = $%d", len(args)+1))
		args = append(args, filter.GroupName)
	}

	query := entrySelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return r.selectEntries(ctx, "list schedule", query+entryOrder, args...)
}

// ListByTeacher returns the entries taught by teacherID.
func (r *ScheduleRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntry, error) {
	return r.selectEntries(ctx, "list teacher schedule", entrySelect+` WHERE s.teacher_id = $1`+entryOrder, teacherID)
}

// ListByGroup returns the entries for one student group.
func (r *ScheduleRepository) ListByGroup(ctx context.Context, groupName string) ([]models.ScheduleEntry, error) {
	return r.selectEntries(ctx, "list group schedule", entrySelect+` WHERE s.group_name = $1`+entryOrder, groupName)
}

// ListByStudent returns the union of entries for every group the student belongs to.
func (r *ScheduleRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleEntry, error) {
	query := entrySelect + ` JOIN user_groups ug ON ug.group_name = s.group_name WHERE ug.user_id = $1` + entryOrder
	return r.selectEntries(ctx, "list student schedule", query, studentID)
}

// ListTeacherDay returns the raw slots of a teacher on one day, the candidate
// set for conflict detection.
func (r *ScheduleRepository) ListTeacherDay(ctx context.Context, teacherID string, day int) ([]models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE teacher_id = $1 AND day_of_week = $2 ORDER BY start_time`
	slots := []models.ScheduleSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, day); err != nil {
		return nil, fmt.Errorf("list teacher day slots: %w", err)
	}
	return slots, nil
}

// ListGroups returns the distinct group names used by any slot.
func (r *ScheduleRepository) ListGroups(ctx context.Context) ([]string, error) {
	groups := []string{}
	if err := r.db.SelectContext(ctx, &groups, `SELECT DISTINCT group_name FROM schedule_slots ORDER BY group_name`); err != nil {
		return nil, fmt.Errorf("list schedule groups: %w", err)
	}
	return groups, nil
}

// Create inserts a slot. ErrOverlap reports an exclusion constraint hit and
// ErrReferenced a missing subject or teacher.
func (r *ScheduleRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	query := `INSERT INTO schedule_slots (` + slotColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query, slot.ID, slot.SubjectID, slot.TeacherID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.GroupName, slot.Location, slot.CreatedAt, slot.UpdatedAt); err != nil {
		return fmt.Errorf("create schedule slot: %w", translate(err))
	}
	return nil
}

// Update rewrites a slot's mutable fields.
func (r *ScheduleRepository) Update(ctx context.Context, slot *models.ScheduleSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots SET subject_id = $2, teacher_id = $3, day_of_week = $4, start_time = $5, end_time = $6, group_name = $7, location = $8, updated_at = $9 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, slot.ID, slot.SubjectID, slot.TeacherID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.GroupName, slot.Location, slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update schedule slot: %w", translate(err))
	}
	return expectAffected(res, "update schedule slot")
}

// Delete removes a slot.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule slot: %w", translate(err))
	}
	return expectAffected(res, "delete schedule slot")
}

func (r *ScheduleRepository) selectEntries(ctx context.Context, op, query string, args ...interface{}) ([]models.ScheduleEntry, error) {
	entries := []models.ScheduleEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		if notFound(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}
