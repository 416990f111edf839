package models

import "time"

// ScheduleSlot is one weekly class taught by a teacher to a group.
type ScheduleSlot struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_time" json:"start_time"`
	EndTime   ClockTime `db:"end_time" json:"end_time"`
	GroupName string    `db:"group_name" json:"group_name"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Range returns the slot's time interval.
func (s ScheduleSlot) Range() TimeRange {
	return TimeRange{Start: s.StartTime, End: s.EndTime}
}

// ScheduleEntry is a slot joined with its subject and teacher names.
type ScheduleEntry struct {
	ScheduleSlot
	SubjectName      string `db:"subject_name" json:"subject_name"`
	TeacherFirstname string `db:"teacher_firstname" json:"teacher_firstname"`
	TeacherLastname  string `db:"teacher_lastname" json:"teacher_lastname"`
}

// ScheduleEntryView is an entry decorated for display.
type ScheduleEntryView struct {
	ScheduleEntry
	FormattedTime string `json:"formatted_time"`
	TeacherName   string `json:"teacher_name"`
}

// WeekSchedule maps day of week (1..7) to that day's entries.
type WeekSchedule map[int][]ScheduleEntryView

// ScheduleFilter narrows slot listings. Empty fields are ignored.
type ScheduleFilter struct {
	TeacherID string
	GroupName string
}

// ManageSchedule bundles what a teacher needs to edit their timetable.
type ManageSchedule struct {
	Schedule WeekSchedule `json:"schedule"`
	Subjects []Subject    `json:"subjects"`
	Groups   []string     `json:"groups"`
}
