package service

import "github.com/noah-isme/campus-schedule-api/internal/models"

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName maps 1..7 to Monday..Sunday. Other values return "".
func DayName(day int) string {
	if day < 1 || day > len(dayNames) {
		return ""
	}
	return dayNames[day-1]
}

// GroupByDay buckets entries by day of week, preserving input order inside
// each day, and decorates them for display.
func GroupByDay(entries []models.ScheduleEntry) models.WeekSchedule {
	week := make(models.WeekSchedule)
	for _, entry := range entries {
		view := models.ScheduleEntryView{
			ScheduleEntry: entry,
			FormattedTime: entry.Range().String(),
			TeacherName:   models.User{Firstname: entry.TeacherFirstname, Lastname: entry.TeacherLastname}.FullName(),
		}
		week[entry.DayOfWeek] = append(week[entry.DayOfWeek], view)
	}
	return week
}
