package service

import "github.com/noah-isme/campus-schedule-api/internal/models"

// FindConflict returns the first slot in existing taught by the candidate's
// teacher on the same day whose time range overlaps the candidate. The slot
// with excludeID is skipped so an update never conflicts with itself.
func FindConflict(candidate models.ScheduleSlot, existing []models.ScheduleSlot, excludeID string) (*models.ScheduleSlot, bool) {
	want := candidate.Range()
	for i := range existing {
		slot := existing[i]
		if excludeID != "" && slot.ID == excludeID {
			continue
		}
		if slot.TeacherID != candidate.TeacherID || slot.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		if want.Overlaps(slot.Range()) {
			return &slot, true
		}
	}
	return nil, false
}

// HasConflict reports whether FindConflict finds anything.
func HasConflict(candidate models.ScheduleSlot, existing []models.ScheduleSlot, excludeID string) bool {
	_, found := FindConflict(candidate, existing, excludeID)
	return found
}
