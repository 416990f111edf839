package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

// DashboardRepository aggregates the admin dashboard totals.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts returns every dashboard total in a single round trip.
func (r *DashboardRepository) Counts(ctx context.Context) (*models.DashboardCounts, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM users) AS users,
    (SELECT COUNT(*) FROM users WHERE role = 'student') AS students,
    (SELECT COUNT(*) FROM users WHERE role = 'teacher') AS teachers,
    (SELECT COUNT(*) FROM subjects) AS subjects,
    (SELECT COUNT(*) FROM schedule_slots) AS schedules,
    (SELECT COUNT(DISTINCT group_name) FROM schedule_slots) AS "groups"`
	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// Ping verifies database connectivity for readiness checks.
func (r *DashboardRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
