package models

// DashboardCounts holds the totals shown on the admin dashboard.
type DashboardCounts struct {
	Users     int `db:"users" json:"users"`
	Students  int `db:"students" json:"students"`
	Teachers  int `db:"teachers" json:"teachers"`
	Subjects  int `db:"subjects" json:"subjects"`
	Schedules int `db:"schedules" json:"schedules"`
	Groups    int `db:"groups" json:"groups"`
}

// SystemMetrics captures runtime counters for the dashboard.
type SystemMetrics struct {
	TotalRequests     int64   `json:"total_requests"`
	AvgResponseMs     float64 `json:"avg_response_ms"`
	CacheHitRatio     float64 `json:"cache_hit_ratio"`
	ScheduleConflicts int64   `json:"schedule_conflicts"`
	AuthRejections    int64   `json:"auth_rejections"`
	GoRoutines        int     `json:"go_routines"`
	MemoryAllocBytes  uint64  `json:"memory_alloc_bytes"`
}

// DashboardSummary is the admin dashboard payload.
type DashboardSummary struct {
	Counts  DashboardCounts `json:"counts"`
	Metrics SystemMetrics   `json:"metrics"`
}
